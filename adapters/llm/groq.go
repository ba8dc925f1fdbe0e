package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/voicetutor/domain/repositories"
)

const (
	defaultGroqBaseURL = "https://api.groq.com/openai/v1"
	defaultGroqModel   = "llama-3.1-8b-instant"
)

// GroqConfig holds configuration for the Groq adapter
type GroqConfig struct {
	APIKey     string // Required
	BaseURL    string // Optional: any OpenAI-compatible endpoint
	Model      string // Optional: default llama-3.1-8b-instant
	HTTPClient *http.Client
}

// GroqLLM calls an OpenAI-compatible chat completions endpoint, Groq by default
type GroqLLM struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
	logger  *zap.Logger
}

var _ repositories.LargeLanguageModel = (*GroqLLM)(nil)

type chatCompletionRequest struct {
	Model       string                     `json:"model"`
	Messages    []repositories.ChatMessage `json:"messages"`
	MaxTokens   int                        `json:"max_tokens"`
	Temperature float32                    `json:"temperature"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message repositories.ChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewGroqConfigFromEnv reads GROQ_API_KEY and GROQ_MODEL
func NewGroqConfigFromEnv() GroqConfig {
	return GroqConfig{
		APIKey: os.Getenv("GROQ_API_KEY"),
		Model:  os.Getenv("GROQ_MODEL"),
	}
}

// NewGroqLLM creates a new Groq LLM instance
func NewGroqLLM(config GroqConfig, logger *zap.Logger) (*GroqLLM, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("groq API key is required")
	}
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultGroqBaseURL
	}
	model := config.Model
	if model == "" {
		model = defaultGroqModel
	}
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: time.Duration(defaultTimeoutSeconds) * time.Second}
	}
	return &GroqLLM{
		apiKey:  config.APIKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  client,
		logger:  logger,
	}, nil
}

// Name implements repositories.LargeLanguageModel
func (g *GroqLLM) Name() string {
	return "groq"
}

// Complete implements repositories.LargeLanguageModel
func (g *GroqLLM) Complete(ctx context.Context, prompt string, opts repositories.CompletionOptions) (string, error) {
	request := chatCompletionRequest{
		Model:       g.model,
		Messages:    opts.Messages(prompt),
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.TemperatureOr(defaultTemperature),
	}
	if request.MaxTokens <= 0 {
		request.MaxTokens = defaultMaxTokens
	}

	body, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	start := time.Now()
	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("groq API returned error %d: %s", resp.StatusCode, strings.TrimSpace(string(errorBody)))
	}

	var completion chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if completion.Error != nil {
		return "", fmt.Errorf("groq API error: %s", completion.Error.Message)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("groq returned no choices")
	}

	text := strings.TrimSpace(completion.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("groq returned empty content")
	}

	g.logger.Debug("Groq completion",
		zap.String("model", g.model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("responseLength", len(text)))
	return text, nil
}
