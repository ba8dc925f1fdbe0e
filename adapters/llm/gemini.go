package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/voicetutor/domain/repositories"
)

const (
	defaultGeminiModel    = "gemini-2.0-flash"
	defaultMaxTokens      = 1024
	defaultTemperature    = 0.7
	defaultTimeoutSeconds = 30
	defaultMaxAttempts    = 3
)

// GeminiConfig holds configuration for the Gemini adapter
type GeminiConfig struct {
	APIKey         string // Required
	Model          string // Optional: default gemini-2.0-flash
	TimeoutSeconds int    // Optional: per request timeout, default 30
	MaxAttempts    int    // Optional: default 3
	RetryBackoff   time.Duration
	BaseURL        string // Optional: API endpoint override
}

// geminiSafetySettings blocks harmful content for a learner-facing assistant
var geminiSafetySettings = []*genai.SafetySetting{
	{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
	{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
	{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
	{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
}

// GeminiLLM implements the LargeLanguageModel interface using Google's Gemini API
type GeminiLLM struct {
	client       *genai.Client
	logger       *zap.Logger
	model        string
	timeout      time.Duration
	maxAttempts  int
	retryBackoff time.Duration
}

var _ repositories.LargeLanguageModel = (*GeminiLLM)(nil)

// NewGeminiConfigFromEnv reads GEMINI_API_KEY and GEMINI_MODEL
func NewGeminiConfigFromEnv() GeminiConfig {
	return GeminiConfig{
		APIKey: os.Getenv("GEMINI_API_KEY"),
		Model:  os.Getenv("GEMINI_MODEL"),
	}
}

// NewGeminiLLM creates a new Gemini LLM instance
func NewGeminiLLM(ctx context.Context, config GeminiConfig, logger *zap.Logger) (*GeminiLLM, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if config.TimeoutSeconds < 0 {
		return nil, fmt.Errorf("timeout must be positive, got %d", config.TimeoutSeconds)
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: config.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := config.Model
	if model == "" {
		model = defaultGeminiModel
	}
	timeoutSeconds := config.TimeoutSeconds
	if timeoutSeconds == 0 {
		timeoutSeconds = defaultTimeoutSeconds
	}
	maxAttempts := config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	backoff := config.RetryBackoff
	if backoff <= 0 {
		backoff = time.Second
	}

	return &GeminiLLM{
		client:       client,
		logger:       logger,
		model:        model,
		timeout:      time.Duration(timeoutSeconds) * time.Second,
		maxAttempts:  maxAttempts,
		retryBackoff: backoff,
	}, nil
}

// Name implements repositories.LargeLanguageModel
func (g *GeminiLLM) Name() string {
	return "gemini"
}

// Complete implements repositories.LargeLanguageModel
func (g *GeminiLLM) Complete(ctx context.Context, prompt string, opts repositories.CompletionOptions) (string, error) {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	config := &genai.GenerateContentConfig{
		SafetySettings:  geminiSafetySettings,
		Temperature:     genai.Ptr(opts.TemperatureOr(defaultTemperature)),
		MaxOutputTokens: int32(maxTokens),
	}
	if opts.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(opts.SystemPrompt, genai.RoleUser)
	}
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var response *genai.GenerateContentResponse
	var err error
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		response, err = g.client.Models.GenerateContent(ctx, g.model, contents, config)
		if err == nil {
			break
		}

		g.logger.Warn("Failed to generate content, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		if attempt < g.maxAttempts-1 {
			select {
			case <-time.After(time.Duration(attempt+1) * g.retryBackoff):
			case <-ctx.Done():
				return "", fmt.Errorf("gemini request cancelled: %w", ctx.Err())
			}
		}
	}
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text := responseText(response)
	if text == "" {
		return "", fmt.Errorf("gemini returned no content")
	}

	g.logger.Debug("Gemini completion",
		zap.String("model", g.model),
		zap.Int("promptLength", len(prompt)),
		zap.Int("responseLength", len(text)))
	return text, nil
}

func responseText(response *genai.GenerateContentResponse) string {
	if response == nil || len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}
