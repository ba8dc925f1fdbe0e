package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/voicetutor/domain/repositories"
)

const (
	defaultWhisperModel = "whisper-large-v3"
	defaultWhisperURL   = "https://api.groq.com/openai/v1"
)

// WhisperConfig holds configuration for an OpenAI-compatible transcription endpoint
type WhisperConfig struct {
	BaseURL    string // Optional: default Groq's OpenAI-compatible API
	APIKey     string // Optional for self-hosted servers
	Model      string // Optional: default whisper-large-v3
	HTTPClient *http.Client
}

// WhisperSpeechToText posts recordings to /audio/transcriptions
type WhisperSpeechToText struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	logger  *zap.Logger
}

var _ repositories.SpeechToText = (*WhisperSpeechToText)(nil)

type transcriptionResponse struct {
	Text string `json:"text"`
}

// NewWhisperConfigFromEnv reads WHISPER_URL, WHISPER_MODEL and the API key,
// falling back to GROQ_API_KEY for the default endpoint
func NewWhisperConfigFromEnv() WhisperConfig {
	apiKey := os.Getenv("WHISPER_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GROQ_API_KEY")
	}
	return WhisperConfig{
		BaseURL: os.Getenv("WHISPER_URL"),
		APIKey:  apiKey,
		Model:   os.Getenv("WHISPER_MODEL"),
	}
}

// NewWhisperSpeechToText creates a new Whisper transcription client
func NewWhisperSpeechToText(config WhisperConfig, logger *zap.Logger) *WhisperSpeechToText {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultWhisperURL
	}
	model := config.Model
	if model == "" {
		model = defaultWhisperModel
	}
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &WhisperSpeechToText{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  config.APIKey,
		model:   model,
		client:  client,
		logger:  logger,
	}
}

// Name implements repositories.SpeechToText
func (w *WhisperSpeechToText) Name() string {
	return "whisper"
}

// TranscribeAudio implements repositories.SpeechToText
func (w *WhisperSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	if len(audioData) == 0 {
		return "", fmt.Errorf("empty audio data")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio"+fileExtension(config.Encoding))
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(audioData); err != nil {
		return "", fmt.Errorf("failed to write audio data: %w", err)
	}
	if err := writer.WriteField("model", w.model); err != nil {
		return "", fmt.Errorf("failed to write model field: %w", err)
	}
	if lang := whisperLanguage(config.Language); lang != "" {
		if err := writer.WriteField("language", lang); err != nil {
			return "", fmt.Errorf("failed to write language field: %w", err)
		}
	}
	if err := writer.WriteField("response_format", "json"); err != nil {
		return "", fmt.Errorf("failed to write response format field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if w.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+w.apiKey)
	}

	start := time.Now()
	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("transcription failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(errorBody)))
	}

	var transcription transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&transcription); err != nil {
		return "", fmt.Errorf("failed to parse transcription response: %w", err)
	}

	text := strings.TrimSpace(transcription.Text)
	if text == "" {
		return "", fmt.Errorf("no speech detected in audio")
	}

	w.logger.Debug("Whisper transcription completed",
		zap.Duration("duration", time.Since(start)),
		zap.Int("textLength", len(text)))
	return text, nil
}

// whisperLanguage reduces a BCP-47 tag such as en-US to its ISO-639-1 part
func whisperLanguage(language string) string {
	language = strings.ToLower(strings.TrimSpace(language))
	if i := strings.IndexAny(language, "-_"); i > 0 {
		language = language[:i]
	}
	return language
}

func fileExtension(encoding string) string {
	switch strings.ToUpper(encoding) {
	case "WEBM_OPUS":
		return ".webm"
	case "OGG_OPUS":
		return ".ogg"
	case "FLAC":
		return ".flac"
	case "MP3":
		return ".mp3"
	default:
		return ".wav"
	}
}
