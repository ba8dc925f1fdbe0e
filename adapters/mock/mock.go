// Package mock provides deterministic offline collaborators for development
// mode and tests. Nothing here calls the network.
package mock

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/voicetutor/domain/repositories"
)

// mp3FrameHeader is an MPEG-1 Layer III frame sync so mock artifacts sniff as audio/mpeg
var mp3FrameHeader = []byte{0xFF, 0xFB, 0x90, 0x44}

// SpeechToText is a placeholder implementation for speech recognition
type SpeechToText struct {
	logger *zap.Logger
}

var _ repositories.SpeechToText = (*SpeechToText)(nil)

// NewSpeechToText creates a new mock speech-to-text service
func NewSpeechToText(logger *zap.Logger) *SpeechToText {
	return &SpeechToText{logger: logger}
}

// Name implements repositories.SpeechToText
func (s *SpeechToText) Name() string { return "mock" }

// TranscribeAudio implements repositories.SpeechToText
func (s *SpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	s.logger.Debug("Processing speech-to-text",
		zap.Int("audioSize", len(audioData)),
		zap.Int("sampleRate", config.SampleRate),
		zap.String("encoding", config.Encoding))

	// Mock transcription based on audio size
	switch {
	case len(audioData) == 0:
		return "", fmt.Errorf("no audio data received")
	case len(audioData) > 10000:
		return "Can you explain how photosynthesis works?", nil
	case len(audioData) > 5000:
		return "What is the speed of light?", nil
	case len(audioData) > 1000:
		return "Why is the sky blue?", nil
	default:
		return "Hello", nil
	}
}

// LargeLanguageModel answers every prompt with a fixed educational reply
type LargeLanguageModel struct {
	logger *zap.Logger
}

var _ repositories.LargeLanguageModel = (*LargeLanguageModel)(nil)

// NewLargeLanguageModel creates a new mock language model
func NewLargeLanguageModel(logger *zap.Logger) *LargeLanguageModel {
	return &LargeLanguageModel{logger: logger}
}

// Name implements repositories.LargeLanguageModel
func (m *LargeLanguageModel) Name() string { return "mock" }

// Complete implements repositories.LargeLanguageModel
func (m *LargeLanguageModel) Complete(ctx context.Context, prompt string, opts repositories.CompletionOptions) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}
	m.logger.Debug("Mock completion", zap.Int("promptLength", len(prompt)))
	return fmt.Sprintf("Great question! You asked: %q. Let's explore it step by step, starting with the basics.", prompt), nil
}

// TextToSpeech produces deterministic pseudo-mp3 bytes derived from the request
type TextToSpeech struct {
	logger *zap.Logger
}

var _ repositories.TextToSpeech = (*TextToSpeech)(nil)

// NewTextToSpeech creates a new mock text-to-speech service
func NewTextToSpeech(logger *zap.Logger) *TextToSpeech {
	return &TextToSpeech{logger: logger}
}

// Format implements repositories.TextToSpeech
func (t *TextToSpeech) Format() string { return "mp3" }

// Synthesize implements repositories.TextToSpeech
func (t *TextToSpeech) Synthesize(ctx context.Context, text, language string, rate repositories.Rate) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}
	t.logger.Debug("Processing text-to-speech",
		zap.Int("textLength", len(text)),
		zap.String("language", language),
		zap.String("rate", string(rate)))

	// Simulate audio size from text length; slow speech is longer
	size := len(text) * 100
	if rate == repositories.RateSlow {
		size *= 2
	}

	seed := sha256.Sum256([]byte(language + "|" + string(rate) + "|" + text))
	audio := make([]byte, len(mp3FrameHeader)+size)
	copy(audio, mp3FrameHeader)
	for i := len(mp3FrameHeader); i < len(audio); i++ {
		audio[i] = seed[i%len(seed)] ^ byte(i)
	}
	return audio, nil
}
