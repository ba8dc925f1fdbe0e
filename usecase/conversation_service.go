package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/voicetutor/domain/repositories"
	"github.com/satriahrh/voicetutor/internal/audiocache"
)

// LearningAssistantPrompt steers the model toward short spoken explanations
const LearningAssistantPrompt = `You are a helpful voice-first learning assistant. Your role is to:
- Provide clear, concise explanations suitable for voice interaction
- Break down complex topics into simple, understandable parts
- Use examples and analogies to aid understanding
- Encourage curiosity and further learning
- Keep responses conversational and engaging
- Limit responses to 2-3 paragraphs for voice delivery

Always be patient, supportive, and adapt your explanations to the learner's needs.`

// AudioURLPrefix is where the HTTP API serves cached artifacts by key
const AudioURLPrefix = "/api/v1/audio/"

// AudioUnavailableNotice is shown when the answer has no audio
const AudioUnavailableNotice = "Failed to generate audio response"

var (
	ErrTranscriptionUnavailable = errors.New("failed to transcribe audio")
	ErrCompletionUnavailable    = errors.New("failed to get response from assistant")
)

// learningOptions are the completion settings for a learner question
var learningOptions = repositories.CompletionOptions{
	SystemPrompt: LearningAssistantPrompt,
	MaxTokens:    512,
	Temperature:  repositories.Temperature(0.7),
}

// ConversationConfig holds per-deployment conversation settings
type ConversationConfig struct {
	// Audio describes recorded questions when the caller does not.
	Audio repositories.AudioConfig
	// Language and Rate select the spoken answer.
	Language string
	Rate     repositories.Rate
}

// Answer is the outcome of one question
type Answer struct {
	Transcript     string `json:"transcript"`
	Response       string `json:"response"`
	AudioAvailable bool   `json:"audio_available"`
	AudioKey       string `json:"audio_key,omitempty"`
	AudioURL       string `json:"audio_url,omitempty"`
	AudioLocator   string `json:"-"`
	CacheHit       bool   `json:"cache_hit"`
	HistorySaved   bool   `json:"history_saved"`
	Notice         string `json:"notice,omitempty"`
}

// ConversationService runs the voice loop: transcribe, answer, remember, speak
type ConversationService struct {
	speechToText repositories.SpeechToText
	llm          repositories.LargeLanguageModel
	history      repositories.HistoryRepository
	speech       *audiocache.Service
	config       ConversationConfig
	logger       *zap.Logger
}

// NewConversationService creates a new conversation service
func NewConversationService(
	stt repositories.SpeechToText,
	llm repositories.LargeLanguageModel,
	history repositories.HistoryRepository,
	speech *audiocache.Service,
	config ConversationConfig,
	logger *zap.Logger,
) *ConversationService {
	if config.Rate == "" {
		config.Rate = repositories.RateNormal
	}
	return &ConversationService{
		speechToText: stt,
		llm:          llm,
		history:      history,
		speech:       speech,
		config:       config,
		logger:       logger,
	}
}

// Ask answers a recorded question. Zero fields of audioConfig fall back to the
// service defaults.
func (s *ConversationService) Ask(ctx context.Context, userID string, audio []byte, audioConfig repositories.AudioConfig) (*Answer, error) {
	audioConfig = s.audioConfig(audioConfig)

	s.logger.Info("Processing recorded question",
		zap.String("userID", userID),
		zap.Int("audioSize", len(audio)))

	if len(audio) == 0 {
		return nil, ErrTranscriptionUnavailable
	}
	transcript, err := s.speechToText.TranscribeAudio(ctx, audio, audioConfig)
	transcript = strings.TrimSpace(transcript)
	if err != nil || transcript == "" {
		s.logger.Warn("Transcription unavailable", zap.String("userID", userID), zap.Error(err))
		return nil, ErrTranscriptionUnavailable
	}

	s.logger.Info("Transcription completed", zap.String("userID", userID), zap.String("text", transcript))
	return s.AskText(ctx, userID, transcript)
}

// AskText answers a question given as text
func (s *ConversationService) AskText(ctx context.Context, userID, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", ErrInvalidInput)
	}

	response, err := s.llm.Complete(ctx, question, learningOptions)
	response = strings.TrimSpace(response)
	if err != nil || response == "" {
		s.logger.Warn("Completion unavailable", zap.String("userID", userID), zap.Error(err))
		return nil, ErrCompletionUnavailable
	}

	answer := &Answer{Transcript: question, Response: response}

	if _, err := s.history.Append(ctx, userID, question, response); err != nil {
		s.logger.Warn("Could not save conversation to history", zap.String("userID", userID), zap.Error(err))
	} else {
		answer.HistorySaved = true
	}

	res, ok := s.speech.TrySynthesize(ctx, response, s.config.Language, s.config.Rate)
	if !ok {
		answer.Notice = AudioUnavailableNotice
		return answer, nil
	}

	answer.AudioAvailable = true
	answer.AudioKey = res.Key.String()
	answer.AudioURL = AudioURLPrefix + res.Key.String()
	answer.AudioLocator = string(res.Locator)
	answer.CacheHit = res.Hit

	s.logger.Info("Answer ready",
		zap.String("userID", userID),
		zap.String("cacheKey", answer.AudioKey),
		zap.Bool("cacheHit", res.Hit))
	return answer, nil
}

func (s *ConversationService) audioConfig(c repositories.AudioConfig) repositories.AudioConfig {
	if c.SampleRate == 0 {
		c.SampleRate = s.config.Audio.SampleRate
	}
	if c.Encoding == "" {
		c.Encoding = s.config.Audio.Encoding
	}
	if c.Language == "" {
		c.Language = s.config.Audio.Language
	}
	return c
}
