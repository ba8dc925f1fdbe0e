package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/voicetutor/adapters/llm"
	"github.com/satriahrh/voicetutor/adapters/memory"
	"github.com/satriahrh/voicetutor/adapters/mock"
	"github.com/satriahrh/voicetutor/adapters/mongo"
	"github.com/satriahrh/voicetutor/adapters/sqlite"
	"github.com/satriahrh/voicetutor/adapters/stt"
	"github.com/satriahrh/voicetutor/adapters/tts"
	"github.com/satriahrh/voicetutor/domain/repositories"
	"github.com/satriahrh/voicetutor/internal/config"
)

// cleanupStack releases resources in reverse order of acquisition
type cleanupStack []namedCleanup

type namedCleanup struct {
	name string
	fn   func() error
}

func (s *cleanupStack) push(name string, fn func() error) {
	*s = append(*s, namedCleanup{name: name, fn: fn})
}

func (s cleanupStack) run(logger *zap.Logger) {
	for i := len(s) - 1; i >= 0; i-- {
		if err := s[i].fn(); err != nil {
			logger.Warn("Failed to release resource", zap.String("resource", s[i].name), zap.Error(err))
		}
	}
}

func newTextToSpeech(cfg *config.Config, logger *zap.Logger) (repositories.TextToSpeech, error) {
	switch cfg.TTS.Provider {
	case "mock":
		return mock.NewTextToSpeech(logger), nil
	case "elevenlabs":
		client, err := tts.NewElevenLabsTTS(tts.NewElevenLabsConfigFromEnv(), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create ElevenLabs TTS: %w", err)
		}
		return client, nil
	default:
		return tts.NewGoogleTranslateTTS(tts.GoogleTTSConfig{}, logger), nil
	}
}

func newSpeechToText(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.SpeechToText, func() error, error) {
	if cfg.DevMode {
		return mock.NewSpeechToText(logger), func() error { return nil }, nil
	}

	var (
		providers []repositories.SpeechToText
		closers   []func() error
	)
	for _, name := range cfg.STT.Providers {
		switch name {
		case "whisper":
			whisperConfig := stt.NewWhisperConfigFromEnv()
			whisperConfig.BaseURL = cfg.STT.WhisperURL
			whisperConfig.Model = cfg.STT.WhisperModel
			if whisperConfig.APIKey == "" {
				logger.Warn("Skipping whisper speech-to-text: no API key")
				continue
			}
			providers = append(providers, stt.NewWhisperSpeechToText(whisperConfig, logger))
		case "google":
			google, err := stt.NewGoogleSpeechToText(ctx, logger)
			if err != nil {
				logger.Warn("Skipping Google speech-to-text", zap.Error(err))
				continue
			}
			providers = append(providers, google)
			closers = append(closers, google.Close)
		case "mock":
			providers = append(providers, mock.NewSpeechToText(logger))
		default:
			logger.Warn("Unknown speech-to-text provider", zap.String("provider", name))
		}
	}

	closeAll := func() error {
		var firstErr error
		for _, c := range closers {
			if err := c(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}
	if len(providers) == 0 {
		closeAll()
		return nil, nil, stt.ErrNoProviders
	}
	return stt.NewChain(logger, providers...), closeAll, nil
}

func newLanguageModel(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.LargeLanguageModel, error) {
	if cfg.DevMode {
		return mock.NewLargeLanguageModel(logger), nil
	}

	var providers []repositories.LargeLanguageModel
	for _, name := range cfg.LLM.Providers {
		switch name {
		case "groq":
			if cfg.LLM.GroqAPIKey == "" {
				logger.Warn("Skipping Groq: GROQ_API_KEY not set")
				continue
			}
			groq, err := llm.NewGroqLLM(llm.GroqConfig{APIKey: cfg.LLM.GroqAPIKey, Model: cfg.LLM.GroqModel}, logger)
			if err != nil {
				return nil, err
			}
			providers = append(providers, groq)
		case "gemini":
			if cfg.LLM.GeminiAPIKey == "" {
				logger.Warn("Skipping Gemini: GEMINI_API_KEY not set")
				continue
			}
			gemini, err := llm.NewGeminiLLM(ctx, llm.GeminiConfig{APIKey: cfg.LLM.GeminiAPIKey, Model: cfg.LLM.GeminiModel}, logger)
			if err != nil {
				return nil, err
			}
			providers = append(providers, gemini)
		case "mock":
			providers = append(providers, mock.NewLargeLanguageModel(logger))
		default:
			logger.Warn("Unknown language model provider", zap.String("provider", name))
		}
	}

	if len(providers) == 0 {
		return nil, fmt.Errorf("%w: set GROQ_API_KEY or GEMINI_API_KEY", llm.ErrNoProviders)
	}
	return llm.NewChain(logger, providers...), nil
}

type userStores struct {
	users   repositories.UserRepository
	history repositories.HistoryRepository
}

func newUserStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (userStores, func() error, error) {
	switch cfg.Users.Backend {
	case "memory":
		store := memory.NewStore()
		return userStores{users: store, history: store}, func() error { return nil }, nil

	case "mongo":
		client, err := mongo.NewClient(ctx, mongo.Config{URI: cfg.Users.MongoURI, Database: cfg.Users.MongoDatabase}, logger)
		if err != nil {
			return userStores{}, nil, err
		}
		closeClient := func() error { return client.Close(context.Background()) }

		users, err := mongo.NewUserRepository(ctx, client, logger)
		if err != nil {
			closeClient()
			return userStores{}, nil, err
		}
		history, err := mongo.NewHistoryRepository(ctx, client, logger)
		if err != nil {
			closeClient()
			return userStores{}, nil, err
		}
		return userStores{users: users, history: history}, closeClient, nil

	default:
		store, err := sqlite.Open(cfg.Users.DBPath, logger)
		if err != nil {
			return userStores{}, nil, err
		}
		return userStores{users: store, history: store}, store.Close, nil
	}
}

func defaultAudioConfig(cfg *config.Config) repositories.AudioConfig {
	return repositories.AudioConfig{
		SampleRate: cfg.STT.SampleRate,
		Language:   cfg.STT.Language,
	}
}
