package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/satriahrh/voicetutor/internal/api"
	"github.com/satriahrh/voicetutor/internal/audiocache"
	"github.com/satriahrh/voicetutor/internal/auth"
	"github.com/satriahrh/voicetutor/internal/config"
	"github.com/satriahrh/voicetutor/internal/logging"
	"github.com/satriahrh/voicetutor/internal/websocket"
	"github.com/satriahrh/voicetutor/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logging.Sync(logger)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
	logger.Info("Server exited")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cleanups cleanupStack
	defer cleanups.run(logger)

	// Speech cache
	tts, err := newTextToSpeech(cfg, logger)
	if err != nil {
		return err
	}
	store, closeStore, err := audiocache.OpenStore(audiocache.StoreConfig{
		Backend:   cfg.Cache.Backend,
		Dir:       cfg.Cache.Dir,
		BoltPath:  cfg.Cache.BoltPath,
		Extension: "." + tts.Format(),
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to open TTS cache: %w", err)
	}
	cleanups.push("tts cache", closeStore)

	speech := audiocache.NewService(store, tts, audiocache.ServiceConfig{
		Timeout:         cfg.TTS.Timeout,
		DefaultLanguage: cfg.TTS.Language,
	}, logger)

	if cfg.Cache.MaxFiles > 0 {
		keeper := audiocache.NewHousekeeper(speech, uint64(cfg.Cache.MaxFiles), cfg.Cache.CleanInterval, logger)
		if cfg.Cache.CleanInterval > 0 {
			keeper.Start()
			cleanups.push("tts cache housekeeper", func() error { keeper.Stop(); return nil })
		} else {
			keeper.RunOnce(ctx)
		}
	}

	// Collaborators
	stt, closeSTT, err := newSpeechToText(ctx, cfg, logger)
	if err != nil {
		return err
	}
	cleanups.push("speech-to-text", closeSTT)

	llm, err := newLanguageModel(ctx, cfg, logger)
	if err != nil {
		return err
	}

	stores, closeStores, err := newUserStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	cleanups.push("user store", closeStores)

	// Use cases
	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	accounts := usecase.NewAccountService(stores.users, stores.history, tokens, logger)
	conversations := usecase.NewConversationService(stt, llm, stores.history, speech, usecase.ConversationConfig{
		Audio:    defaultAudioConfig(cfg),
		Language: cfg.TTS.Language,
	}, logger)

	hub := websocket.NewHub(conversations, speech, logger)
	go hub.Run(ctx)

	// HTTP
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())

	api.InitRoutes(e, api.Dependencies{
		Accounts:      accounts,
		Conversations: conversations,
		Speech:        speech,
		Tokens:        tokens,
		Hub:           hub,
		Logger:        logger,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := e.Start(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logger.Info("Server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("ttsProvider", cfg.TTS.Provider),
		zap.String("cacheBackend", cfg.Cache.Backend),
		zap.String("userStore", cfg.Users.Backend),
		zap.Bool("devMode", cfg.DevMode))

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("failed to serve: %w", err)
	}

	logger.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}
