package stt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/voicetutor/domain/repositories"
)

var (
	// ErrEmptyAudio is returned without consulting any provider
	ErrEmptyAudio = errors.New("empty audio")
	// ErrNoProviders is returned by a Chain with nothing configured
	ErrNoProviders = errors.New("no speech-to-text providers configured")
)

// Chain tries its providers in preference order and returns the first
// non-blank transcript
type Chain struct {
	providers []repositories.SpeechToText
	logger    *zap.Logger
}

var _ repositories.SpeechToText = (*Chain)(nil)

// NewChain creates a fallback chain
func NewChain(logger *zap.Logger, providers ...repositories.SpeechToText) *Chain {
	return &Chain{providers: providers, logger: logger}
}

// Name implements repositories.SpeechToText
func (c *Chain) Name() string {
	return "chain"
}

// Len returns the number of providers
func (c *Chain) Len() int {
	return len(c.providers)
}

// TranscribeAudio implements repositories.SpeechToText
func (c *Chain) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	if len(audioData) == 0 {
		return "", ErrEmptyAudio
	}
	if len(c.providers) == 0 {
		return "", ErrNoProviders
	}

	var errs []error
	for _, p := range c.providers {
		text, err := p.TranscribeAudio(ctx, audioData, config)
		if err == nil {
			if text = strings.TrimSpace(text); text != "" {
				return text, nil
			}
			err = errors.New("blank transcript")
		}
		c.logger.Warn("Speech-to-text provider failed, trying next",
			zap.String("provider", p.Name()),
			zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))

		if ctx.Err() != nil {
			break
		}
	}
	return "", errors.Join(errs...)
}
