package llm

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/voicetutor/domain/repositories"
)

// ErrNoProviders is returned by a Chain with nothing configured
var ErrNoProviders = errors.New("no language model providers configured")

// Chain tries its providers in order and returns the first non-empty answer
type Chain struct {
	providers []repositories.LargeLanguageModel
	logger    *zap.Logger
}

var _ repositories.LargeLanguageModel = (*Chain)(nil)

// NewChain creates a fallback chain. Order is preference order.
func NewChain(logger *zap.Logger, providers ...repositories.LargeLanguageModel) *Chain {
	return &Chain{providers: providers, logger: logger}
}

// Name implements repositories.LargeLanguageModel
func (c *Chain) Name() string {
	return "chain"
}

// Len returns the number of providers
func (c *Chain) Len() int {
	return len(c.providers)
}

// Complete implements repositories.LargeLanguageModel
func (c *Chain) Complete(ctx context.Context, prompt string, opts repositories.CompletionOptions) (string, error) {
	if len(c.providers) == 0 {
		return "", ErrNoProviders
	}

	var errs []error
	for _, p := range c.providers {
		text, err := p.Complete(ctx, prompt, opts)
		if err == nil && text != "" {
			return text, nil
		}
		if err == nil {
			err = errors.New("empty completion")
		}
		c.logger.Warn("Language model provider failed, trying next",
			zap.String("provider", p.Name()),
			zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))

		if ctx.Err() != nil {
			break
		}
	}
	return "", errors.Join(errs...)
}
