package audiocache

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/satriahrh/voicetutor/domain/repositories"
)

const (
	DefaultLanguage = "en"
	DefaultTimeout  = 30 * time.Second
)

var errEmptyAudio = errors.New("backend returned no audio")

// ServiceConfig holds the tunables of Service
type ServiceConfig struct {
	// Timeout bounds a single backend call. Zero means DefaultTimeout.
	Timeout time.Duration
	// DefaultLanguage is used when a request carries no language.
	DefaultLanguage string
}

// Result describes the artifact served for a request.
type Result struct {
	Key     Key
	Locator Locator
	Hit     bool
}

// Stats summarizes the store contents and the service counters.
type Stats struct {
	FileCount      uint64  `json:"file_count"`
	TotalSizeBytes uint64  `json:"total_size_bytes"`
	TotalSizeMB    float64 `json:"total_size_mb"`
	Hits           uint64  `json:"hits"`
	Misses         uint64  `json:"misses"`
	BackendCalls   uint64  `json:"backend_calls"`
}

// Service fronts a synthesis backend with a Store. The backend is only called
// on a miss; concurrent misses for the same key share one backend call.
type Service struct {
	store   Store
	backend repositories.TextToSpeech
	config  ServiceConfig
	group   singleflight.Group
	logger  *zap.Logger

	hits         atomic.Uint64
	misses       atomic.Uint64
	backendCalls atomic.Uint64
}

// NewService creates a cache-fronted synthesis service
func NewService(store Store, backend repositories.TextToSpeech, config ServiceConfig, logger *zap.Logger) *Service {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if NormalizeLanguage(config.DefaultLanguage) == "" {
		config.DefaultLanguage = DefaultLanguage
	}
	return &Service{
		store:   store,
		backend: backend,
		config:  config,
		logger:  logger,
	}
}

// Store returns the underlying artifact store.
func (s *Service) Store() Store { return s.store }

// GetOrSynthesize returns the locator of the artifact for the request,
// synthesizing and storing it on a miss. An empty language means the default
// language and an empty rate means RateNormal.
//
// Expected failures are ErrEmptyText and *SynthesisError. A *StorageError
// means the store itself is unhealthy.
func (s *Service) GetOrSynthesize(ctx context.Context, text, language string, rate repositories.Rate) (Locator, error) {
	res, err := s.Resolve(ctx, text, language, rate)
	if err != nil {
		return "", err
	}
	return res.Locator, nil
}

// Resolve is GetOrSynthesize returning the key and hit flag as well.
func (s *Service) Resolve(ctx context.Context, text, language string, rate repositories.Rate) (Result, error) {
	text = NormalizeText(text)
	if text == "" {
		return Result{}, ErrEmptyText
	}
	language, rate, err := s.params(language, rate)
	if err != nil {
		return Result{}, err
	}

	key := ComputeKey(text, language, rate)
	ok, err := s.store.Exists(ctx, key)
	if err != nil {
		return Result{}, err
	}
	if ok {
		s.hits.Add(1)
		s.logger.Debug("TTS cache hit", zap.String("cacheKey", key.String()))
		return Result{Key: key, Locator: s.store.Locator(key), Hit: true}, nil
	}

	// The flight outlives any single caller; each caller only stops waiting
	// when its own context ends. populate still applies the backend timeout.
	flightCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(string(key), func() (interface{}, error) {
		return s.populate(flightCtx, key, text, language, rate)
	})
	select {
	case <-ctx.Done():
		return Result{}, &SynthesisError{Language: language, Rate: rate, Err: ctx.Err()}
	case r := <-ch:
		if r.Err != nil {
			return Result{}, r.Err
		}
		return r.Val.(Result), nil
	}
}

func (s *Service) populate(ctx context.Context, key Key, text, language string, rate repositories.Rate) (Result, error) {
	// Another flight may have finished between the first check and this one.
	ok, err := s.store.Exists(ctx, key)
	if err != nil {
		return Result{}, err
	}
	if ok {
		s.hits.Add(1)
		return Result{Key: key, Locator: s.store.Locator(key), Hit: true}, nil
	}

	s.misses.Add(1)
	s.backendCalls.Add(1)
	start := time.Now()

	synthCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	audio, err := s.backend.Synthesize(synthCtx, text, language, rate)
	if err == nil && len(audio) == 0 {
		err = errEmptyAudio
	}
	if err != nil {
		return Result{}, &SynthesisError{Language: language, Rate: rate, Err: err}
	}

	loc, err := s.store.Write(ctx, key, audio)
	if err != nil {
		return Result{}, err
	}

	s.logger.Info("TTS cache miss populated",
		zap.String("cacheKey", key.String()),
		zap.String("language", language),
		zap.String("rate", string(rate)),
		zap.String("size", humanize.Bytes(uint64(len(audio)))),
		zap.Duration("duration", time.Since(start)))
	return Result{Key: key, Locator: loc}, nil
}

func (s *Service) params(language string, rate repositories.Rate) (string, repositories.Rate, error) {
	language = NormalizeLanguage(language)
	if language == "" {
		language = NormalizeLanguage(s.config.DefaultLanguage)
	}
	if rate == "" {
		rate = repositories.RateNormal
	}
	if !rate.Valid() {
		return "", "", &SynthesisError{Language: language, Rate: rate, Err: fmt.Errorf("unsupported rate %q", rate)}
	}
	return language, rate, nil
}

// TrySynthesize is the best-effort form of Resolve: every failure is logged
// and reported as ok=false.
func (s *Service) TrySynthesize(ctx context.Context, text, language string, rate repositories.Rate) (Result, bool) {
	res, err := s.Resolve(ctx, text, language, rate)
	switch {
	case err == nil:
		return res, true
	case errors.Is(err, ErrEmptyText):
		s.logger.Debug("Skipping synthesis of empty text")
	case IsStorageError(err):
		s.logger.Error("TTS cache storage failure", zap.Error(err))
	default:
		s.logger.Warn("Speech synthesis failed", zap.Error(err))
	}
	return Result{}, false
}

// Bytes returns the audio for the request, synthesizing it on a miss.
func (s *Service) Bytes(ctx context.Context, text, language string, rate repositories.Rate) ([]byte, error) {
	res, err := s.Resolve(ctx, text, language, rate)
	if err != nil {
		return nil, err
	}
	return s.store.Read(ctx, res.Key)
}

// Artifact reads a stored artifact by key without ever calling the backend.
func (s *Service) Artifact(ctx context.Context, key Key) ([]byte, error) {
	if !key.Valid() {
		return nil, ErrNotFound
	}
	return s.store.Read(ctx, key)
}

// Format returns the media format of stored artifacts, as reported by the backend.
func (s *Service) Format() string {
	return s.backend.Format()
}

// Stats reports the store contents and the service counters.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	stats, err := Summarize(ctx, s.store)
	if err != nil {
		return Stats{}, err
	}
	stats.Hits = s.hits.Load()
	stats.Misses = s.misses.Load()
	stats.BackendCalls = s.backendCalls.Load()
	return stats, nil
}

// Clear removes every artifact and returns how many were removed.
func (s *Service) Clear(ctx context.Context) (uint64, error) {
	return s.store.ClearAll(ctx)
}

// ClearIfOver removes every artifact only when there are more than maxCount.
func (s *Service) ClearIfOver(ctx context.Context, maxCount uint64) (uint64, error) {
	return s.store.ClearIfOver(ctx, maxCount)
}

func bytesToMB(n uint64) float64 {
	return math.Round(float64(n)/(1024*1024)*100) / 100
}
