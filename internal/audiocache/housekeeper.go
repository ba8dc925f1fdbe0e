package audiocache

import (
	"context"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// DefaultHousekeepingInterval is how often the housekeeper checks the threshold
const DefaultHousekeepingInterval = 30 * time.Minute

// Housekeeper periodically clears the cache once it holds more than MaxFiles
// artifacts.
type Housekeeper struct {
	service  *Service
	maxFiles uint64
	interval time.Duration
	logger   *zap.Logger

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewHousekeeper creates a housekeeper. A zero interval means DefaultHousekeepingInterval.
func NewHousekeeper(service *Service, maxFiles uint64, interval time.Duration, logger *zap.Logger) *Housekeeper {
	if interval <= 0 {
		interval = DefaultHousekeepingInterval
	}
	return &Housekeeper{
		service:  service,
		maxFiles: maxFiles,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start runs one pass immediately and then one per interval
func (h *Housekeeper) Start() {
	h.wg.Add(1)
	go h.loop()
	h.logger.Info("TTS cache housekeeper started",
		zap.Uint64("maxFiles", h.maxFiles),
		zap.Duration("interval", h.interval))
}

// Stop stops the loop and waits for a running pass to finish
func (h *Housekeeper) Stop() {
	h.stopOnce.Do(func() { close(h.stopChan) })
	h.wg.Wait()
	h.logger.Info("TTS cache housekeeper stopped")
}

func (h *Housekeeper) loop() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.RunOnce(context.Background())
	for {
		select {
		case <-h.stopChan:
			return
		case <-ticker.C:
			h.RunOnce(context.Background())
		}
	}
}

// RunOnce performs a single threshold check and returns how many artifacts were removed
func (h *Housekeeper) RunOnce(ctx context.Context) uint64 {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	removed, err := h.service.ClearIfOver(ctx, h.maxFiles)
	if err != nil {
		h.logger.Error("TTS cache housekeeping failed", zap.Error(err))
		return 0
	}
	if removed > 0 {
		h.logger.Info("TTS cache cleared",
			zap.Uint64("removed", removed),
			zap.String("threshold", humanize.Comma(int64(h.maxFiles))))
	}
	return removed
}
