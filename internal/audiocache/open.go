package audiocache

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// StoreConfig selects and locates an artifact store
type StoreConfig struct {
	Backend   string // "file" (default) or "bolt"
	Dir       string
	BoltPath  string
	Extension string
}

// OpenStore opens the configured store. The returned close function releases
// it and is safe to call for every backend.
func OpenStore(config StoreConfig, logger *zap.Logger) (Store, func() error, error) {
	switch config.Backend {
	case "", "file":
		store, err := NewFileStore(config.Dir, config.Extension, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, func() error { return nil }, nil
	case "bolt":
		store, err := OpenBoltStore(config.BoltPath, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown TTS cache backend: %q", config.Backend)
	}
}

// Summarize computes the store part of Stats
func Summarize(ctx context.Context, store Store) (Stats, error) {
	entries, err := store.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	var total uint64
	for _, e := range entries {
		total += e.SizeBytes
	}
	return Stats{
		FileCount:      uint64(len(entries)),
		TotalSizeBytes: total,
		TotalSizeMB:    bytesToMB(total),
	}, nil
}
