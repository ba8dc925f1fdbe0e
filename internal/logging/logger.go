package logging

import (
	"strings"

	"go.uber.org/zap"
)

// Config holds logging configuration
type Config struct {
	Level  string // "debug", "info", "warn", "error"
	Format string // "json", "console"
}

// New builds a zap logger. Unknown levels fall back to info and unknown
// formats to the console encoder.
func New(config Config) (*zap.Logger, error) {
	var zapConfig zap.Config
	switch strings.ToLower(config.Format) {
	case "json":
		zapConfig = zap.NewProductionConfig()
	default:
		zapConfig = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(strings.ToLower(config.Level))
	if err != nil {
		level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	zapConfig.Level = level

	return zapConfig.Build(zap.AddStacktrace(zap.ErrorLevel))
}

// Sync flushes buffered entries. Sync on stdout/stderr fails on some
// platforms, so the error is dropped.
func Sync(logger *zap.Logger) {
	if logger != nil {
		_ = logger.Sync()
	}
}
