// Package logging builds the zap loggers used across warden.
package logging

import (
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls logger construction.
type Options struct {
	// Level is the minimum level to emit ("debug", "info", "warn", "error").
	Level string
	// LogDir, when set, routes output to warden.log in that directory
	// instead of stderr.
	LogDir string
	// Development selects the human-readable console encoder.
	Development bool
}

// New constructs a logger from the given options. Construction never fails:
// if the configured sink is unusable it falls back to a stderr logger.
func New(opts Options) *zap.Logger {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if parsed, err := zapcore.ParseLevel(opts.Level); err == nil {
			level = parsed
		}
	}

	var cfg zap.Config
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if opts.LogDir != "" {
		cfg.OutputPaths = []string{filepath.Join(opts.LogDir, "warden.log")}
		cfg.ErrorOutputPaths = cfg.OutputPaths
	}

	logger, err := cfg.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger
}
