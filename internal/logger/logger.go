package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures the process logger.
type Options struct {
	ServiceName string
	Level       string
	Development bool
}

// New builds a zap logger. Development mode switches to the console encoder.
func New(opts Options) (*zap.Logger, error) {
	var cfg zap.Config
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "time"
		cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(ParseLevel(opts.Level))

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	if opts.ServiceName != "" {
		logger = logger.With(zap.String("service", opts.ServiceName))
	}
	return logger, nil
}

// ParseLevel maps a textual level to zap, falling back to info.
func ParseLevel(value string) zapcore.Level {
	levelString := strings.ToLower(strings.TrimSpace(value))
	if levelString == "" {
		return zapcore.InfoLevel
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(levelString)); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}
