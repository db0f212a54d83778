// Package logging provides the process-wide structured logger.
package logging

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger *zap.Logger
	once   sync.Once
)

// Options select the logger configuration
type Options struct {
	// Production selects the JSON encoder; otherwise a colored console encoder is used.
	Production bool
	// Level is a zap level name ("debug", "info", ...). Empty means info.
	Level string
}

// Init initializes the global logger. Only the first call takes effect.
func Init(opts Options) {
	once.Do(func() {
		logger = build(opts)
	})
}

func build(opts Options) *zap.Logger {
	var cfg zap.Config
	if opts.Production {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(ParseLevel(opts.Level))

	l, err := cfg.Build()
	if err != nil {
		// Fallback to nop logger
		return zap.NewNop()
	}
	return l
}

// ParseLevel maps a level name to a zap level, defaulting to info
func ParseLevel(level string) zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(level)))); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// L returns the global structured logger
func L() *zap.Logger {
	if logger == nil {
		Init(Options{})
	}
	return logger
}

// StripeLogger returns a sugared logger for the Stripe SDK. The SDK logs
// every request at info, so its output starts at warn unless debug is enabled.
func StripeLogger() *zap.SugaredLogger {
	l := L().Named("stripe")
	if !l.Core().Enabled(zapcore.DebugLevel) {
		l = l.WithOptions(zap.IncreaseLevel(zapcore.WarnLevel))
	}
	return l.Sugar()
}

// Sync flushes any buffered log entries. Call before app exit.
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}
