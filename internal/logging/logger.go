// Package logging sets up the process-wide zap logger.
//
// Commands call Init once the configuration is known; everything else asks
// for L() or S(). Before Init runs, both return a development logger at
// info level.
package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.Mutex
	logger *zap.Logger
	sugar  *zap.SugaredLogger
)

// Init builds the global logger. verbose forces debug level regardless of
// level. Setting ENVIRONMENT=production switches to JSON output.
func Init(level string, verbose bool) error {
	if verbose {
		level = "debug"
	}

	l, err := New(level, os.Getenv("ENVIRONMENT") == "production")
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	if logger != nil {
		_ = logger.Sync()
	}
	logger = l
	sugar = l.Sugar()
	return nil
}

// New builds a logger without touching the global one.
func New(level string, production bool) (*zap.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	var cfg zap.Config
	if production {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		// Development config prints stack traces from WARN; too noisy for a CLI.
		cfg.DisableStacktrace = true
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}

	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return l, nil
}

// ParseLevel maps a config log level to a zap level. Empty means info.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// L returns the global structured logger.
func L() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		l, err := New("info", false)
		if err != nil {
			l = zap.NewNop()
		}
		logger = l
		sugar = l.Sugar()
	}
	return logger
}

// S returns the global sugared logger.
func S() *zap.SugaredLogger {
	L()
	mu.Lock()
	defer mu.Unlock()
	return sugar
}

// Sync flushes buffered entries. Call before exit.
func Sync() {
	mu.Lock()
	defer mu.Unlock()
	if logger != nil {
		_ = logger.Sync()
	}
}

// WithFile returns a sugared logger tagged with an input file and run id.
func WithFile(path, runID string) *zap.SugaredLogger {
	return S().With("file", path, "run_id", runID)
}
