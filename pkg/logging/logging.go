// Package logging builds the concrete zap-backed logr.Logger the rest of
// this module's constructors take. Every other package accepts a
// logr.Logger and never touches zap directly; this is the one place the
// process edge (a TUI, a CLI, a test harness) picks the backend.
package logging

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects how the underlying zap logger is built.
type Options struct {
	// Development switches to zap's development config: console encoding,
	// debug level by default, stack traces on warnings.
	Development bool
	// Level overrides the config's default level when non-empty. Accepts
	// zap's level names: debug, info, warn, error, dpanic, panic, fatal.
	Level string
}

// NewLogger builds a logr.Logger backed by zap per opts.
func NewLogger(opts Options) (logr.Logger, error) {
	var cfg zap.Config
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	if opts.Level != "" {
		level, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return logr.Logger{}, fmt.Errorf("parsing log level %q: %w", opts.Level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(level)
	}

	zapLogger, err := cfg.Build()
	if err != nil {
		return logr.Logger{}, fmt.Errorf("building logger: %w", err)
	}
	return zapr.NewLogger(zapLogger), nil
}

// NewNopLogger returns a logger that discards everything, for callers that
// want the wiring without the output (benchmarks, quiet tests).
func NewNopLogger() logr.Logger {
	return zapr.NewLogger(zap.NewNop())
}
