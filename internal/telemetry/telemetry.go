// Package telemetry builds the zap loggers used across the module.
// Every component that logs takes a *zap.Logger through its constructor
// and defaults to zap.NewNop() when none is given, so logging is always
// optional and never forced on a library caller.
package telemetry

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a production-style JSON logger at the given level
// ("debug", "info", "warn", "error"; unrecognized values fall back to
// "info").
func NewLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	return cfg.Build()
}

// NewDevelopmentLogger builds a human-readable console logger, suited to
// the cmd/dialog-bench CLI and local debugging.
func NewDevelopmentLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel
	}
	return l
}
