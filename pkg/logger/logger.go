// Package logger provides construction of the process-wide zap logger.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerConfig contains options for building a logger.
type LoggerConfig struct {
	// Debug enables debug-level logging and development-friendly output
	Debug bool
}

// NewLogger creates a new zap logger with the provided configuration.
// All log entries, warnings and errors included, are written to stderr.
func NewLogger(cfg *LoggerConfig) (*zap.Logger, error) {
	c := zap.NewProductionConfig()
	c.OutputPaths = []string{"stderr"}
	c.ErrorOutputPaths = []string{"stderr"}
	c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg != nil && cfg.Debug {
		c.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		c.Development = true
	}
	return c.Build()
}

// NewNoopLogger returns a logger that discards everything. Used in tests
// and as a fallback when callers pass a nil logger.
func NewNoopLogger() *zap.Logger {
	return zap.NewNop()
}
