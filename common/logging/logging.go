// Package logging provides a thin, structured logger used throughout the
// engine, in the same GetLogger(name)-returns-a-kv-logger shape used by
// every oasis-core package (e.g. runtime/host/protocol.connection.logger).
package logging

import (
	"sync"

	"go.uber.org/zap"
)

// Logger is a structured, leveled logger.
type Logger struct {
	sugar *zap.SugaredLogger
	name  string
}

var (
	rootOnce sync.Once
	root     *zap.Logger
)

func getRoot() *zap.Logger {
	rootOnce.Do(func() {
		cfg := zap.NewProductionConfig()
		cfg.DisableStacktrace = true
		l, err := cfg.Build()
		if err != nil {
			// Fall back to a no-op logger rather than panic: logging must
			// never be the reason the engine fails to run.
			l = zap.NewNop()
		}
		root = l
	})
	return root
}

// GetLogger returns a named logger. Calling it repeatedly with the same
// name is cheap and returns independently usable loggers.
func GetLogger(name string) *Logger {
	return &Logger{
		sugar: getRoot().Sugar().Named(name),
		name:  name,
	}
}

// Debug logs at debug level with structured key-value pairs.
func (l *Logger) Debug(msg string, kv ...interface{}) {
	l.sugar.Debugw(msg, kv...)
}

// Info logs at info level with structured key-value pairs.
func (l *Logger) Info(msg string, kv ...interface{}) {
	l.sugar.Infow(msg, kv...)
}

// Warn logs at warn level with structured key-value pairs.
func (l *Logger) Warn(msg string, kv ...interface{}) {
	l.sugar.Warnw(msg, kv...)
}

// Error logs at error level with structured key-value pairs.
func (l *Logger) Error(msg string, kv ...interface{}) {
	l.sugar.Errorw(msg, kv...)
}
