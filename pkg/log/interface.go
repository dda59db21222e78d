// Package log provides the structured logging interface used across
// randsearch.
//
// The Logger interface is slog-compatible so the backend can be swapped; the
// default backend is zerolog (see zerolog.go). ML-specific attribute keys live
// in attributes.go.
//
// Example usage:
//
//	logger := log.GetLoggerWithName("model_selection").With(
//	    log.ModelNameKey, "RandomForestClassifier",
//	)
//	logger.Info("Search started",
//	    log.SearchIterKey, 20,
//	    log.SamplesKey, 1199,
//	)
package log

import (
	"context"
)

// Logger is a structured logger with key-value fields.
type Logger interface {
	// Debug logs detailed diagnostic information, usually disabled.
	Debug(msg string, fields ...any)

	// Info logs general operational information.
	//
	// Example:
	//   logger.Info("Trial finished",
	//       log.SearchTrialKey, 3,
	//       log.MeanScoreKey, 0.79,
	//   )
	Info(msg string, fields ...any)

	// Warn logs conditions worth a look, e.g. a solver hitting max_iter.
	Warn(msg string, fields ...any)

	// Error logs error conditions. Pass the error under log.ErrAttrKey
	// ("error") to get its stack trace attached by the backend.
	Error(msg string, fields ...any)

	// With returns a Logger that adds fields to every record.
	With(fields ...any) Logger

	// Enabled reports whether records at level would be emitted.
	Enabled(ctx context.Context, level Level) bool
}

// Level is a logging level with slog-compatible values.
type Level int

const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps "debug", "info", "warn" and "error" to a Level.
func ParseLevel(s string) (Level, bool) {
	switch s {
	case "debug":
		return LevelDebug, true
	case "info", "":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	default:
		return LevelInfo, false
	}
}

// LoggerProvider creates loggers; it exists so tests can inject a capturing
// implementation.
type LoggerProvider interface {
	GetLogger() Logger
	GetLoggerWithName(name string) Logger
	SetLevel(level Level)
}
