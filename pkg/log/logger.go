package log

import (
	"io"
	"log/slog"
	"os"

	"github.com/YuminosukeSato/randsearch/pkg/errors"
)

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

// SetupLogger configures both logging paths for a process: the slog default
// (JSON, Cloud Logging field names, stack traces from ErrFmtHandler) and the
// zerolog-backed Logger returned by GetLogger. Warnings raised through
// errors.Warn are routed to the zerolog logger.
func SetupLogger(loglevel string, jsonOutput bool) error {
	return SetupLoggerTo(os.Stderr, loglevel, jsonOutput)
}

// SetupLoggerTo is SetupLogger writing to w.
func SetupLoggerTo(w io.Writer, loglevel string, jsonOutput bool) error {
	level, ok := ParseLevel(loglevel)
	if !ok {
		return errors.NewValidationError("logging.level", "must be one of debug, info, warn, error", loglevel)
	}

	ops := slog.HandlerOptions{
		AddSource: true,
		Level:     slog.Level(level),
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.LevelKey:
				attr.Key = "severity"
			case slog.MessageKey:
				attr.Key = "message"
			case slog.SourceKey:
				attr.Key = "logging.googleapis.com/sourceLocation"
			}
			return attr
		},
	}
	slog.SetDefault(slog.New(WrapByErrFmtHandler(slog.NewJSONHandler(w, &ops))))

	var zl Logger
	if jsonOutput {
		zl = NewZerologLogger(w, level)
	} else {
		zl = NewConsoleLogger(w, level)
	}
	SetLogger(zl)
	InstallWarningSink()
	return nil
}

// ErrAttr is a wrapper to pass err to slog.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}
