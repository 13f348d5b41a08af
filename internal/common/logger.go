package common

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the process logger. format is "json" or "text".
func NewLogger(service string, cfg LogConfig) *slog.Logger {
	return newLogger(os.Stdout, service, cfg)
}

func newLogger(w io.Writer, service string, cfg LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h).With("service", service)
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLoggerWriter is NewLogger with an explicit sink; CLIs log to stderr so
// stdout stays machine readable.
func NewLoggerWriter(w io.Writer, service string, cfg LogConfig) *slog.Logger {
	return newLogger(w, service, cfg)
}
