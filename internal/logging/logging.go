// Package logging builds the process-wide structured logger.
package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/log"
)

// New returns a slog.Logger backed by a charmbracelet/log handler writing to
// stderr. format is "text" or "json"; anything else falls back to text.
func New(level, format string) *slog.Logger {
	return NewWithWriter(os.Stderr, level, format)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, level, format string) *slog.Logger {
	formatter := log.TextFormatter
	if format == "json" {
		formatter = log.JSONFormatter
	}

	handler := log.NewWithOptions(w, log.Options{
		Level:           log.Level(ParseLevel(level)),
		ReportTimestamp: true,
		Formatter:       formatter,
	})

	return slog.New(handler)
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
