package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New builds the process logger. Format is "text", "json" or "both"
// (text on stdout, JSON on stderr).
func New(level, format string) *slog.Logger {
	return NewWithWriters(os.Stdout, os.Stderr, level, format)
}

// NewWithWriters is New with explicit destinations for the text and JSON
// handlers.
func NewWithWriters(textOut, jsonOut io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	switch strings.ToLower(format) {
	case "json":
		return slog.New(slog.NewJSONHandler(jsonOut, opts))
	case "both":
		return slog.New(slog.NewMultiHandler(
			slog.NewTextHandler(textOut, opts),
			slog.NewJSONHandler(jsonOut, opts),
		))
	default:
		return slog.New(slog.NewTextHandler(textOut, opts))
	}
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
