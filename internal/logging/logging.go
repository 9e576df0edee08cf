// Package logging configures structured logging for lolrus using log/slog.
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// New builds a slog.Logger with the specified level and format, writing to w.
// Supported levels: "debug", "info", "warn", "error" (default: "info").
// Supported formats: "text", "json" (default: "text").
func New(level, format string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// Setup configures the default slog logger. Callers that only need a process
// wide logger use this; the storage client additionally accepts an explicit
// logger for per-connection sinks.
func Setup(level, format string, w io.Writer) {
	slog.SetDefault(New(level, format, w))
}
