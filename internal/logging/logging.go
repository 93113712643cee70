// Package logging builds the structured loggers used across the tool.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Options configures New. A nil Writer logs to stderr, leaving stdout for the
// tool's result.
type Options struct {
	Verbose bool
	Writer  io.Writer
}

// New returns a text logger tagged with component. Verbose enables debug
// output; otherwise only warnings and errors are written.
func New(component string, opts Options) *slog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With(slog.String("component", component))
}

// Subsystem derives a logger for a part of a component.
func Subsystem(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = Discard()
	}
	return logger.With(slog.String("subsystem", name))
}

// WithSession tags logger with the session id.
func WithSession(logger *slog.Logger, sessionID string) *slog.Logger {
	return logger.With(slog.String("session_id", sessionID))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
