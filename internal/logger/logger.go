package logger

import (
	"io"
	"log/slog"
	"os"
)

// Logger is the structured logger passed to every component.
type Logger struct {
	*slog.Logger
}

// New logs to stdout. level is a slog level: -4 debug, 0 info, 4 warn, 8 error.
func New(level int) *Logger {
	return NewWithWriter(os.Stdout, level)
}

// NewWithWriter logs text records at level or above to w.
func NewWithWriter(w io.Writer, level int) *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.Level(level)})),
	}
}

// With returns a child logger that adds args to every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Fatal is equivalent to Error followed by os.Exit(1).
func (l *Logger) Fatal(msg string, args ...any) {
	l.Logger.Error(msg, args...)
	os.Exit(1)
}
