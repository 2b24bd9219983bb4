// Package testutil holds helpers shared by package tests.
package testutil

import (
	"io"
	"log/slog"

	"github.com/dtroode/easygrocer/internal/logger"
)

// MakeNoopLogger returns a logger that drops every record.
func MakeNoopLogger() *logger.Logger {
	return logger.NewWithWriter(io.Discard, int(slog.LevelError+1))
}
