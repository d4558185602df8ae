// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package util

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger is the process-wide logger. It is usable before InitLogger runs.
var Logger = newLogger(os.Stderr, false)

// InitLogger initializes the global logger with appropriate log level.
// Set APBRIDGE_DEBUG=1 environment variable to enable debug logging.
func InitLogger() {
	Logger = newLogger(os.Stderr, os.Getenv("APBRIDGE_DEBUG") != "")
}

// SetLogOutput redirects the global logger, keeping the current level.
func SetLogOutput(w io.Writer) {
	Logger = newLogger(w, Logger.Enabled(context.Background(), slog.LevelDebug))
}

func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		// Time and level are noise on an interactive terminal
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && (a.Key == slog.TimeKey || a.Key == slog.LevelKey) {
				return slog.Attr{}
			}
			return a
		},
	})

	return slog.New(NewRedactingHandler(handler))
}

// Debug logs a debug message (only shown when APBRIDGE_DEBUG is set)
func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}
