package cim

import (
	"context"
	"log/slog"
)

// LevelTrace sits just above info so that frame-level traffic can be
// filtered independently.
const LevelTrace slog.Level = slog.LevelInfo + 1

// Trace logs a message at LevelTrace with the default logger.
func Trace(msg string, args ...any) {
	slog.Log(context.Background(), LevelTrace, msg, args...)
}
