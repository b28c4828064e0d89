package logger

import (
	"log/slog"
	"os"
)

// New returns a JSON slog logger tagged with the principal it serves.
// Services receive it by injection, never as package state.
func New(principalID string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return slog.New(handler).With("principal", principalID)
}
