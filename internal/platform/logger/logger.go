package logger

import (
	"log/slog"
	"os"
)

// New returns the JSON slog logger used throughout the services.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
