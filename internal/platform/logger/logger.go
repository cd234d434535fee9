package logger

import (
	"log/slog"
	"os"
)

// New returns the process-wide structured logger. Level comes from config so
// deployments can turn on debug logging without a rebuild.
func New(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
