// utils/logger.go
package utils

import (
	"log/slog"
	"os"
)

// InitLogger installs the process-wide slog logger.
// JSON in production, debug-level text elsewhere.
func InitLogger(production bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var handler slog.Handler
	if production {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// Component returns a logger tagged with the given component name, e.g. "referral" or "gate".
func Component(name string) *slog.Logger {
	return slog.Default().With("component", name)
}
