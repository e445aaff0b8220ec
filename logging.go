package safeagent

import (
	"log/slog"
	"os"
)

// LoggingConfig configures diagnostic logging.
type LoggingConfig struct {
	// Logger overrides the logger entirely if provided.
	Logger *slog.Logger

	// Handler is used to build a logger if Logger is nil.
	Handler slog.Handler

	// Level is used when creating the default handler.
	Level slog.Level
}

// DefaultLoggingConfig returns the default logging configuration.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level: slog.LevelInfo,
	}
}

// resolveLogger builds the logger from config. Diagnostics go to stderr so
// they never mix with program output.
func resolveLogger(cfg LoggingConfig) *slog.Logger {
	if cfg.Logger != nil {
		return cfg.Logger
	}
	if cfg.Handler != nil {
		return slog.New(cfg.Handler)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level}))
}
