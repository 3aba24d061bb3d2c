// Package log configures the process-wide slog logger shared by the
// MediaFlux binaries. Services tag their loggers with a module field via
// WithModule.
package log

import (
	"log/slog"
	"os"
)

// Setup installs the default logger. The handler is text unless LOG_FORMAT
// is set to json.
func Setup(logLevel string) {
	var level slog.Level

	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	options := &slog.HandlerOptions{Level: level}

	var handler slog.Handler = slog.NewTextHandler(os.Stderr, options)
	if os.Getenv("LOG_FORMAT") == "json" {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}

	slog.SetDefault(slog.New(handler))
}

func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
