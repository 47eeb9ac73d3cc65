package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lmittmann/tint"

	"github.com/beymax11/chatstudio/src/config"
)

// createChatLogger creates a logger that doesn't interfere with the
// interactive transcript by writing to a file instead of stdout/stderr
func createChatLogger(logLevel, format string) *slog.Logger {
	logDir := config.GetDefaultStoragePaths().LogDir

	if err := os.MkdirAll(logDir, 0o755); err != nil {
		// If we can't create log directory, use discard logger
		return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	}

	logFile := filepath.Join(logDir, "chatstudio.log")
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	}

	opts := &slog.HandlerOptions{Level: parseLogLevel(logLevel)}
	if format == "text" {
		return slog.New(slog.NewTextHandler(file, opts))
	}
	return slog.New(slog.NewJSONHandler(file, opts))
}

// createCLILogger creates a logger for CLI commands that writes to stderr
func createCLILogger(logLevel string) *slog.Logger {
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: parseLogLevel(logLevel),
	}))
}

// parseLogLevel converts string log level to slog.Level
func parseLogLevel(levelStr string) slog.Level {
	switch levelStr {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
