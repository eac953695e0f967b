// Package logger configures the process-wide slog logger. The proxy's
// stdout carries the GTP protocol, so log output goes to a timestamped
// file under the configured log folder, with stderr as the fallback.
package logger

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

var Log = slog.Default()

// Init initializes the global logger. Each run gets its own log file and
// a run_id attribute so interleaved games are separable.
func Init(level string, logFolder string) error {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelDebug
	}

	w := os.Stderr
	if logFolder != "" {
		if err := os.MkdirAll(logFolder, 0755); err != nil {
			return fmt.Errorf("create log folder: %w", err)
		}
		name := time.Now().Format("2006-01-02 150405") + ".log"
		f, err := os.OpenFile(filepath.Join(logFolder, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		w = f
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel})
	Log = slog.New(handler).With("run_id", uuid.NewString()[:8])
	slog.SetDefault(Log)

	return nil
}

// Debug logs at debug level
func Debug(msg string, args ...any) {
	Log.Debug(msg, args...)
}

// Info logs at info level
func Info(msg string, args ...any) {
	Log.Info(msg, args...)
}

// Warn logs at warn level
func Warn(msg string, args ...any) {
	Log.Warn(msg, args...)
}

// Error logs at error level
func Error(msg string, args ...any) {
	Log.Error(msg, args...)
}
