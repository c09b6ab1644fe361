package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps a level name to a slog level. Unknown names report false.
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "dev", "development", "debug":
		return slog.LevelDebug, true
	case "", "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error", "production", "prod":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// Init installs a text logger on stderr as the default logger
func Init(level string) *slog.Logger {
	return InitWriter(os.Stderr, level)
}

// InitWriter installs a text logger writing to w as the default logger
func InitWriter(w io.Writer, level string) *slog.Logger {
	lvl, ok := ParseLevel(level)

	logger := slog.New(
		slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: lvl,
		}),
	)
	slog.SetDefault(logger)

	if !ok {
		logger.Warn("unknown log level, using info", "level", level)
	}
	return logger
}
