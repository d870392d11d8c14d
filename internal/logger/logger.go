package logger

import (
	"io"
	"log/slog"
	"os"
	"shop-checkout/internal/config"
	"strings"
)

// New builds the process logger from the LOG_LEVEL / LOG_FORMAT settings.
func New(cfg config.Log) *slog.Logger {
	return newWithWriter(cfg, os.Stderr)
}

func newWithWriter(cfg config.Log, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var h slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
