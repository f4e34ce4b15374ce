package main

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"

	"price_history/internal/platform/config"
)

// setup loads the configuration and installs the run logger as slog's default.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger := newLogger(os.Stderr, cfg.Log, uuid.NewString())
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// newLogger builds the root logger for one run. Every record carries run_id.
func newLogger(w io.Writer, cfg config.LogConfig, runID string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h).With("run_id", runID)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
