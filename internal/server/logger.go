// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"io"
	"log/slog"
	"os"

	"codeberg.org/oliverandrich/go-account-template/internal/config"
	"github.com/lmittmann/tint"
)

// Version is reported on every log record. cmd/app sets it at startup.
var Version = "dev"

// setupLogger configures the global slog logger.
func setupLogger(cfg *config.Config) {
	slog.SetDefault(newLogger(os.Stdout, cfg))
}

// newLogger builds a logger whose records carry the service name and
// build version, so lines from several deployments can be told apart.
func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	level := parseLevel(cfg.Log.Level)

	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	} else {
		handler = tint.NewHandler(w, &tint.Options{Level: level})
	}

	return slog.New(handler).With(
		slog.String("service", cfg.App.Name),
		slog.String("version", Version),
	)
}

func parseLevel(level string) slog.Level {
	switch level {
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
