// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"codeberg.org/oliverandrich/go-account-template/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestNewLogger_JSONCarriesServiceAttrs(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.Config{
		App: config.AppConfig{Name: "NY-ERP"},
		Log: config.LogConfig{Level: "warn", Format: "json"},
	}
	logger := newLogger(&buf, cfg)

	logger.Info("dropped")
	assert.Empty(t, buf.String())

	logger.Warn("kept", "user_id", "u1")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "kept", rec["msg"])
	assert.Equal(t, "NY-ERP", rec["service"])
	assert.Equal(t, Version, rec["version"])
	assert.Equal(t, "u1", rec["user_id"])
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.Config{
		App: config.AppConfig{Name: "NY-ERP"},
		Log: config.LogConfig{Level: "debug", Format: "text"},
	}
	newLogger(&buf, cfg).Debug("hello")

	out := buf.String()
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "service")
	assert.Contains(t, out, "NY-ERP")
}
