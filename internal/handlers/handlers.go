// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vinovest/sqlx"
)

const healthTimeout = 2 * time.Second

// Handlers contains the operational HTTP handlers.
type Handlers struct {
	db *sqlx.DB
}

// New creates a new Handlers instance.
func New(db *sqlx.DB) *Handlers {
	return &Handlers{db: db}
}

// Health returns the health status, including database reachability.
func (h *Handlers) Health(c echo.Context) error {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status":   "error",
				"database": "unreachable",
			})
		}
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}
