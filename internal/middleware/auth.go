// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package middleware provides Echo middleware shared by the routes.
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"codeberg.org/oliverandrich/go-account-template/internal/appcontext"
	"codeberg.org/oliverandrich/go-account-template/internal/i18n"
	"codeberg.org/oliverandrich/go-account-template/internal/models"
	"codeberg.org/oliverandrich/go-account-template/internal/services/session"
	"github.com/labstack/echo/v4"
)

// UserLoader is an interface for loading full user data
type UserLoader interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// LoadSession wraps every request in an appcontext.Context and fills in
// the user when the request carries a valid session for an existing account.
func LoadSession(sessions *session.Manager, users UserLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &appcontext.Context{Context: c}

			data, err := sessions.Parse(c.Request())
			if err != nil {
				return err
			}
			if data != nil {
				user, err := users.GetUserByID(c.Request().Context(), data.UserID)
				if err != nil {
					slog.Debug("session_user_not_loaded", "user_id", data.UserID, "error", err)
				} else {
					cc.Session = data
					cc.User = user
				}
			}

			return next(cc)
		}
	}
}

// RequireSession rejects requests without an authenticated user.
func RequireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if appcontext.UserFrom(c) == nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{
				"error": i18n.T(c.Request().Context(), "error_unauthorized"),
			})
		}
		return next(c)
	}
}
