// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"codeberg.org/oliverandrich/go-account-template/internal/i18n"
	"codeberg.org/oliverandrich/go-account-template/internal/services/auth"
	"codeberg.org/oliverandrich/go-account-template/internal/services/confirm"
	"github.com/labstack/echo/v4"
)

var errBadRequest = errors.New("malformed request body")

// errorMapping translates a domain error into a status and message ID.
// More specific errors come before the kinds they wrap.
var errorMapping = []struct {
	err       error
	status    int
	messageID string
}{
	{errBadRequest, http.StatusBadRequest, "error_invalid_request"},
	{auth.ErrMissingFields, http.StatusBadRequest, "error_missing_fields"},
	{auth.ErrPasswordMismatch, http.StatusBadRequest, "error_password_mismatch"},
	{confirm.ErrInvalidEmail, http.StatusBadRequest, "error_invalid_email"},
	{confirm.ErrSameEmail, http.StatusBadRequest, "error_same_email"},
	{confirm.ErrValidation, http.StatusBadRequest, "error_invalid_request"},
	{confirm.ErrConflict, http.StatusBadRequest, "error_email_taken"},
	{confirm.ErrTokenNotFound, http.StatusNotFound, "error_token_not_found"},
	{confirm.ErrNotFound, http.StatusNotFound, "error_user_not_found"},
	{confirm.ErrInvalidToken, http.StatusUnauthorized, "error_invalid_token"},
	{confirm.ErrExpired, http.StatusUnauthorized, "error_token_expired"},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, "error_invalid_credentials"},
	{auth.ErrEmailNotVerified, http.StatusForbidden, "error_email_not_verified"},
}

// fail writes the JSON error response for err. Unrecognized errors are
// logged and answered with the endpoint's generic message.
func fail(c echo.Context, err error, fallbackID string) error {
	ctx := c.Request().Context()

	var pwErr *auth.PasswordValidationError
	if errors.As(err, &pwErr) && len(pwErr.Errors) > 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": passwordMessage(c, pwErr),
		})
	}

	for _, m := range errorMapping {
		if errors.Is(err, m.err) {
			return c.JSON(m.status, map[string]string{
				"error": i18n.T(ctx, m.messageID),
			})
		}
	}

	slog.Error("request_failed", "path", c.Path(), "error", err)
	return c.JSON(http.StatusInternalServerError, map[string]string{
		"error": i18n.T(ctx, fallbackID),
	})
}

func passwordMessage(c echo.Context, pwErr *auth.PasswordValidationError) string {
	first := pwErr.Errors[0]
	msg := i18n.TData(c.Request().Context(), "error_password_"+first.Code, map[string]any{
		"MinLength": pwErr.MinLength,
	})
	if msg == "error_password_"+first.Code {
		return first.Message
	}
	return msg
}

// succeed writes {"success": true, "message": ...} plus any extra fields.
func succeed(c echo.Context, status int, messageID string, extra map[string]any) error {
	body := map[string]any{
		"success": true,
		"message": i18n.T(c.Request().Context(), messageID),
	}
	for k, v := range extra {
		body[k] = v
	}
	return c.JSON(status, body)
}
