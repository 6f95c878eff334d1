// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"log/slog"
	"net/http"

	"codeberg.org/oliverandrich/go-account-template/internal/appcontext"
	"codeberg.org/oliverandrich/go-account-template/internal/models"
	"codeberg.org/oliverandrich/go-account-template/internal/services/auth"
	"codeberg.org/oliverandrich/go-account-template/internal/services/confirm"
	"codeberg.org/oliverandrich/go-account-template/internal/services/session"
	"github.com/labstack/echo/v4"
)

// AuthHandlers contains handlers for the account endpoints.
type AuthHandlers struct {
	auth     *auth.Service
	confirm  *confirm.Service
	sessions *session.Manager
}

// NewAuth creates a new AuthHandlers instance.
func NewAuth(authSvc *auth.Service, confirmSvc *confirm.Service, sess *session.Manager) *AuthHandlers {
	return &AuthHandlers{
		auth:     authSvc,
		confirm:  confirmSvc,
		sessions: sess,
	}
}

// SignupRequest is the request body for account creation.
type SignupRequest struct {
	Email           string `json:"email"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

// TokenRequest carries the token and uid of a confirmation link.
type TokenRequest struct {
	Token string `json:"token" validate:"required"`
	UID   string `json:"uid"   validate:"required"`
}

// EmailRequest is the request body for resending the verification email.
type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ChangeEmailRequest is the request body for an email change.
type ChangeEmailRequest struct {
	NewEmail string `json:"newEmail" validate:"required"`
}

// ChangePasswordRequest is the request body for a password change.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// bind decodes and validates the request body into req.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return errBadRequest
	}
	if c.Echo().Validator == nil {
		return nil
	}
	return c.Validate(req)
}

// Signup creates an unverified account and sends the verification email.
func (h *AuthHandlers) Signup(c echo.Context) error {
	var req SignupRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err, "signup_failed")
	}

	user, err := h.auth.Signup(c.Request().Context(), auth.SignupParams{
		Email:           req.Email,
		Username:        req.Username,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		return fail(c, err, "signup_failed")
	}

	return succeed(c, http.StatusCreated, "signup_success", map[string]any{"uid": user.ID})
}

// Login authenticates the user and sets the session cookie.
func (h *AuthHandlers) Login(c echo.Context) error {
	var req LoginRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err, "login_failed")
	}

	user, err := h.auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return fail(c, err, "login_failed")
	}

	cookie, err := h.sessions.Create(user.ID, user.Email)
	if err != nil {
		return fail(c, err, "login_failed")
	}
	c.SetCookie(cookie)

	return succeed(c, http.StatusOK, "login_success", map[string]any{
		"uid":      user.ID,
		"email":    user.Email,
		"username": user.Username,
	})
}

// Logout clears the session cookie.
func (h *AuthHandlers) Logout(c echo.Context) error {
	c.SetCookie(h.sessions.Clear())
	return succeed(c, http.StatusOK, "logout_success", nil)
}

// VerifyEmail redeems the verification link.
func (h *AuthHandlers) VerifyEmail(c echo.Context) error {
	var req TokenRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err, "verify_email_failed")
	}

	if err := h.confirm.Redeem(c.Request().Context(), req.UID, models.PurposeVerifyEmail, req.Token); err != nil {
		return fail(c, err, "verify_email_failed")
	}

	return succeed(c, http.StatusOK, "verify_email_success", nil)
}

// SendVerificationEmail issues a fresh verification link.
func (h *AuthHandlers) SendVerificationEmail(c echo.Context) error {
	var req EmailRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err, "send_verification_failed")
	}

	sent, err := h.auth.ResendVerification(c.Request().Context(), req.Email)
	if err != nil {
		return fail(c, err, "send_verification_failed")
	}
	if !sent {
		return succeed(c, http.StatusOK, "send_verification_already_verified", nil)
	}

	return succeed(c, http.StatusOK, "send_verification_success", nil)
}

// ChangeEmail sends a confirmation link to the requested new address.
func (h *AuthHandlers) ChangeEmail(c echo.Context) error {
	user := appcontext.UserFrom(c)

	var req ChangeEmailRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err, "change_email_failed")
	}

	if err := h.auth.RequestEmailChange(c.Request().Context(), user.ID, req.NewEmail); err != nil {
		return fail(c, err, "change_email_failed")
	}

	return succeed(c, http.StatusOK, "change_email_success", nil)
}

// ConfirmEmailChange redeems the email change link.
func (h *AuthHandlers) ConfirmEmailChange(c echo.Context) error {
	var req TokenRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err, "confirm_email_change_failed")
	}

	if err := h.confirm.Redeem(c.Request().Context(), req.UID, models.PurposeChangeEmail, req.Token); err != nil {
		return fail(c, err, "confirm_email_change_failed")
	}

	return succeed(c, http.StatusOK, "confirm_email_change_success", nil)
}

// ChangePassword replaces the password after checking the current one.
func (h *AuthHandlers) ChangePassword(c echo.Context) error {
	user := appcontext.UserFrom(c)

	var req ChangePasswordRequest
	if err := bind(c, &req); err != nil {
		return fail(c, err, "change_password_failed")
	}

	err := h.auth.ChangePassword(c.Request().Context(), user.ID, auth.ChangePasswordParams{
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		return fail(c, err, "change_password_failed")
	}

	return succeed(c, http.StatusOK, "change_password_success", nil)
}

// DeleteAccount removes the account and its pending tokens, then clears the session.
func (h *AuthHandlers) DeleteAccount(c echo.Context) error {
	user := appcontext.UserFrom(c)

	if err := h.auth.DeleteAccount(c.Request().Context(), user.ID); err != nil {
		return fail(c, err, "delete_account_failed")
	}

	c.SetCookie(h.sessions.Clear())
	slog.Info("session_cleared", "user_id", user.ID)
	return succeed(c, http.StatusOK, "delete_account_success", nil)
}

// Account returns the profile of the authenticated user.
func (h *AuthHandlers) Account(c echo.Context) error {
	user := appcontext.UserFrom(c)

	fresh, err := h.auth.GetUser(c.Request().Context(), user.ID)
	if err != nil {
		return fail(c, err, "account_failed")
	}

	return c.JSON(http.StatusOK, fresh)
}
