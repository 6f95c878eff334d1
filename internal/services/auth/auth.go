// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"codeberg.org/oliverandrich/go-account-template/internal/config"
	"codeberg.org/oliverandrich/go-account-template/internal/models"
	"codeberg.org/oliverandrich/go-account-template/internal/repository"
	"codeberg.org/oliverandrich/go-account-template/internal/services/confirm"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrMissingFields    = fmt.Errorf("%w: all fields are required", confirm.ErrValidation)
	ErrPasswordMismatch = fmt.Errorf("%w: passwords do not match", confirm.ErrValidation)
	ErrInvalidEmail     = confirm.ErrInvalidEmail
	ErrUserExists       = confirm.ErrEmailTaken
	ErrUserNotFound     = confirm.ErrSubjectNotFound

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailNotVerified   = errors.New("email not verified")
)

// dummyHash is used for constant-time login to prevent timing attacks
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), bcrypt.DefaultCost)

// Confirmations issues confirmation tokens.
type Confirmations interface {
	Issue(ctx context.Context, subjectID string, purpose models.Purpose, payload models.TokenPayload) (*models.PendingToken, error)
}

type Service struct {
	repo      *repository.Repository
	confirm   Confirmations
	validate  *validator.Validate
	passwords *PasswordPolicy
}

func NewService(repo *repository.Repository, confirmations Confirmations, cfg *config.PasswordConfig) *Service {
	return &Service{
		repo:      repo,
		confirm:   confirmations,
		validate:  validator.New(),
		passwords: NewPasswordPolicy(cfg),
	}
}

// SignupParams holds the parameters for account creation
type SignupParams struct {
	Email           string `validate:"required,email"`
	Username        string `validate:"required"`
	Password        string `validate:"required"`
	ConfirmPassword string `validate:"required,eqfield=Password"`
}

// ChangePasswordParams holds the parameters for a password change
type ChangePasswordParams struct {
	CurrentPassword string `validate:"required"`
	NewPassword     string `validate:"required"`
	ConfirmPassword string `validate:"required,eqfield=NewPassword"`
}

// Signup creates an unverified account and emails the verification link.
// If the email cannot be sent the account is kept and the error returned.
func (s *Service) Signup(ctx context.Context, params SignupParams) (*models.User, error) {
	params.Email = strings.TrimSpace(params.Email)
	params.Username = strings.TrimSpace(params.Username)

	if err := s.checkStruct(params); err != nil {
		return nil, err
	}

	if err := s.passwords.Check(params.Password, params.Email, params.Username); err != nil {
		return nil, err
	}

	exists, err := s.repo.EmailExists(ctx, params.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if exists {
		return nil, ErrUserExists
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        params.Email,
		Username:     params.Username,
		PasswordHash: string(passwordHash),
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("signup_success", "user_id", user.ID, "email", user.Email)

	if _, err := s.confirm.Issue(ctx, user.ID, models.PurposeVerifyEmail, models.TokenPayload{}); err != nil {
		return user, fmt.Errorf("failed to send verification email: %w", err)
	}

	return user, nil
}

// Login authenticates a user and returns the user if successful.
// Accounts with an unverified email are refused.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.TrimSpace(email)

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Constant-time: always perform bcrypt comparison to prevent timing attacks
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			slog.Warn("login_failed", "email", email, "reason", "user_not_found")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		slog.Warn("login_failed", "email", email, "reason", "invalid_password")
		return nil, ErrInvalidCredentials
	}

	if !user.EmailVerified {
		slog.Warn("login_failed", "user_id", user.ID, "reason", "email_not_verified")
		return nil, ErrEmailNotVerified
	}

	slog.Info("login_success", "user_id", user.ID, "email", email)
	return user, nil
}

// ResendVerification issues a new verification link for the account with
// the given email. It reports false if the address is already verified.
func (s *Service) ResendVerification(ctx context.Context, email string) (bool, error) {
	email = strings.TrimSpace(email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return false, ErrInvalidEmail
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, ErrUserNotFound
		}
		return false, fmt.Errorf("failed to get user: %w", err)
	}

	if user.EmailVerified {
		return false, nil
	}

	if _, err := s.confirm.Issue(ctx, user.ID, models.PurposeVerifyEmail, models.TokenPayload{}); err != nil {
		return false, err
	}
	return true, nil
}

// RequestEmailChange emails a confirmation link to newEmail.
func (s *Service) RequestEmailChange(ctx context.Context, userID, newEmail string) error {
	_, err := s.confirm.Issue(ctx, userID, models.PurposeChangeEmail, models.TokenPayload{NewEmail: newEmail})
	return err
}

// ChangePassword changes a user's password (when they know their current password)
func (s *Service) ChangePassword(ctx context.Context, userID string, params ChangePasswordParams) error {
	if err := s.checkStruct(params); err != nil {
		return err
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(params.CurrentPassword)); err != nil {
		slog.Warn("change_password_failed", "user_id", userID, "reason", "invalid_password")
		return ErrInvalidCredentials
	}

	if err := s.passwords.Check(params.NewPassword, user.Email, user.Username); err != nil {
		return err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(params.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.repo.UpdateUserPassword(ctx, userID, string(passwordHash)); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	slog.Info("change_password_success", "user_id", userID)
	return nil
}

// DeleteAccount removes the user and every pending token of the user.
func (s *Service) DeleteAccount(ctx context.Context, userID string) error {
	if err := s.repo.DeleteUser(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}

	slog.Info("delete_account_success", "user_id", userID)
	return nil
}

// GetUser returns the account of userID.
func (s *Service) GetUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// checkStruct maps struct tag failures to the service's validation errors.
func (s *Service) checkStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", confirm.ErrValidation, err)
	}

	for _, fe := range verrs {
		if fe.Tag() == "required" {
			return ErrMissingFields
		}
	}
	for _, fe := range verrs {
		switch fe.Tag() {
		case "email":
			return ErrInvalidEmail
		case "eqfield":
			return ErrPasswordMismatch
		}
	}
	return fmt.Errorf("%w: %s", confirm.ErrValidation, verrs[0].Field())
}
