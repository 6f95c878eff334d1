// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package confirm issues and redeems single-use, expiring confirmation
// tokens that gate account mutations behind proof of email ownership.
package confirm

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"codeberg.org/oliverandrich/go-account-template/internal/metrics"
	"codeberg.org/oliverandrich/go-account-template/internal/models"
	"codeberg.org/oliverandrich/go-account-template/internal/repository"
	"codeberg.org/oliverandrich/go-account-template/internal/services/email"
	"codeberg.org/oliverandrich/go-account-template/internal/templates"
	"github.com/go-playground/validator/v10"
)

// TokenTTL is how long an issued token stays redeemable.
const TokenTTL = 24 * time.Hour

// Accounts is the subset of account storage the workflow reads and mutates.
type Accounts interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	MarkEmailVerified(ctx context.Context, id string, at time.Time) error
	UpdateUserEmail(ctx context.Context, id, email string, at time.Time) error
}

// TokenStore persists pending tokens keyed by subject and purpose.
type TokenStore interface {
	PutPendingToken(ctx context.Context, token *models.PendingToken) error
	GetPendingToken(ctx context.Context, subjectID string, purpose models.Purpose) (*models.PendingToken, error)
	ClaimPendingToken(ctx context.Context, subjectID string, purpose models.Purpose, secretHash string) (bool, error)
	DeleteExpiredPendingTokens(ctx context.Context, now time.Time) (int64, error)
}

type options struct {
	now func() time.Time
}

// Option configures a Service or Sweeper.
type Option func(*options)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Service runs the confirmation token workflow.
type Service struct {
	accounts Accounts
	tokens   TokenStore
	sender   email.Sender
	validate *validator.Validate
	baseURL  string
	appName  string
	now      func() time.Time
}

// NewService creates the workflow. baseURL prefixes the links sent by email.
func NewService(accounts Accounts, tokens TokenStore, sender email.Sender, baseURL, appName string, opts ...Option) *Service {
	o := buildOptions(opts)
	return &Service{
		accounts: accounts,
		tokens:   tokens,
		sender:   sender,
		validate: validator.New(),
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		appName:  appName,
		now:      o.now,
	}
}

// Issue stores a fresh token for (subjectID, purpose), replacing any
// outstanding one, and emails the confirmation link. The secret only
// leaves the process inside that link.
func (s *Service) Issue(ctx context.Context, subjectID string, purpose models.Purpose, payload models.TokenPayload) (*models.PendingToken, error) {
	if !purpose.Valid() {
		return nil, ErrUnknownPurpose
	}

	user, err := s.accounts.GetUserByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSubjectNotFound
		}
		return nil, fmt.Errorf("loading account: %w", err)
	}

	switch purpose {
	case models.PurposeVerifyEmail:
		payload = models.TokenPayload{Email: user.Email}
	case models.PurposeChangeEmail:
		newEmail, err := s.checkNewEmail(ctx, user, payload.NewEmail)
		if err != nil {
			return nil, err
		}
		payload = models.TokenPayload{NewEmail: newEmail}
	}

	secret, hash, err := email.GenerateToken()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC().Truncate(time.Second)
	token := &models.PendingToken{
		SubjectID:  subjectID,
		Purpose:    purpose,
		SecretHash: hash,
		Payload:    payload,
		IssuedAt:   now,
		ExpiresAt:  now.Add(TokenTTL),
	}

	if err := s.tokens.PutPendingToken(ctx, token); err != nil {
		return nil, fmt.Errorf("storing token: %w", err)
	}
	metrics.TokensIssued.WithLabelValues(string(purpose)).Inc()

	msg, err := s.message(ctx, user, token, secret)
	if err != nil {
		return nil, err
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		metrics.EmailsSent.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("sending confirmation email: %w", err)
	}
	metrics.EmailsSent.WithLabelValues("ok").Inc()

	slog.Info("token_issued", "user_id", subjectID, "purpose", purpose, "expires_at", token.ExpiresAt)
	return token, nil
}

// Redeem consumes the token for (subjectID, purpose) if secret matches and
// applies its mutation. A token is consumed at most once; if applying the
// mutation fails afterwards the user has to request a new link.
func (s *Service) Redeem(ctx context.Context, subjectID string, purpose models.Purpose, secret string) (err error) {
	defer func() {
		metrics.TokensRedeemed.WithLabelValues(string(purpose), outcome(err)).Inc()
		if err != nil {
			slog.Warn("token_redeem_failed", "user_id", subjectID, "purpose", purpose, "error", err)
		}
	}()

	if !purpose.Valid() {
		return ErrUnknownPurpose
	}

	token, err := s.tokens.GetPendingToken(ctx, subjectID, purpose)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTokenNotFound
		}
		return fmt.Errorf("loading token: %w", err)
	}

	presented := email.HashToken(secret)
	if subtle.ConstantTimeCompare([]byte(presented), []byte(token.SecretHash)) != 1 {
		return ErrInvalidToken
	}

	now := s.now()
	if token.Expired(now) {
		// Compare-and-delete so a token re-issued in the meantime survives.
		if _, err := s.tokens.ClaimPendingToken(ctx, subjectID, purpose, token.SecretHash); err != nil {
			slog.Error("expired_token_cleanup_failed", "user_id", subjectID, "purpose", purpose, "error", err)
		}
		return ErrExpired
	}

	if purpose == models.PurposeChangeEmail {
		taken, err := s.accounts.EmailExists(ctx, token.Payload.NewEmail)
		if err != nil {
			return fmt.Errorf("checking email: %w", err)
		}
		if taken {
			return ErrEmailTaken
		}
	}

	claimed, err := s.tokens.ClaimPendingToken(ctx, subjectID, purpose, token.SecretHash)
	if err != nil {
		return fmt.Errorf("claiming token: %w", err)
	}
	if !claimed {
		return ErrTokenNotFound
	}

	if err := s.apply(ctx, token, now); err != nil {
		return err
	}

	slog.Info("token_redeemed", "user_id", subjectID, "purpose", purpose)
	return nil
}

func (s *Service) apply(ctx context.Context, token *models.PendingToken, now time.Time) error {
	var err error
	switch token.Purpose {
	case models.PurposeVerifyEmail:
		err = s.accounts.MarkEmailVerified(ctx, token.SubjectID, now)
	case models.PurposeChangeEmail:
		err = s.accounts.UpdateUserEmail(ctx, token.SubjectID, token.Payload.NewEmail, now)
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return ErrSubjectNotFound
	case errors.Is(err, repository.ErrDuplicate):
		return ErrEmailTaken
	default:
		return fmt.Errorf("applying %s: %w", token.Purpose, err)
	}
}

func (s *Service) checkNewEmail(ctx context.Context, user *models.User, newEmail string) (string, error) {
	addr := strings.TrimSpace(newEmail)
	if err := s.validate.Var(addr, "required,email"); err != nil {
		return "", ErrInvalidEmail
	}
	if strings.EqualFold(addr, user.Email) {
		return "", ErrSameEmail
	}

	taken, err := s.accounts.EmailExists(ctx, addr)
	if err != nil {
		return "", fmt.Errorf("checking email: %w", err)
	}
	if taken {
		return "", ErrEmailTaken
	}
	return addr, nil
}

func (s *Service) message(ctx context.Context, user *models.User, token *models.PendingToken, secret string) (email.Message, error) {
	switch token.Purpose {
	case models.PurposeChangeEmail:
		return email.EmailChangeMessage(ctx, templates.EmailChangeData{
			AppName:  s.appName,
			OldEmail: user.Email,
			NewEmail: token.Payload.NewEmail,
			Link:     email.ConfirmEmailChangeURL(s.baseURL, secret, user.ID),
		})
	default:
		return email.VerificationMessage(ctx, user.Email, templates.VerificationEmailData{
			AppName:  s.appName,
			Username: user.Username,
			Link:     email.VerifyEmailURL(s.baseURL, secret, user.ID),
		})
	}
}
