// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"sync"
	"testing"

	"codeberg.org/oliverandrich/go-account-template/internal/database"
	"codeberg.org/oliverandrich/go-account-template/internal/models"
	"codeberg.org/oliverandrich/go-account-template/internal/repository"
	"codeberg.org/oliverandrich/go-account-template/internal/services/email"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
)

// NewTestDB creates an in-memory SQLite database for tests.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db, repository.New(db)
}

// NewTestUser creates an unverified test user with the given email.
// The password hash is a placeholder and does not match any password.
func NewTestUser(t *testing.T, repo *repository.Repository, addr string) *models.User {
	t.Helper()
	user := &models.User{
		ID:           uuid.NewString(),
		Email:        addr,
		Username:     "user-" + addr,
		PasswordHash: "not-a-bcrypt-hash",
	}
	require.NoError(t, repo.CreateUser(context.Background(), user))
	return user
}

// MailRecorder is an email.Sender that keeps every message in memory.
type MailRecorder struct {
	mu       sync.Mutex
	Messages []email.Message
	Err      error // returned from Send when set
}

// Send records msg, or fails with r.Err.
func (r *MailRecorder) Send(_ context.Context, msg email.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Messages = append(r.Messages, msg)
	return nil
}

// Last returns the most recently sent message.
func (r *MailRecorder) Last(t *testing.T) email.Message {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.Messages, "no email was sent")
	return r.Messages[len(r.Messages)-1]
}

// Count returns the number of recorded messages.
func (r *MailRecorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Messages)
}

var linkPattern = regexp.MustCompile(`https?://\S+`)

// LinkParams extracts token and uid from the confirmation link in msg.
func LinkParams(t *testing.T, msg email.Message) (token, uid string) {
	t.Helper()
	link := linkPattern.FindString(msg.Text)
	require.NotEmpty(t, link, "message contains no link")
	u, err := url.Parse(link)
	require.NoError(t, err)
	return u.Query().Get("token"), u.Query().Get("uid")
}

// NewEchoContext creates an Echo context for handler tests.
func NewEchoContext(e *echo.Echo, method, path string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}
