// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"codeberg.org/oliverandrich/go-account-template/internal/appcontext"
	"codeberg.org/oliverandrich/go-account-template/internal/config"
	"codeberg.org/oliverandrich/go-account-template/internal/i18n"
	appmw "codeberg.org/oliverandrich/go-account-template/internal/middleware"
	"codeberg.org/oliverandrich/go-account-template/internal/services/session"
	"codeberg.org/oliverandrich/go-account-template/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	_ = i18n.Init()
}

func newManager(t *testing.T) *session.Manager {
	t.Helper()
	m, err := session.NewManager(&config.SessionConfig{
		CookieName: "authToken",
		MaxAge:     604800,
		HashKey:    "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
	}, false)
	require.NoError(t, err)
	return m
}

func TestLocale(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"fr-FR,fr;q=0.9", "fr"},
		{"en-US", "en"},
		{"", "en"},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Accept-Language", tt.header)
			c := e.NewContext(req, httptest.NewRecorder())

			var got string
			h := appmw.Locale()(func(c echo.Context) error {
				got = i18n.GetLocale(c.Request().Context())
				return nil
			})

			require.NoError(t, h(c))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadSession(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	user := testutil.NewTestUser(t, repo, "ada@example.com")
	sessions := newManager(t)

	cookie, err := sessions.Create(user.ID, user.Email)
	require.NoError(t, err)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	c := e.NewContext(req, httptest.NewRecorder())

	var cc *appcontext.Context
	h := appmw.LoadSession(sessions, repo)(func(c echo.Context) error {
		cc = c.(*appcontext.Context)
		return nil
	})

	require.NoError(t, h(c))
	require.NotNil(t, cc)
	assert.True(t, cc.IsAuthenticated())
	assert.Equal(t, user.ID, cc.GetUser().ID)
	assert.Equal(t, user.ID, cc.Session.UserID)
}

func TestLoadSession_Anonymous(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	sessions := newManager(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "authToken", Value: "garbage"})
	c := e.NewContext(req, httptest.NewRecorder())

	var cc *appcontext.Context
	h := appmw.LoadSession(sessions, repo)(func(c echo.Context) error {
		cc = c.(*appcontext.Context)
		return nil
	})

	require.NoError(t, h(c))
	require.NotNil(t, cc)
	assert.False(t, cc.IsAuthenticated())
}

func TestLoadSession_DeletedUser(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	user := testutil.NewTestUser(t, repo, "ada@example.com")
	sessions := newManager(t)

	cookie, err := sessions.Create(user.ID, user.Email)
	require.NoError(t, err)
	require.NoError(t, repo.DeleteUser(context.Background(), user.ID))

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	c := e.NewContext(req, httptest.NewRecorder())

	var authenticated bool
	h := appmw.LoadSession(sessions, repo)(func(c echo.Context) error {
		authenticated = appcontext.UserFrom(c) != nil
		return nil
	})

	require.NoError(t, h(c))
	assert.False(t, authenticated)
}

func TestRequireSession(t *testing.T) {
	e := echo.New()
	called := false
	h := appmw.RequireSession(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})

	t.Run("anonymous", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/account", nil)
		c := &appcontext.Context{Context: e.NewContext(req, rec)}

		require.NoError(t, h(c))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Please log in to continue.")
		assert.False(t, called)
	})

	t.Run("authenticated", func(t *testing.T) {
		_, repo := testutil.NewTestDB(t)
		user := testutil.NewTestUser(t, repo, "ada@example.com")

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/account", nil)
		c := &appcontext.Context{Context: e.NewContext(req, rec), User: user}

		require.NoError(t, h(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, called)
	})
}
