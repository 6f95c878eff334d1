// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"codeberg.org/oliverandrich/go-account-template/internal/handlers"
	"codeberg.org/oliverandrich/go-account-template/internal/i18n"
	"codeberg.org/oliverandrich/go-account-template/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	_ = i18n.Init()
}

func TestHealth(t *testing.T) {
	db, _ := testutil.NewTestDB(t)
	h := handlers.New(db)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Health(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHealth_DatabaseDown(t *testing.T) {
	db, _ := testutil.NewTestDB(t)
	require.NoError(t, db.Close())
	h := handlers.New(db)

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)

	require.NoError(t, h.Health(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestValidator(t *testing.T) {
	v := handlers.NewValidator()

	assert.NoError(t, v.Validate(&handlers.TokenRequest{Token: "t", UID: "u"}))
	assert.Error(t, v.Validate(&handlers.TokenRequest{Token: "t"}))
	assert.Error(t, v.Validate(&handlers.EmailRequest{Email: "nope"}))
}
