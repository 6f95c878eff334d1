// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package appcontext_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"codeberg.org/oliverandrich/go-account-template/internal/appcontext"
	"codeberg.org/oliverandrich/go-account-template/internal/models"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestContext_GetUser(t *testing.T) {
	user := &models.User{ID: "u-123", Username: "testuser"}
	ctx := &appcontext.Context{User: user}

	result := ctx.GetUser()

	assert.Equal(t, user, result)
	assert.Equal(t, "u-123", result.ID)
}

func TestContext_GetUser_Nil(t *testing.T) {
	ctx := &appcontext.Context{User: nil}

	assert.Nil(t, ctx.GetUser())
}

func TestContext_IsAuthenticated(t *testing.T) {
	assert.True(t, (&appcontext.Context{User: &models.User{ID: "u-1"}}).IsAuthenticated())
	assert.False(t, (&appcontext.Context{}).IsAuthenticated())
}

func TestUserFrom(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	assert.Nil(t, appcontext.UserFrom(c), "plain echo context has no user")

	user := &models.User{ID: "u-1"}
	assert.Equal(t, user, appcontext.UserFrom(&appcontext.Context{Context: c, User: user}))
}
