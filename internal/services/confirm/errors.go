// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package confirm

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by this package wraps exactly one of them.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpired      = errors.New("token expired")
)

var (
	ErrUnknownPurpose  = fmt.Errorf("%w: unknown token purpose", ErrValidation)
	ErrInvalidEmail    = fmt.Errorf("%w: invalid email address", ErrValidation)
	ErrSameEmail       = fmt.Errorf("%w: new email equals the current email", ErrValidation)
	ErrEmailTaken      = fmt.Errorf("%w: email already in use", ErrConflict)
	ErrSubjectNotFound = fmt.Errorf("%w: account", ErrNotFound)
	ErrTokenNotFound   = fmt.Errorf("%w: pending token", ErrNotFound)
)

// outcome names the result of a redeem attempt for metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInvalidToken):
		return "invalid"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrValidation):
		return "validation"
	default:
		return "error"
	}
}
