// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"fmt"

	"codeberg.org/oliverandrich/go-account-template/internal/services/auth"
	"codeberg.org/oliverandrich/go-account-template/internal/services/confirm"
	"github.com/go-playground/validator/v10"
)

// Validator plugs go-playground/validator into echo.Context.Validate.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates the request validator.
func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

// Validate checks the struct tags of a bound request body.
func (v *Validator) Validate(i any) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			switch fe.Tag() {
			case "required":
				return auth.ErrMissingFields
			case "email":
				return confirm.ErrInvalidEmail
			}
		}
	}
	return fmt.Errorf("%w: %v", confirm.ErrValidation, err)
}
