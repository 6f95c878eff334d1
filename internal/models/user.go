// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// DefaultPlan is assigned to every new account.
const DefaultPlan = "free"

// User is an account together with its profile fields.
type User struct { //nolint:govet // fieldalignment: readability over optimization
	ID              string     `db:"id" json:"uid"`
	Email           string     `db:"email" json:"email"`
	Username        string     `db:"username" json:"username"`
	PasswordHash    string     `db:"password_hash" json:"-"`
	EmailVerified   bool       `db:"email_verified" json:"email_verified"`
	EmailVerifiedAt *time.Time `db:"email_verified_at" json:"email_verified_at,omitempty"`
	EmailChangedAt  *time.Time `db:"email_changed_at" json:"email_changed_at,omitempty"`
	Plan            string     `db:"plan" json:"plan"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}
