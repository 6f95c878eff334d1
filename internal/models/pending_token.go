// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// Purpose identifies which pending account mutation a token authorizes.
type Purpose string

const (
	PurposeVerifyEmail Purpose = "verify_email"
	PurposeChangeEmail Purpose = "change_email"
)

// Purposes lists every known purpose.
func Purposes() []Purpose {
	return []Purpose{PurposeVerifyEmail, PurposeChangeEmail}
}

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	return slices.Contains(Purposes(), p)
}

// TokenPayload carries purpose-specific data until the token is redeemed.
type TokenPayload struct {
	Email    string `json:"email,omitempty"`     // verify_email: address the link went to
	NewEmail string `json:"new_email,omitempty"` // change_email: address to switch to
}

// Value implements driver.Valuer.
func (p TokenPayload) Value() (driver.Value, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (p *TokenPayload) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*p = TokenPayload{}
		return nil
	case string:
		*p = TokenPayload{}
		return json.Unmarshal([]byte(v), p)
	case []byte:
		*p = TokenPayload{}
		return json.Unmarshal(v, p)
	default:
		return fmt.Errorf("cannot scan %T into TokenPayload", src)
	}
}

// PendingToken is a single outstanding confirmation request.
// At most one exists per (SubjectID, Purpose).
type PendingToken struct { //nolint:govet // fieldalignment: readability over optimization
	SubjectID  string       `db:"subject_id" json:"subject_id"`
	Purpose    Purpose      `db:"purpose" json:"purpose"`
	SecretHash string       `db:"secret_hash" json:"-"` // SHA256 hash
	Payload    TokenPayload `db:"payload" json:"payload"`
	IssuedAt   time.Time    `db:"issued_at" json:"issued_at"`
	ExpiresAt  time.Time    `db:"expires_at" json:"expires_at"`
}

// Expired reports whether the token is past its expiry at now.
func (t *PendingToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
