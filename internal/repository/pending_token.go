// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/go-account-template/internal/models"
)

// PutPendingToken stores a token, replacing any outstanding token for the
// same subject and purpose.
func (r *Repository) PutPendingToken(ctx context.Context, token *models.PendingToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO pending_tokens (subject_id, purpose, secret_hash, payload, issued_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (subject_id, purpose) DO UPDATE SET
		     secret_hash = excluded.secret_hash,
		     payload     = excluded.payload,
		     issued_at   = excluded.issued_at,
		     expires_at  = excluded.expires_at`,
		token.SubjectID, token.Purpose, token.SecretHash, token.Payload,
		dbTime(token.IssuedAt), dbTime(token.ExpiresAt))
	return wrapError(err)
}

// GetPendingToken retrieves the outstanding token for a subject and purpose.
func (r *Repository) GetPendingToken(ctx context.Context, subjectID string, purpose models.Purpose) (*models.PendingToken, error) {
	var token models.PendingToken
	err := r.db.GetContext(ctx, &token,
		`SELECT * FROM pending_tokens WHERE subject_id = ? AND purpose = ?`,
		subjectID, purpose)
	if err != nil {
		return nil, wrapError(err)
	}
	return &token, nil
}

// ClaimPendingToken deletes the token only if it still carries secretHash.
// It returns true for exactly one caller per stored token.
func (r *Repository) ClaimPendingToken(ctx context.Context, subjectID string, purpose models.Purpose, secretHash string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM pending_tokens WHERE subject_id = ? AND purpose = ? AND secret_hash = ?`,
		subjectID, purpose, secretHash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// DeleteExpiredPendingTokens deletes tokens that expired before now and
// returns how many were removed.
func (r *Repository) DeleteExpiredPendingTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pending_tokens WHERE expires_at < ?`, dbTime(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// dbTime normalizes timestamps so that stored values compare correctly as text.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
