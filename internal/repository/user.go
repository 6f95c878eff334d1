// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/go-account-template/internal/models"
)

// CreateUser inserts a new user. Timestamps default to now.
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = user.CreatedAt
	if user.Plan == "" {
		user.Plan = models.DefaultPlan
	}

	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO users (id, email, username, password_hash, email_verified, plan, created_at, updated_at)
		 VALUES (:id, :email, :username, :password_hash, :email_verified, :plan, :created_at, :updated_at)`,
		user)
	return wrapError(err)
}

// GetUserByID retrieves a user by ID.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE id = ?`, id); err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by email address (case-insensitive).
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE email = ?`, email); err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// EmailExists checks if any user owns the given email address.
func (r *Repository) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT count(*) FROM users WHERE email = ?`, email); err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkEmailVerified sets the verified flag. Setting it twice is harmless.
func (r *Repository) MarkEmailVerified(ctx context.Context, id string, at time.Time) error {
	return r.updateUser(ctx,
		`UPDATE users SET email_verified = 1, email_verified_at = ?, updated_at = ? WHERE id = ?`,
		at.UTC(), at.UTC(), id)
}

// UpdateUserEmail replaces the user's email address.
func (r *Repository) UpdateUserEmail(ctx context.Context, id, email string, at time.Time) error {
	return r.updateUser(ctx,
		`UPDATE users SET email = ?, email_changed_at = ?, updated_at = ? WHERE id = ?`,
		email, at.UTC(), at.UTC(), id)
}

// UpdateUserPassword replaces the user's password hash.
func (r *Repository) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	return r.updateUser(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, time.Now().UTC(), id)
}

// DeleteUser removes a user together with all of their pending tokens.
func (r *Repository) DeleteUser(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM pending_tokens WHERE subject_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

// updateUser runs a single-row update and reports ErrNotFound if no row matched.
func (r *Repository) updateUser(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return wrapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
