// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/authcore/authcore/internal/auth"
)

// UserRepository implements auth.CredentialStore using PostgreSQL.
type UserRepository struct {
	pool poolIface
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool poolIface) *UserRepository {
	return &UserRepository{pool: pool}
}

// Lookup retrieves a user by name.
func (r *UserRepository) Lookup(ctx context.Context, username string) (*auth.UserRecord, error) {
	rec := &auth.UserRecord{}
	err := r.pool.QueryRow(ctx, `
		SELECT name, salt, pass, created_at, updated_at
		FROM users
		WHERE name = $1
	`, username).Scan(&rec.Username, &rec.Salt, &rec.PasswordHash, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.With("username", username).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.With("operation", "select user").With("username", username).Wrap(err)
	}
	return rec, nil
}

// UpdateHash replaces the password hash of an existing user.
func (r *UserRepository) UpdateHash(ctx context.Context, username string, passwordHash []byte) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE users SET pass = $2, updated_at = now()
		WHERE name = $1
	`, username, passwordHash)
	if err != nil {
		return oops.With("operation", "update password hash").With("username", username).Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.With("username", username).Wrap(auth.ErrNotFound)
	}
	return nil
}

// Insert stores a new user.
func (r *UserRepository) Insert(ctx context.Context, rec *auth.UserRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (name, salt, pass, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, rec.Username, rec.Salt, rec.PasswordHash, rec.CreatedAt, rec.UpdatedAt)
	if isUniqueViolation(err) {
		return oops.With("username", rec.Username).Wrap(auth.ErrConflict)
	}
	if err != nil {
		return oops.With("operation", "insert user").With("username", rec.Username).Wrap(err)
	}
	return nil
}

// Delete removes a user. Their session row goes with them.
func (r *UserRepository) Delete(ctx context.Context, username string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM users WHERE name = $1`, username)
	if err != nil {
		return oops.With("operation", "delete user").With("username", username).Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.With("username", username).Wrap(auth.ErrNotFound)
	}
	return nil
}

// List returns all usernames in ascending order.
func (r *UserRepository) List(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT name FROM users ORDER BY name`)
	if err != nil {
		return nil, oops.With("operation", "list users").Wrap(err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, oops.With("operation", "scan user row").Wrap(err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.With("operation", "iterate users").Wrap(err)
	}
	return names, nil
}

var _ auth.CredentialStore = (*UserRepository)(nil)
