// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/authcore/authcore/internal/auth"
)

// SessionRepository implements auth.SessionStore using PostgreSQL.
// Only the SHA-256 of each token is stored. The unique username column
// keeps at most one session per user.
type SessionRepository struct {
	pool poolIface
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool poolIface) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Put stores session, replacing any session the same user already holds.
func (r *SessionRepository) Put(ctx context.Context, session *auth.SessionContext) error {
	var expiresAt any
	if !session.ExpiresAt.IsZero() {
		expiresAt = session.ExpiresAt
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO web_sessions (token_hash, username, issued_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (username) DO UPDATE
		SET token_hash = EXCLUDED.token_hash,
		    issued_at = EXCLUDED.issued_at,
		    expires_at = EXCLUDED.expires_at
	`, auth.HashSessionToken(session.Token), session.Username, session.IssuedAt, expiresAt)
	if isForeignKeyViolation(err) {
		return oops.With("username", session.Username).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return oops.With("operation", "upsert web_session").With("username", session.Username).Wrap(err)
	}
	return nil
}

// Get retrieves the session for token.
func (r *SessionRepository) Get(ctx context.Context, token string) (*auth.SessionContext, error) {
	session := &auth.SessionContext{Token: token}
	var expiresAt *time.Time

	err := r.pool.QueryRow(ctx, `
		SELECT username, issued_at, expires_at
		FROM web_sessions
		WHERE token_hash = $1
	`, auth.HashSessionToken(token)).Scan(&session.Username, &session.IssuedAt, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.With("operation", "select web_session").Wrap(err)
	}
	if expiresAt != nil {
		session.ExpiresAt = *expiresAt
	}
	return session, nil
}

// Delete removes the session for token. Unknown tokens are not an error.
func (r *SessionRepository) Delete(ctx context.Context, token string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM web_sessions WHERE token_hash = $1`, auth.HashSessionToken(token))
	if err != nil {
		return oops.With("operation", "delete web_session").Wrap(err)
	}
	return nil
}

// DeleteByUser removes the session held by username, if any.
func (r *SessionRepository) DeleteByUser(ctx context.Context, username string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM web_sessions WHERE username = $1`, username)
	if err != nil {
		return oops.With("operation", "delete web_session by user").With("username", username).Wrap(err)
	}
	return nil
}

// DeleteExpired removes every session that expired at or before now.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM web_sessions
		WHERE expires_at IS NOT NULL AND expires_at <= $1
	`, now)
	if err != nil {
		return 0, oops.With("operation", "delete expired web_sessions").Wrap(err)
	}
	return result.RowsAffected(), nil
}

var _ auth.SessionStore = (*SessionRepository)(nil)
