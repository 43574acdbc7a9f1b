// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth

import (
	"context"
	"time"

	"github.com/samber/oops"
)

// SessionContext binds an issued token to the user it was issued for.
// A zero ExpiresAt means the session never expires.
type SessionContext struct {
	Token     string
	Username  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// NewSessionContext creates a validated SessionContext.
// A ttl of zero disables expiry.
func NewSessionContext(token, username string, issuedAt time.Time, ttl time.Duration) (*SessionContext, error) {
	if !wellFormedToken(token) {
		return nil, oops.Code("SESSION_INVALID_TOKEN").
			With("min_length", MinTokenLength).
			Errorf("session token too short")
	}
	if username == "" {
		return nil, oops.Code("SESSION_INVALID_USER").Errorf("username cannot be empty")
	}
	if ttl < 0 {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").Errorf("ttl cannot be negative")
	}

	s := &SessionContext{
		Token:    token,
		Username: username,
		IssuedAt: issuedAt,
	}
	if ttl > 0 {
		s.ExpiresAt = issuedAt.Add(ttl)
	}
	return s, nil
}

// IsExpiredAt returns true if the session would be expired at the given time.
func (s *SessionContext) IsExpiredAt(t time.Time) bool {
	return !s.ExpiresAt.IsZero() && !t.Before(s.ExpiresAt)
}

// SessionStore holds active sessions keyed by token.
// Implementations decide which existing sessions a Put displaces: the
// per-user store keeps at most one session per username, the single-slot
// store keeps at most one session overall.
type SessionStore interface {
	// Put stores a session, displacing sessions per the store's occupancy rule.
	Put(ctx context.Context, session *SessionContext) error

	// Get retrieves a session by token.
	// Returns an error wrapping ErrNotFound if no session matches.
	Get(ctx context.Context, token string) (*SessionContext, error)

	// Delete removes a session by token. Deleting an absent token is not an error.
	Delete(ctx context.Context, token string) error

	// DeleteByUser removes every session of a user.
	DeleteByUser(ctx context.Context, username string) error

	// DeleteExpired removes sessions expired at now and returns the count.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
