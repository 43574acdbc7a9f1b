// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/authcore/authcore/internal/auth"
)

// SingleSessionStore keeps one session for the whole process: every Put
// replaces the previous session whoever owned it. This reproduces the
// legacy single-login behaviour, where a second user's login logs the
// first one out. Prefer SessionStore for multi-user deployments.
type SingleSessionStore struct {
	mu     sync.Mutex
	active *auth.SessionContext
}

// NewSingleSessionStore creates an empty SingleSessionStore.
func NewSingleSessionStore() *SingleSessionStore {
	return &SingleSessionStore{}
}

// Put replaces the active session.
func (s *SingleSessionStore) Put(ctx context.Context, session *auth.SessionContext) error {
	if err := ctx.Err(); err != nil {
		return oops.With("operation", "put session").Wrap(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *session
	s.active = &cp
	return nil
}

// Get returns the active session if its token matches.
func (s *SingleSessionStore) Get(ctx context.Context, token string) (*auth.SessionContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, oops.With("operation", "get session").Wrap(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil || s.active.Token != token {
		return nil, oops.With("operation", "get session").Wrap(auth.ErrNotFound)
	}
	cp := *s.active
	return &cp, nil
}

// Delete clears the active session if its token matches.
func (s *SingleSessionStore) Delete(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return oops.With("operation", "delete session").Wrap(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil && s.active.Token == token {
		s.active = nil
	}
	return nil
}

// DeleteByUser clears the active session if it belongs to username.
func (s *SingleSessionStore) DeleteByUser(ctx context.Context, username string) error {
	if err := ctx.Err(); err != nil {
		return oops.With("operation", "delete user sessions").Wrap(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil && s.active.Username == username {
		s.active = nil
	}
	return nil
}

// DeleteExpired clears the active session if it has expired.
func (s *SingleSessionStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, oops.With("operation", "delete expired sessions").Wrap(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil && s.active.IsExpiredAt(now) {
		s.active = nil
		return 1, nil
	}
	return 0, nil
}
