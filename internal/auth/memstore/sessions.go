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

// SessionStore implements auth.SessionStore with a token-keyed map holding
// at most one session per user. Different users never displace each other.
type SessionStore struct {
	mu      sync.RWMutex
	byToken map[string]auth.SessionContext
	byUser  map[string]string
}

// NewSessionStore creates an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		byToken: make(map[string]auth.SessionContext),
		byUser:  make(map[string]string),
	}
}

// Put stores a session, replacing the user's previous session if any.
func (s *SessionStore) Put(ctx context.Context, session *auth.SessionContext) error {
	if err := ctx.Err(); err != nil {
		return oops.With("operation", "put session").Wrap(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.byUser[session.Username]; ok {
		delete(s.byToken, prev)
	}
	s.byToken[session.Token] = *session
	s.byUser[session.Username] = session.Token
	return nil
}

// Get retrieves a session by token.
func (s *SessionStore) Get(ctx context.Context, token string) (*auth.SessionContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, oops.With("operation", "get session").Wrap(err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.byToken[token]
	if !ok {
		return nil, oops.With("operation", "get session").Wrap(auth.ErrNotFound)
	}
	return &session, nil
}

// Delete removes a session by token.
func (s *SessionStore) Delete(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return oops.With("operation", "delete session").Wrap(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteLocked(token)
	return nil
}

// DeleteByUser removes the session of a user.
func (s *SessionStore) DeleteByUser(ctx context.Context, username string) error {
	if err := ctx.Err(); err != nil {
		return oops.With("operation", "delete user sessions").Wrap(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if token, ok := s.byUser[username]; ok {
		s.deleteLocked(token)
	}
	return nil
}

// DeleteExpired removes sessions expired at now.
func (s *SessionStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, oops.With("operation", "delete expired sessions").Wrap(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for token, session := range s.byToken {
		if session.IsExpiredAt(now) {
			s.deleteLocked(token)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byToken)
}

func (s *SessionStore) deleteLocked(token string) {
	session, ok := s.byToken[token]
	if !ok {
		return
	}
	delete(s.byToken, token)
	if s.byUser[session.Username] == token {
		delete(s.byUser, session.Username)
	}
}
