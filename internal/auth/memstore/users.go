// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

// Package memstore provides in-process credential and session stores.
package memstore

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/authcore/authcore/internal/auth"
)

// CredentialStore implements auth.CredentialStore in memory.
type CredentialStore struct {
	mu    sync.RWMutex
	users map[string]auth.UserRecord
}

// NewCredentialStore creates an empty CredentialStore.
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{users: make(map[string]auth.UserRecord)}
}

// Lookup retrieves a user by username.
func (s *CredentialStore) Lookup(ctx context.Context, username string) (*auth.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, oops.With("operation", "lookup user").Wrap(err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.users[username]
	if !ok {
		return nil, oops.With("username", username).Wrap(auth.ErrNotFound)
	}
	return cloneRecord(rec), nil
}

// UpdateHash replaces the password hash of an existing user.
func (s *CredentialStore) UpdateHash(ctx context.Context, username string, passwordHash []byte) error {
	if err := ctx.Err(); err != nil {
		return oops.With("operation", "update password hash").Wrap(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[username]
	if !ok {
		return oops.With("username", username).Wrap(auth.ErrNotFound)
	}
	rec.PasswordHash = slices.Clone(passwordHash)
	rec.UpdatedAt = time.Now().UTC()
	s.users[username] = rec
	return nil
}

// Insert stores a new user.
func (s *CredentialStore) Insert(ctx context.Context, record *auth.UserRecord) error {
	if err := ctx.Err(); err != nil {
		return oops.With("operation", "insert user").Wrap(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[record.Username]; ok {
		return oops.With("username", record.Username).Wrap(auth.ErrConflict)
	}
	s.users[record.Username] = *cloneRecord(*record)
	return nil
}

// Delete removes a user.
func (s *CredentialStore) Delete(ctx context.Context, username string) error {
	if err := ctx.Err(); err != nil {
		return oops.With("operation", "delete user").Wrap(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[username]; !ok {
		return oops.With("username", username).Wrap(auth.ErrNotFound)
	}
	delete(s.users, username)
	return nil
}

// List returns all usernames in ascending order.
func (s *CredentialStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, oops.With("operation", "list users").Wrap(err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.users))
	for name := range s.users {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

func cloneRecord(rec auth.UserRecord) *auth.UserRecord {
	rec.PasswordHash = slices.Clone(rec.PasswordHash)
	return &rec
}
