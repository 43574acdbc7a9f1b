// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/authcore/authcore/internal/auth"
	"github.com/authcore/authcore/internal/auth/memstore"
)

// fastParams keeps argon2id cheap in tests.
var fastParams = auth.Argon2idParams{
	Iterations:  1,
	MemoryKiB:   64,
	Parallelism: 1,
	KeyLength:   32,
}

var testSecret = []byte("test-secret-key")

func newTestHasher(t *testing.T) *auth.Argon2idHasher {
	t.Helper()
	h, err := auth.NewArgon2idHasher(testSecret, fastParams)
	require.NoError(t, err)
	return h
}

type fixture struct {
	svc      *auth.Service
	users    *memstore.CredentialStore
	sessions auth.SessionStore
	hasher   *auth.Argon2idHasher
}

func newFixture(t *testing.T, sessions auth.SessionStore, opts ...auth.Option) *fixture {
	t.Helper()
	if sessions == nil {
		sessions = memstore.NewSessionStore()
	}
	users := memstore.NewCredentialStore()
	hasher := newTestHasher(t)

	svc, err := auth.NewService(users, sessions, hasher, opts...)
	require.NoError(t, err)

	return &fixture{svc: svc, users: users, sessions: sessions, hasher: hasher}
}

func (f *fixture) register(t *testing.T, username, password string) {
	t.Helper()
	require.NoError(t, f.svc.Register(context.Background(), username, password))
}

// countingMetrics records every label passed to PasswordChange.
type countingMetrics struct {
	mu              sync.Mutex
	passwordChanges []string
}

func (m *countingMetrics) AuthAttempt(string)  {}
func (m *countingMetrics) SessionIssued()      {}
func (m *countingMetrics) SessionDestroyed()   {}
func (m *countingMetrics) SessionCheck(string) {}

func (m *countingMetrics) PasswordChange(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.passwordChanges = append(m.passwordChanges, result)
}

func (m *countingMetrics) changes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.passwordChanges...)
}
