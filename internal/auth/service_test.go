// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/authcore/authcore/internal/auth"
	"github.com/authcore/authcore/internal/auth/memstore"
	"github.com/authcore/authcore/internal/auth/mocks"
	"github.com/authcore/authcore/pkg/errutil"
)

func TestNewService_NilDependencies(t *testing.T) {
	tests := []struct {
		name        string
		users       auth.CredentialStore
		sessions    auth.SessionStore
		hasher      auth.Hasher
		opts        []auth.Option
		expectError string
	}{
		{
			name:        "nil credential store",
			sessions:    memstore.NewSessionStore(),
			hasher:      mocks.NewMockHasher(t),
			expectError: "credential store is required",
		},
		{
			name:        "nil session store",
			users:       memstore.NewCredentialStore(),
			hasher:      mocks.NewMockHasher(t),
			expectError: "session store is required",
		},
		{
			name:        "nil password hasher",
			users:       memstore.NewCredentialStore(),
			sessions:    memstore.NewSessionStore(),
			expectError: "password hasher is required",
		},
		{
			name:        "nil logger",
			users:       memstore.NewCredentialStore(),
			sessions:    memstore.NewSessionStore(),
			hasher:      mocks.NewMockHasher(t),
			opts:        []auth.Option{auth.WithLogger(nil)},
			expectError: "logger is required",
		},
		{
			name:        "negative ttl",
			users:       memstore.NewCredentialStore(),
			sessions:    memstore.NewSessionStore(),
			hasher:      mocks.NewMockHasher(t),
			opts:        []auth.Option{auth.WithSessionTTL(-time.Minute)},
			expectError: "session ttl cannot be negative",
		},
		{
			name:        "zero store timeout",
			users:       memstore.NewCredentialStore(),
			sessions:    memstore.NewSessionStore(),
			hasher:      mocks.NewMockHasher(t),
			opts:        []auth.Option{auth.WithStoreTimeout(0)},
			expectError: "store timeout must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := auth.NewService(tt.users, tt.sessions, tt.hasher, tt.opts...)
			require.Error(t, err)
			assert.Nil(t, svc)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestService_Authenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("registered user authenticates", func(t *testing.T) {
		f := newFixture(t, nil)
		f.register(t, "alice", "ValidPass1!")

		require.NoError(t, f.svc.Authenticate(ctx, "alice", "ValidPass1!"))
	})

	t.Run("password with extra character fails", func(t *testing.T) {
		f := newFixture(t, nil)
		f.register(t, "alice", "ValidPass1!")

		err := f.svc.Authenticate(ctx, "alice", "ValidPass1!x")
		errutil.AssertErrorCode(t, err, auth.CodeInvalidCredentials)
	})

	t.Run("unknown user and wrong password are indistinguishable", func(t *testing.T) {
		f := newFixture(t, nil)
		f.register(t, "alice", "ValidPass1!")

		wrongPassword := f.svc.Authenticate(ctx, "alice", "WrongPass1!")
		unknownUser := f.svc.Authenticate(ctx, "mallory", "ValidPass1!")

		errutil.AssertErrorCode(t, wrongPassword, auth.CodeInvalidCredentials)
		errutil.AssertErrorCode(t, unknownUser, auth.CodeInvalidCredentials)
		assert.Equal(t, wrongPassword.Error(), unknownUser.Error())
	})

	t.Run("unknown user still runs verification", func(t *testing.T) {
		users := mocks.NewMockCredentialStore(t)
		hasher := mocks.NewMockHasher(t)
		svc, err := auth.NewService(users, memstore.NewSessionStore(), hasher)
		require.NoError(t, err)

		users.On("Lookup", mock.Anything, "mallory").Return(nil, auth.ErrNotFound)
		hasher.On("Verify", "ValidPass1!", mock.AnythingOfType("string"), mock.Anything).Return(false, nil)

		err = svc.Authenticate(ctx, "mallory", "ValidPass1!")
		errutil.AssertErrorCode(t, err, auth.CodeInvalidCredentials)
	})

	t.Run("store failure is reported as unavailable", func(t *testing.T) {
		users := mocks.NewMockCredentialStore(t)
		svc, err := auth.NewService(users, memstore.NewSessionStore(), mocks.NewMockHasher(t))
		require.NoError(t, err)

		users.On("Lookup", mock.Anything, "alice").Return(nil, errors.New("connection refused"))

		err = svc.Authenticate(ctx, "alice", "ValidPass1!")
		errutil.AssertErrorCode(t, err, auth.CodeStoreUnavailable)
		errutil.AssertErrorContext(t, err, "operation", "lookup user")
	})

	t.Run("store timeout is reported as unavailable", func(t *testing.T) {
		svc, err := auth.NewService(blockingStore{}, memstore.NewSessionStore(), newTestHasher(t),
			auth.WithStoreTimeout(10*time.Millisecond))
		require.NoError(t, err)

		err = svc.Authenticate(ctx, "alice", "ValidPass1!")
		errutil.AssertErrorCode(t, err, auth.CodeStoreUnavailable)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("authenticate does not create a session", func(t *testing.T) {
		sessions := memstore.NewSessionStore()
		f := newFixture(t, sessions)
		f.register(t, "alice", "ValidPass1!")

		require.NoError(t, f.svc.Authenticate(ctx, "alice", "ValidPass1!"))
		assert.Equal(t, 0, sessions.Len())
	})
}

func TestService_SessionLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("create then check succeeds, destroy then check fails", func(t *testing.T) {
		f := newFixture(t, nil)
		f.register(t, "alice", "ValidPass1!")

		session, err := f.svc.CreateSession(ctx, "alice", "ValidPass1!")
		require.NoError(t, err)
		assert.Equal(t, "alice", session.Username)
		assert.Greater(t, len(session.Token), auth.MinTokenLength)

		got, err := f.svc.CheckSession(ctx, session.Token)
		require.NoError(t, err)
		assert.Equal(t, session.Token, got.Token)
		assert.True(t, f.svc.IsSessionValid(ctx, session.Token))

		require.NoError(t, f.svc.DestroySession(ctx, session.Token))
		assert.False(t, f.svc.IsSessionValid(ctx, session.Token))

		_, err = f.svc.CheckSession(ctx, session.Token)
		errutil.AssertErrorCode(t, err, auth.CodeSessionInvalid)
	})

	t.Run("destroy is idempotent", func(t *testing.T) {
		f := newFixture(t, nil)
		f.register(t, "alice", "ValidPass1!")

		session, err := f.svc.CreateSession(ctx, "alice", "ValidPass1!")
		require.NoError(t, err)

		require.NoError(t, f.svc.DestroySession(ctx, session.Token))
		require.NoError(t, f.svc.DestroySession(ctx, session.Token))
		require.NoError(t, f.svc.DestroySession(ctx, ""))
	})

	t.Run("failed login leaves the active session intact", func(t *testing.T) {
		f := newFixture(t, nil)
		f.register(t, "alice", "ValidPass1!")

		session, err := f.svc.CreateSession(ctx, "alice", "ValidPass1!")
		require.NoError(t, err)

		_, err = f.svc.CreateSession(ctx, "alice", "WrongPass1!")
		errutil.AssertErrorCode(t, err, auth.CodeInvalidCredentials)

		assert.True(t, f.svc.IsSessionValid(ctx, session.Token))
	})

	t.Run("re-login issues a distinct token and invalidates the first", func(t *testing.T) {
		f := newFixture(t, nil)
		f.register(t, "alice", "ValidPass1!")

		first, err := f.svc.CreateSession(ctx, "alice", "ValidPass1!")
		require.NoError(t, err)
		second, err := f.svc.CreateSession(ctx, "alice", "ValidPass1!")
		require.NoError(t, err)

		assert.NotEqual(t, first.Token, second.Token)
		assert.False(t, f.svc.IsSessionValid(ctx, first.Token))
		assert.True(t, f.svc.IsSessionValid(ctx, second.Token))
	})

	t.Run("sessions of different users are independent", func(t *testing.T) {
		f := newFixture(t, nil)
		f.register(t, "alice", "ValidPass1!")
		f.register(t, "bob", "OtherPass2@")

		alice, err := f.svc.CreateSession(ctx, "alice", "ValidPass1!")
		require.NoError(t, err)
		bob, err := f.svc.CreateSession(ctx, "bob", "OtherPass2@")
		require.NoError(t, err)

		assert.True(t, f.svc.IsSessionValid(ctx, alice.Token))
		assert.True(t, f.svc.IsSessionValid(ctx, bob.Token))

		require.NoError(t, f.svc.DestroySession(ctx, alice.Token))
		assert.False(t, f.svc.IsSessionValid(ctx, alice.Token))
		assert.True(t, f.svc.IsSessionValid(ctx, bob.Token))
	})

	t.Run("single-slot store lets a second login invalidate the first", func(t *testing.T) {
		f := newFixture(t, memstore.NewSingleSessionStore())
		f.register(t, "alice", "ValidPass1!")
		f.register(t, "bob", "OtherPass2@")

		alice, err := f.svc.CreateSession(ctx, "alice", "ValidPass1!")
		require.NoError(t, err)
		bob, err := f.svc.CreateSession(ctx, "bob", "OtherPass2@")
		require.NoError(t, err)

		assert.NotEqual(t, alice.Token, bob.Token)
		assert.False(t, f.svc.IsSessionValid(ctx, alice.Token))
		assert.True(t, f.svc.IsSessionValid(ctx, bob.Token))
	})

	t.Run("session store failure is reported as unavailable", func(t *testing.T) {
		sessions := mocks.NewMockSessionStore(t)
		f := newFixture(t, sessions)
		f.register(t, "alice", "ValidPass1!")

		sessions.On("Put", mock.Anything, mock.AnythingOfType("*auth.SessionContext")).
			Return(errors.New("disk full"))

		session, err := f.svc.CreateSession(ctx, "alice", "ValidPass1!")
		assert.Nil(t, session)
		errutil.AssertErrorCode(t, err, auth.CodeStoreUnavailable)
	})
}

func TestService_CheckSession(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects tokens at or below the length floor", func(t *testing.T) {
		f := newFixture(t, nil)

		for _, token := range []string{"", "short", string(make([]byte, auth.MinTokenLength))} {
			_, err := f.svc.CheckSession(ctx, token)
			errutil.AssertErrorCode(t, err, auth.CodeSessionInvalid)
		}
	})

	t.Run("rejects an unknown well-formed token", func(t *testing.T) {
		f := newFixture(t, nil)

		token, err := auth.GenerateSessionToken(time.Now())
		require.NoError(t, err)

		_, err = f.svc.CheckSession(ctx, token)
		errutil.AssertErrorCode(t, err, auth.CodeSessionInvalid)
	})

	t.Run("expired session is rejected and evicted", func(t *testing.T) {
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		clock := &fakeClock{now: now}
		sessions := memstore.NewSessionStore()
		f := newFixture(t, sessions, auth.WithClock(clock.Now), auth.WithSessionTTL(time.Hour))
		f.register(t, "alice", "ValidPass1!")

		session, err := f.svc.CreateSession(ctx, "alice", "ValidPass1!")
		require.NoError(t, err)
		assert.Equal(t, now.Add(time.Hour), session.ExpiresAt)

		clock.Advance(59 * time.Minute)
		assert.True(t, f.svc.IsSessionValid(ctx, session.Token))

		clock.Advance(time.Minute)
		_, err = f.svc.CheckSession(ctx, session.Token)
		errutil.AssertErrorCode(t, err, auth.CodeSessionExpired)
		assert.Equal(t, 0, sessions.Len())
	})

	t.Run("zero ttl never expires", func(t *testing.T) {
		clock := &fakeClock{now: time.Now()}
		f := newFixture(t, nil, auth.WithClock(clock.Now), auth.WithSessionTTL(0))
		f.register(t, "alice", "ValidPass1!")

		session, err := f.svc.CreateSession(ctx, "alice", "ValidPass1!")
		require.NoError(t, err)

		clock.Advance(365 * 24 * time.Hour)
		assert.True(t, f.svc.IsSessionValid(ctx, session.Token))
	})

	t.Run("check does not mutate a valid session", func(t *testing.T) {
		sessions := memstore.NewSessionStore()
		f := newFixture(t, sessions)
		f.register(t, "alice", "ValidPass1!")

		session, err := f.svc.CreateSession(ctx, "alice", "ValidPass1!")
		require.NoError(t, err)

		for range 3 {
			got, err := f.svc.CheckSession(ctx, session.Token)
			require.NoError(t, err)
			assert.Equal(t, *session, *got)
		}
		assert.Equal(t, 1, sessions.Len())
	})
}

func TestService_ChangePassword(t *testing.T) {
	ctx := context.Background()

	t.Run("new password works and old one stops working", func(t *testing.T) {
		f := newFixture(t, nil)
		f.register(t, "alice", "ValidPass1!")
		before, err := f.users.Lookup(ctx, "alice")
		require.NoError(t, err)

		require.NoError(t, f.svc.ChangePassword(ctx, "alice", "ValidPass1!", "Rotated#2026"))

		require.NoError(t, f.svc.Authenticate(ctx, "alice", "Rotated#2026"))
		errutil.AssertErrorCode(t, f.svc.Authenticate(ctx, "alice", "ValidPass1!"), auth.CodeInvalidCredentials)

		after, err := f.users.Lookup(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, before.Salt, after.Salt)
		assert.NotEqual(t, before.PasswordHash, after.PasswordHash)
	})

	t.Run("wrong old password leaves the hash unchanged", func(t *testing.T) {
		f := newFixture(t, nil)
		f.register(t, "alice", "ValidPass1!")

		err := f.svc.ChangePassword(ctx, "alice", "WrongPass1!", "Rotated#2026")
		errutil.AssertErrorCode(t, err, auth.CodeInvalidCredentials)

		require.NoError(t, f.svc.Authenticate(ctx, "alice", "ValidPass1!"))
		errutil.AssertErrorCode(t, f.svc.Authenticate(ctx, "alice", "Rotated#2026"), auth.CodeInvalidCredentials)
	})

	t.Run("unknown user is an invalid credential", func(t *testing.T) {
		f := newFixture(t, nil)

		err := f.svc.ChangePassword(ctx, "mallory", "ValidPass1!", "Rotated#2026")
		errutil.AssertErrorCode(t, err, auth.CodeInvalidCredentials)
	})

	t.Run("policy violation leaves the hash unchanged", func(t *testing.T) {
		f := newFixture(t, nil)
		f.register(t, "alice", "ValidPass1!")

		err := f.svc.ChangePassword(ctx, "alice", "ValidPass1!", "nouppercase1!")
		errutil.AssertErrorCode(t, err, auth.CodePolicyViolation)
		errutil.AssertErrorContext(t, err, "rule", auth.RuleMixedCase)

		require.NoError(t, f.svc.Authenticate(ctx, "alice", "ValidPass1!"))
	})

	t.Run("store write is the last step and its failure writes nothing", func(t *testing.T) {
		users := mocks.NewMockCredentialStore(t)
		hasher := newTestHasher(t)
		svc, err := auth.NewService(users, memstore.NewSessionStore(), hasher)
		require.NoError(t, err)

		hash, err := hasher.Hash("ValidPass1!", "alice-salt")
		require.NoError(t, err)
		record := &auth.UserRecord{Username: "alice", Salt: "alice-salt", PasswordHash: hash}

		users.On("Lookup", mock.Anything, "alice").Return(record, nil)
		users.On("UpdateHash", mock.Anything, "alice", mock.AnythingOfType("[]uint8")).
			Return(errors.New("connection reset"))

		err = svc.ChangePassword(ctx, "alice", "ValidPass1!", "Rotated#2026")
		errutil.AssertErrorCode(t, err, auth.CodeStoreUnavailable)

		require.Len(t, users.Calls, 2)
		assert.Equal(t, "Lookup", users.Calls[0].Method)
		assert.Equal(t, "UpdateHash", users.Calls[1].Method)
		assert.Equal(t, hash, record.PasswordHash)
	})

	t.Run("change does not require or disturb a session", func(t *testing.T) {
		f := newFixture(t, nil)
		f.register(t, "alice", "ValidPass1!")

		session, err := f.svc.CreateSession(ctx, "alice", "ValidPass1!")
		require.NoError(t, err)

		require.NoError(t, f.svc.ChangePassword(ctx, "alice", "ValidPass1!", "Rotated#2026"))
		assert.True(t, f.svc.IsSessionValid(ctx, session.Token))
	})
}

func TestService_ChangePasswordMetrics(t *testing.T) {
	ctx := context.Background()
	hasher := newTestHasher(t)
	hash, err := hasher.Hash("ValidPass1!", "alice-salt")
	require.NoError(t, err)

	tests := []struct {
		name      string
		lookupErr error
		old       string
		newPass   string
		code      string
		want      string
	}{
		{"store outage", errors.New("connection refused"), "ValidPass1!", "Rotated#2026", auth.CodeStoreUnavailable, auth.ResultError},
		{"unknown user", auth.ErrNotFound, "ValidPass1!", "Rotated#2026", auth.CodeInvalidCredentials, auth.ResultInvalid},
		{"wrong old password", nil, "WrongPass1!", "Rotated#2026", auth.CodeInvalidCredentials, auth.ResultInvalid},
		{"policy violation", nil, "ValidPass1!", "nouppercase1!", auth.CodePolicyViolation, auth.ResultPolicy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := mocks.NewMockCredentialStore(t)
			if tt.lookupErr != nil {
				users.On("Lookup", mock.Anything, "alice").Return(nil, tt.lookupErr)
			} else {
				record := &auth.UserRecord{Username: "alice", Salt: "alice-salt", PasswordHash: hash}
				users.On("Lookup", mock.Anything, "alice").Return(record, nil)
			}
			metrics := &countingMetrics{}
			svc, err := auth.NewService(users, memstore.NewSessionStore(), hasher, auth.WithMetrics(metrics))
			require.NoError(t, err)

			err = svc.ChangePassword(ctx, "alice", tt.old, tt.newPass)
			errutil.AssertErrorCode(t, err, tt.code)
			assert.Equal(t, []string{tt.want}, metrics.changes())
		})
	}
}

func TestService_ConcurrentSessions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	const n = 8
	for i := range n {
		f.register(t, fmt.Sprintf("user%d", i), "ValidPass1!")
	}

	tokens := make([]string, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := f.svc.CreateSession(ctx, fmt.Sprintf("user%d", i), "ValidPass1!")
			if assert.NoError(t, err) {
				tokens[i] = s.Token
			}
		}()
	}
	wg.Wait()

	for i, token := range tokens {
		assert.True(t, f.svc.IsSessionValid(ctx, token), "session of user%d", i)
	}
}

// blockingStore never answers until the context is done.
type blockingStore struct{}

func (blockingStore) Lookup(ctx context.Context, _ string) (*auth.UserRecord, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingStore) UpdateHash(ctx context.Context, _ string, _ []byte) error {
	<-ctx.Done()
	return ctx.Err()
}

func (blockingStore) Insert(ctx context.Context, _ *auth.UserRecord) error {
	<-ctx.Done()
	return ctx.Err()
}

func (blockingStore) Delete(ctx context.Context, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}

func (blockingStore) List(ctx context.Context) ([]string, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
