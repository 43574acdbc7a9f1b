// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

// Package mocks provides testify mocks for the auth interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/authcore/authcore/internal/auth"
)

// T is the subset of testing.TB the constructors need.
type T interface {
	mock.TestingT
	Cleanup(func())
}

// MockCredentialStore is a mock auth.CredentialStore.
type MockCredentialStore struct {
	mock.Mock
}

// NewMockCredentialStore creates a mock that asserts its expectations on cleanup.
func NewMockCredentialStore(t T) *MockCredentialStore {
	m := &MockCredentialStore{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockCredentialStore) Lookup(ctx context.Context, username string) (*auth.UserRecord, error) {
	args := m.Called(ctx, username)
	rec, _ := args.Get(0).(*auth.UserRecord)
	return rec, args.Error(1)
}

func (m *MockCredentialStore) UpdateHash(ctx context.Context, username string, passwordHash []byte) error {
	return m.Called(ctx, username, passwordHash).Error(0)
}

func (m *MockCredentialStore) Insert(ctx context.Context, record *auth.UserRecord) error {
	return m.Called(ctx, record).Error(0)
}

func (m *MockCredentialStore) Delete(ctx context.Context, username string) error {
	return m.Called(ctx, username).Error(0)
}

func (m *MockCredentialStore) List(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	names, _ := args.Get(0).([]string)
	return names, args.Error(1)
}

// MockSessionStore is a mock auth.SessionStore.
type MockSessionStore struct {
	mock.Mock
}

// NewMockSessionStore creates a mock that asserts its expectations on cleanup.
func NewMockSessionStore(t T) *MockSessionStore {
	m := &MockSessionStore{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockSessionStore) Put(ctx context.Context, session *auth.SessionContext) error {
	return m.Called(ctx, session).Error(0)
}

func (m *MockSessionStore) Get(ctx context.Context, token string) (*auth.SessionContext, error) {
	args := m.Called(ctx, token)
	s, _ := args.Get(0).(*auth.SessionContext)
	return s, args.Error(1)
}

func (m *MockSessionStore) Delete(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

func (m *MockSessionStore) DeleteByUser(ctx context.Context, username string) error {
	return m.Called(ctx, username).Error(0)
}

func (m *MockSessionStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	n, _ := args.Get(0).(int64)
	return n, args.Error(1)
}

// MockHasher is a mock auth.Hasher.
type MockHasher struct {
	mock.Mock
}

// NewMockHasher creates a mock that asserts its expectations on cleanup.
func NewMockHasher(t T) *MockHasher {
	m := &MockHasher{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockHasher) Hash(password, salt string) ([]byte, error) {
	args := m.Called(password, salt)
	h, _ := args.Get(0).([]byte)
	return h, args.Error(1)
}

func (m *MockHasher) Verify(password, salt string, hash []byte) (bool, error) {
	args := m.Called(password, salt, hash)
	return args.Bool(0), args.Error(1)
}
