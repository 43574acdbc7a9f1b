// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/authcore/authcore/pkg/errutil"
)

// DefaultStoreTimeout bounds every credential and session store call.
const DefaultStoreTimeout = 5 * time.Second

// Metric result labels passed to MetricsRecorder.
const (
	ResultSuccess = "success"
	ResultInvalid = "invalid"
	ResultPolicy  = "policy"
	ResultExpired = "expired"
	ResultError   = "error"
)

// MetricsRecorder receives counters for auth operations.
type MetricsRecorder interface {
	AuthAttempt(result string)
	SessionIssued()
	SessionDestroyed()
	SessionCheck(result string)
	PasswordChange(result string)
}

type noopMetrics struct{}

func (noopMetrics) AuthAttempt(string)    {}
func (noopMetrics) SessionIssued()        {}
func (noopMetrics) SessionDestroyed()     {}
func (noopMetrics) SessionCheck(string)   {}
func (noopMetrics) PasswordChange(string) {}

// dummySalt and dummyHash stand in for a missing user so verification
// still runs and response time does not reveal whether a username exists.
// They are not a credential; no password hashes to an all-zero value.
//
//nolint:gosec // G101: intentionally fake values for timing attack prevention.
const dummySalt = "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

var dummyHash = make([]byte, argon2KeyLen)

// Service provides authentication operations.
type Service struct {
	users        CredentialStore
	sessions     SessionStore
	hasher       Hasher
	policy       PasswordPolicy
	sessionTTL   time.Duration
	storeTimeout time.Duration
	logger       *slog.Logger
	metrics      MetricsRecorder
	now          func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithPolicy sets the password complexity policy.
func WithPolicy(p PasswordPolicy) Option {
	return func(s *Service) { s.policy = p }
}

// WithSessionTTL sets the session lifetime. Zero disables expiry.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) { s.sessionTTL = ttl }
}

// WithStoreTimeout bounds each store call.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *Service) { s.storeTimeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new Service. All three dependencies are required.
func NewService(users CredentialStore, sessions SessionStore, hasher Hasher, opts ...Option) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("credential store is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("session store is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("password hasher is required")
	}

	s := &Service{
		users:        users,
		sessions:     sessions,
		hasher:       hasher,
		policy:       DefaultPasswordPolicy(),
		sessionTTL:   DefaultSessionTTL,
		storeTimeout: DefaultStoreTimeout,
		logger:       slog.Default(),
		metrics:      noopMetrics{},
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("logger is required")
	}
	if s.metrics == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("metrics recorder is required")
	}
	if s.now == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("clock is required")
	}
	if s.sessionTTL < 0 {
		return nil, oops.Code("CONFIG_INVALID").Errorf("session ttl cannot be negative")
	}
	if s.storeTimeout <= 0 {
		return nil, oops.Code("CONFIG_INVALID").Errorf("store timeout must be positive")
	}
	if err := s.policy.Verify(); err != nil {
		return nil, err
	}
	return s, nil
}

// Policy returns the configured password policy.
func (s *Service) Policy() PasswordPolicy {
	return s.policy
}

// storeCtx bounds a single store call.
func (s *Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storeTimeout)
}

func storeUnavailable(operation string, err error) error {
	return oops.Code(CodeStoreUnavailable).
		With("operation", operation).
		Wrap(err)
}

func invalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Errorf("invalid username or password")
}

// Authenticate checks username and password against the credential store.
// Unknown users and wrong passwords both return AUTH_INVALID_CREDENTIALS.
// It has no side effects.
func (s *Service) Authenticate(ctx context.Context, username, password string) error {
	_, err := s.authenticate(ctx, username, password)
	return err
}

func (s *Service) authenticate(ctx context.Context, username, password string) (*UserRecord, error) {
	lookupCtx, cancel := s.storeCtx(ctx)
	record, lookupErr := s.users.Lookup(lookupCtx, username)
	cancel()

	salt, hash := dummySalt, dummyHash
	exists := false
	switch {
	case lookupErr == nil:
		salt, hash = record.Salt, record.PasswordHash
		exists = true
	case !errors.Is(lookupErr, ErrNotFound):
		s.metrics.AuthAttempt(ResultError)
		s.logger.WarnContext(ctx, "credential lookup failed", "username", username, "error", lookupErr)
		return nil, storeUnavailable("lookup user", lookupErr)
	}

	// Verify even for unknown users to keep timing uniform.
	valid, verifyErr := s.hasher.Verify(password, salt, hash)
	if verifyErr != nil {
		if !exists {
			s.metrics.AuthAttempt(ResultInvalid)
			return nil, invalidCredentials()
		}
		s.metrics.AuthAttempt(ResultError)
		return nil, oops.Code("AUTH_VERIFY_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}

	if !exists || !valid {
		s.metrics.AuthAttempt(ResultInvalid)
		s.logger.DebugContext(ctx, "credentials rejected", "username", username)
		return nil, invalidCredentials()
	}

	s.metrics.AuthAttempt(ResultSuccess)
	return record, nil
}

// CreateSession authenticates and, on success, issues a session token.
// The new session displaces the user's previous one; a failed
// authentication leaves every stored session untouched.
func (s *Service) CreateSession(ctx context.Context, username, password string) (*SessionContext, error) {
	record, err := s.authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	token, err := GenerateSessionToken(now)
	if err != nil {
		return nil, err
	}

	session, err := NewSessionContext(token, record.Username, now, s.sessionTTL)
	if err != nil {
		return nil, oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "create session context").
			Wrap(err)
	}

	putCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.sessions.Put(putCtx, session); err != nil {
		s.logger.WarnContext(ctx, "session store write failed", "username", record.Username, "error", err)
		return nil, storeUnavailable("put session", err)
	}

	s.metrics.SessionIssued()
	s.logger.InfoContext(ctx, "session created", "username", record.Username)
	return session, nil
}

// DestroySession removes the session for token. It is idempotent: an empty
// or unknown token is a no-op.
func (s *Service) DestroySession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	delCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.sessions.Delete(delCtx, token); err != nil {
		return storeUnavailable("delete session", err)
	}

	s.metrics.SessionDestroyed()
	s.logger.InfoContext(ctx, "session destroyed")
	return nil
}

// CheckSession returns the active session for token.
// Missing, malformed and unknown tokens return SESSION_INVALID; an expired
// session returns SESSION_EXPIRED and is evicted.
func (s *Service) CheckSession(ctx context.Context, token string) (*SessionContext, error) {
	if !wellFormedToken(token) {
		s.metrics.SessionCheck(ResultInvalid)
		return nil, oops.Code(CodeSessionInvalid).Errorf("invalid session token")
	}

	getCtx, cancel := s.storeCtx(ctx)
	defer cancel()

	session, err := s.sessions.Get(getCtx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.metrics.SessionCheck(ResultInvalid)
			return nil, oops.Code(CodeSessionInvalid).Errorf("invalid session token")
		}
		s.metrics.SessionCheck(ResultError)
		return nil, storeUnavailable("get session", err)
	}

	if subtle.ConstantTimeCompare([]byte(session.Token), []byte(token)) != 1 {
		s.metrics.SessionCheck(ResultInvalid)
		return nil, oops.Code(CodeSessionInvalid).Errorf("invalid session token")
	}

	if session.IsExpiredAt(s.now()) {
		s.metrics.SessionCheck(ResultExpired)
		//nolint:errcheck // Best effort, the sweeper collects leftovers.
		_ = s.sessions.Delete(getCtx, token)
		return nil, oops.Code(CodeSessionExpired).
			With("expired_at", session.ExpiresAt).
			Errorf("session has expired")
	}

	s.metrics.SessionCheck(ResultSuccess)
	return session, nil
}

// IsSessionValid is the boolean form of CheckSession.
func (s *Service) IsSessionValid(ctx context.Context, token string) bool {
	_, err := s.CheckSession(ctx, token)
	return err == nil
}

// ChangePassword replaces a user's password after verifying the old one
// and checking the new one against the policy. The salt is reused. The
// store write is the last step, so any earlier failure writes nothing.
func (s *Service) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	record, err := s.authenticate(ctx, username, oldPassword)
	if err != nil {
		result := ResultError
		if errutil.Code(err) == CodeInvalidCredentials {
			result = ResultInvalid
		}
		s.metrics.PasswordChange(result)
		return err
	}

	if err := s.policy.Check(newPassword); err != nil {
		s.metrics.PasswordChange(ResultPolicy)
		return oops.With("username", username).Wrap(err)
	}

	newHash, err := s.hasher.Hash(newPassword, record.Salt)
	if err != nil {
		s.metrics.PasswordChange(ResultError)
		return oops.Code("AUTH_HASH_FAILED").
			With("operation", "hash new password").
			Wrap(err)
	}

	updCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.users.UpdateHash(updCtx, record.Username, newHash); err != nil {
		s.metrics.PasswordChange(ResultError)
		s.logger.WarnContext(ctx, "password update failed", "username", record.Username, "error", err)
		return storeUnavailable("update password hash", err)
	}

	s.metrics.PasswordChange(ResultSuccess)
	s.logger.InfoContext(ctx, "password changed", "username", record.Username)
	return nil
}
