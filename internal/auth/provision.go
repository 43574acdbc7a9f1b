// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth

import (
	"context"
	"errors"

	"github.com/samber/oops"
)

// Register provisions a new user with a fresh random salt.
// The password must satisfy the policy.
func (s *Service) Register(ctx context.Context, username, password string) error {
	if err := ValidateUsername(username); err != nil {
		return err
	}
	if err := s.policy.Check(password); err != nil {
		return oops.With("username", username).Wrap(err)
	}

	salt, err := NewSalt()
	if err != nil {
		return err
	}
	hash, err := s.hasher.Hash(password, salt)
	if err != nil {
		return oops.Code("AUTH_HASH_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}
	record, err := NewUserRecord(username, salt, hash, s.now())
	if err != nil {
		return err
	}

	insCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.users.Insert(insCtx, record); err != nil {
		if errors.Is(err, ErrConflict) {
			return oops.Code(CodeUserExists).
				With("username", username).
				Errorf("user already exists")
		}
		return storeUnavailable("insert user", err)
	}

	s.logger.InfoContext(ctx, "user registered", "username", username)
	return nil
}

// SetPassword overwrites a user's password without the old one, keeping the
// salt. It is an administrative operation and revokes the user's sessions.
// Sessions are revoked before the write, so a failure leaves the password
// unchanged and at worst costs the user a re-login.
func (s *Service) SetPassword(ctx context.Context, username, password string) error {
	if err := s.policy.Check(password); err != nil {
		return oops.With("username", username).Wrap(err)
	}

	lookupCtx, cancel := s.storeCtx(ctx)
	record, err := s.users.Lookup(lookupCtx, username)
	cancel()
	if err != nil {
		return s.userError("lookup user", username, err)
	}

	hash, err := s.hasher.Hash(password, record.Salt)
	if err != nil {
		return oops.Code("AUTH_HASH_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	if err := s.revokeUserSessions(ctx, username); err != nil {
		return err
	}

	updCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.users.UpdateHash(updCtx, username, hash); err != nil {
		return s.userError("update password hash", username, err)
	}
	s.sweepUserSessions(ctx, username)

	s.logger.InfoContext(ctx, "password reset by administrator", "username", username)
	return nil
}

// RemoveUser revokes a user's sessions and then deletes the user.
func (s *Service) RemoveUser(ctx context.Context, username string) error {
	if err := s.revokeUserSessions(ctx, username); err != nil {
		return err
	}

	delCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.users.Delete(delCtx, username); err != nil {
		return s.userError("delete user", username, err)
	}
	s.sweepUserSessions(ctx, username)

	s.logger.InfoContext(ctx, "user removed", "username", username)
	return nil
}

// ListUsers returns all usernames in ascending order.
func (s *Service) ListUsers(ctx context.Context) ([]string, error) {
	listCtx, cancel := s.storeCtx(ctx)
	defer cancel()

	names, err := s.users.List(listCtx)
	if err != nil {
		return nil, storeUnavailable("list users", err)
	}
	return names, nil
}

func (s *Service) revokeUserSessions(ctx context.Context, username string) error {
	revCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.sessions.DeleteByUser(revCtx, username); err != nil {
		return storeUnavailable("revoke sessions", err)
	}
	return nil
}

// sweepUserSessions drops sessions issued between the revocation and the
// credential write. The write has already happened, so failure is logged.
func (s *Service) sweepUserSessions(ctx context.Context, username string) {
	revCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.sessions.DeleteByUser(revCtx, username); err != nil {
		s.logger.WarnContext(ctx, "post-write session revocation failed", "username", username, "error", err)
	}
}

func (s *Service) userError(operation, username string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return oops.Code(CodeUserNotFound).
			With("username", username).
			Errorf("user not found")
	}
	return storeUnavailable(operation, err)
}
