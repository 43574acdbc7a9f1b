// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth

import (
	"context"
	"regexp"
	"time"

	"github.com/samber/oops"
)

// Username validation constraints.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 64
)

// usernameRegex matches usernames that:
// - Start with a letter (a-z, A-Z)
// - Contain only letters, numbers, dots, dashes and underscores
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_.-]*$`)

// UserRecord is the stored credential of one user.
// PasswordHash is always the Hasher output over (password, Salt); Salt is
// fixed at creation.
type UserRecord struct {
	Username     string
	Salt         string
	PasswordHash []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUserRecord creates a validated UserRecord created at now.
func NewUserRecord(username, salt string, passwordHash []byte, now time.Time) (*UserRecord, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if salt == "" {
		return nil, oops.Code("USER_INVALID_SALT").Errorf("salt cannot be empty")
	}
	if len(passwordHash) == 0 {
		return nil, oops.Code("USER_INVALID_HASH").Errorf("password hash cannot be empty")
	}

	now = now.UTC()
	return &UserRecord{
		Username:     username,
		Salt:         salt,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// ValidateUsername validates a username against rules.
// Username requirements:
// - Length: MinUsernameLength to MaxUsernameLength characters
// - Must start with a letter
// - Can contain only letters, numbers, dots, dashes and underscores
func ValidateUsername(username string) error {
	if username == "" {
		return oops.Code(CodeInvalidUsername).Errorf("username cannot be empty")
	}
	if len(username) < MinUsernameLength {
		return oops.Code(CodeInvalidUsername).
			With("min", MinUsernameLength).
			Errorf("username must be at least %d characters", MinUsernameLength)
	}
	if len(username) > MaxUsernameLength {
		return oops.Code(CodeInvalidUsername).
			With("max", MaxUsernameLength).
			Errorf("username must be at most %d characters", MaxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return oops.Code(CodeInvalidUsername).
			Errorf("username must start with a letter and contain only letters, numbers, '.', '-' and '_'")
	}
	return nil
}

// CredentialStore manages user credential persistence.
type CredentialStore interface {
	// Lookup retrieves a user by username.
	// Returns an error wrapping ErrNotFound if the user does not exist.
	Lookup(ctx context.Context, username string) (*UserRecord, error)

	// UpdateHash replaces only the password hash of an existing user.
	// Returns an error wrapping ErrNotFound if the user does not exist.
	UpdateHash(ctx context.Context, username string, passwordHash []byte) error

	// Insert stores a new user.
	// Returns an error wrapping ErrConflict if the username is taken.
	Insert(ctx context.Context, record *UserRecord) error

	// Delete removes a user.
	// Returns an error wrapping ErrNotFound if the user does not exist.
	Delete(ctx context.Context, username string) error

	// List returns all usernames in ascending order.
	List(ctx context.Context) ([]string, error)
}
