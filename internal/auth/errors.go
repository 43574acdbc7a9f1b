// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when inserting a record whose key already exists.
var ErrConflict = errors.New("already exists")

// Error codes surfaced to callers. Unknown user and wrong password share
// CodeInvalidCredentials.
const (
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodePolicyViolation    = "AUTH_POLICY_VIOLATION"
	CodePasswordMismatch   = "AUTH_PASSWORD_MISMATCH"
	CodeInvalidUsername    = "AUTH_INVALID_USERNAME"
	CodeHasherConfig       = "AUTH_HASHER_CONFIG"
	CodeStoreUnavailable   = "STORE_UNAVAILABLE"
	CodeSessionInvalid     = "SESSION_INVALID"
	CodeSessionExpired     = "SESSION_EXPIRED"
	CodeUserExists         = "USER_EXISTS"
	CodeUserNotFound       = "USER_NOT_FOUND"
)
