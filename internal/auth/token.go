// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session token configuration.
const (
	SessionTokenBytes = 32             // random suffix, 64 hex chars
	MinTokenLength    = 64             // tokens must be strictly longer
	DefaultSessionTTL = 24 * time.Hour // 24 hour expiry
)

// GenerateSessionToken returns a ULID (millisecond timestamp plus 80 random
// bits) followed by SessionTokenBytes of CSPRNG output in hex, 90 characters.
func GenerateSessionToken(now time.Time) (string, error) {
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "ulid.New").
			Wrap(err)
	}

	suffix := make([]byte, SessionTokenBytes)
	if _, err := rand.Read(suffix); err != nil {
		return "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SessionTokenBytes).
			Wrap(err)
	}

	return id.String() + hex.EncodeToString(suffix), nil
}

// HashSessionToken computes the SHA256 hash of a session token.
// Stores that persist sessions outside the process keep only this hash.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// wellFormedToken applies the length floor. It is a sanity check only.
func wellFormedToken(token string) bool {
	return len(token) > MinTokenLength
}
