// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// OWASP-recommended argon2id parameters.
const (
	argon2Time    = 1         // iterations
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4         // parallelism
	argon2KeyLen  = 32        // output length in bytes
)

// SaltBytes is the number of random bytes in a freshly generated salt.
const SaltBytes = 32

// Argon2idParams tunes the cost of the argon2id transform.
type Argon2idParams struct {
	Iterations  uint32
	MemoryKiB   uint32
	Parallelism uint8
	KeyLength   uint32
}

// DefaultArgon2idParams returns the OWASP-recommended parameters.
func DefaultArgon2idParams() Argon2idParams {
	return Argon2idParams{
		Iterations:  argon2Time,
		MemoryKiB:   argon2Memory,
		Parallelism: argon2Threads,
		KeyLength:   argon2KeyLen,
	}
}

// Validate rejects parameter sets argon2 cannot run with.
func (p Argon2idParams) Validate() error {
	if p.Iterations == 0 {
		return oops.Code(CodeHasherConfig).Errorf("argon2id iterations must be positive")
	}
	if p.Parallelism == 0 {
		return oops.Code(CodeHasherConfig).Errorf("argon2id parallelism must be positive")
	}
	if p.MemoryKiB < 8*uint32(p.Parallelism) {
		return oops.Code(CodeHasherConfig).
			With("memory_kib", p.MemoryKiB).
			With("parallelism", p.Parallelism).
			Errorf("argon2id memory must be at least 8 KiB per thread")
	}
	if p.KeyLength < 16 {
		return oops.Code(CodeHasherConfig).
			With("key_length", p.KeyLength).
			Errorf("argon2id key length must be at least 16 bytes")
	}
	return nil
}

// Hasher transforms a password and per-user salt into a comparable value.
type Hasher interface {
	// Hash is deterministic: identical inputs always yield identical output.
	Hash(password, salt string) ([]byte, error)

	// Verify recomputes the hash and compares in constant time.
	// Returns (true, nil) on match, (false, nil) on mismatch.
	Verify(password, salt string, hash []byte) (bool, error)
}

// Argon2idHasher implements Hasher with argon2id over an HMAC-SHA256 of the
// password keyed by a process-wide secret.
type Argon2idHasher struct {
	secret []byte
	params Argon2idParams
}

// NewArgon2idHasher creates a hasher keyed by secret.
// An empty secret or unusable params is a configuration error.
func NewArgon2idHasher(secret []byte, params Argon2idParams) (*Argon2idHasher, error) {
	if len(secret) == 0 {
		return nil, oops.Code(CodeHasherConfig).Errorf("hasher secret cannot be empty")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	return &Argon2idHasher{secret: key, params: params}, nil
}

// Hash computes argon2id(HMAC(secret, password), salt).
func (h *Argon2idHasher) Hash(password, salt string) ([]byte, error) {
	if salt == "" {
		return nil, oops.Code(CodeHasherConfig).Errorf("salt cannot be empty")
	}

	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(password))
	peppered := mac.Sum(nil)

	return argon2.IDKey(
		peppered,
		[]byte(salt),
		h.params.Iterations,
		h.params.MemoryKiB,
		h.params.Parallelism,
		h.params.KeyLength,
	), nil
}

// Verify checks if the password matches the stored hash.
func (h *Argon2idHasher) Verify(password, salt string, hash []byte) (bool, error) {
	computed, err := h.Hash(password, salt)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(computed, hash) == 1, nil
}

// NewSalt returns SaltBytes of CSPRNG output, base64url-encoded.
func NewSalt() (string, error) {
	b := make([]byte, SaltBytes)
	if _, err := rand.Read(b); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").
			With("operation", "crypto/rand.Read").
			Wrap(err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
