// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

// Package sqlite provides a file-backed auth.CredentialStore.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/samber/oops"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/authcore/authcore/internal/auth"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    name       TEXT PRIMARY KEY,
    salt       TEXT NOT NULL,
    pass       BLOB NOT NULL,
    created_at INTEGER NOT NULL DEFAULT 0,
    updated_at INTEGER NOT NULL DEFAULT 0
);`

// timestampColumns are absent from databases created by the legacy tool,
// whose table is users(name, salt, pass).
var timestampColumns = []string{"created_at", "updated_at"}

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA foreign_keys=ON",
}

// Open opens (creating if needed) the database at path and ensures the
// users table exists. Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, oops.Code("STORE_OPEN_FAILED").With("path", path).Wrap(err)
	}

	// SQLite serializes writers; a single connection also keeps
	// :memory: databases alive across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close() //nolint:errcheck // open error takes precedence
			return nil, oops.Code("STORE_OPEN_FAILED").With("pragma", pragma).Wrap(err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close() //nolint:errcheck // open error takes precedence
		return nil, oops.Code("STORE_OPEN_FAILED").With("operation", "create schema").Wrap(err)
	}
	if err := addMissingColumns(ctx, db); err != nil {
		_ = db.Close() //nolint:errcheck // open error takes precedence
		return nil, oops.Code("STORE_OPEN_FAILED").With("operation", "upgrade schema").Wrap(err)
	}
	return db, nil
}

// addMissingColumns brings a legacy users table up to the current schema.
// Existing rows get 0 timestamps, which read back as the zero time.
func addMissingColumns(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `SELECT name FROM pragma_table_info('users')`)
	if err != nil {
		return err
	}
	have := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			_ = rows.Close() //nolint:errcheck // scan error takes precedence
			return err
		}
		have[name] = true
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, col := range timestampColumns {
		if have[col] {
			continue
		}
		if _, err := db.ExecContext(ctx,
			`ALTER TABLE users ADD COLUMN `+col+` INTEGER NOT NULL DEFAULT 0`); err != nil {
			return oops.With("column", col).Wrap(err)
		}
	}
	return nil
}

// CredentialStore implements auth.CredentialStore on SQLite.
type CredentialStore struct {
	db *sql.DB
}

// NewCredentialStore wraps an open database.
func NewCredentialStore(db *sql.DB) *CredentialStore {
	return &CredentialStore{db: db}
}

// Lookup retrieves a user by name.
func (s *CredentialStore) Lookup(ctx context.Context, username string) (*auth.UserRecord, error) {
	var (
		rec              = &auth.UserRecord{}
		created, updated int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT name, salt, pass, created_at, updated_at FROM users WHERE name = ?`, username).
		Scan(&rec.Username, &rec.Salt, &rec.PasswordHash, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oops.With("username", username).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.With("operation", "select user").With("username", username).Wrap(err)
	}
	rec.CreatedAt = fromUnix(created)
	rec.UpdatedAt = fromUnix(updated)
	return rec, nil
}

// UpdateHash replaces the password hash of an existing user.
func (s *CredentialStore) UpdateHash(ctx context.Context, username string, passwordHash []byte) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET pass = ?, updated_at = ? WHERE name = ?`,
		passwordHash, time.Now().Unix(), username)
	if err != nil {
		return oops.With("operation", "update password hash").With("username", username).Wrap(err)
	}
	return requireRow(res, username)
}

// Insert stores a new user.
func (s *CredentialStore) Insert(ctx context.Context, rec *auth.UserRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (name, salt, pass, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		rec.Username, rec.Salt, rec.PasswordHash, rec.CreatedAt.Unix(), rec.UpdatedAt.Unix())
	if isConstraintViolation(err) {
		return oops.With("username", rec.Username).Wrap(auth.ErrConflict)
	}
	if err != nil {
		return oops.With("operation", "insert user").With("username", rec.Username).Wrap(err)
	}
	return nil
}

// Delete removes a user.
func (s *CredentialStore) Delete(ctx context.Context, username string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE name = ?`, username)
	if err != nil {
		return oops.With("operation", "delete user").With("username", username).Wrap(err)
	}
	return requireRow(res, username)
}

// List returns all usernames in ascending order.
func (s *CredentialStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM users ORDER BY name`)
	if err != nil {
		return nil, oops.With("operation", "list users").Wrap(err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, oops.With("operation", "scan user row").Wrap(err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.With("operation", "iterate users").Wrap(err)
	}
	return names, nil
}

func requireRow(res sql.Result, username string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return oops.With("operation", "rows affected").Wrap(err)
	}
	if n == 0 {
		return oops.With("username", username).Wrap(auth.ErrNotFound)
	}
	return nil
}

func isConstraintViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	}
	return false
}

func fromUnix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

var _ auth.CredentialStore = (*CredentialStore)(nil)
