// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/samber/oops"

	"github.com/authcore/authcore/internal/auth"
	"github.com/authcore/authcore/internal/auth/memstore"
	"github.com/authcore/authcore/internal/auth/postgres"
	"github.com/authcore/authcore/internal/auth/sqlite"
	"github.com/authcore/authcore/internal/config"
	"github.com/authcore/authcore/internal/logging"
	"github.com/authcore/authcore/internal/store"
)

// stores bundles the backends selected by configuration.
type stores struct {
	users    auth.CredentialStore
	sessions auth.SessionStore
	close    func()
}

func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.Setup(logging.Options{
		Service: "authcore",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   level,
		Writer:  w,
	}), nil
}

func newSessionStore(mode string) auth.SessionStore {
	if mode == config.SessionModeSingle {
		return memstore.NewSingleSessionStore()
	}
	return memstore.NewSessionStore()
}

// openStores connects the credential and session stores. PostgreSQL keeps
// both in the database; the other drivers keep sessions in process.
func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pool, err := store.Connect(ctx, cfg.Store.DSN, store.ConnectOptions{Logger: logger})
		if err != nil {
			return nil, err
		}
		return &stores{
			users:    postgres.NewUserRepository(pool),
			sessions: postgres.NewSessionRepository(pool),
			close:    pool.Close,
		}, nil

	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		return &stores{
			users:    sqlite.NewCredentialStore(db),
			sessions: newSessionStore(cfg.Session.Mode),
			close: func() {
				if err := db.Close(); err != nil {
					logger.Warn("error closing sqlite database", "error", err)
				}
			},
		}, nil

	case config.DriverMemory:
		return &stores{
			users:    memstore.NewCredentialStore(),
			sessions: newSessionStore(cfg.Session.Mode),
			close:    func() {},
		}, nil
	}
	return nil, oops.Code("CONFIG_INVALID").With("driver", cfg.Store.Driver).Errorf("unknown store driver")
}

func newService(cfg *config.Config, s *stores, logger *slog.Logger, metrics auth.MetricsRecorder) (*auth.Service, error) {
	hasher, err := auth.NewArgon2idHasher([]byte(cfg.Hasher.Secret), cfg.Hasher.Params())
	if err != nil {
		return nil, err
	}

	opts := []auth.Option{
		auth.WithPolicy(cfg.Policy.PasswordPolicy()),
		auth.WithSessionTTL(cfg.Session.TTL),
		auth.WithStoreTimeout(cfg.Store.Timeout),
		auth.WithLogger(logger),
	}
	if metrics != nil {
		opts = append(opts, auth.WithMetrics(metrics))
	}
	return auth.NewService(s.users, s.sessions, hasher, opts...)
}

// setup validates cfg and builds the process logger.
func setup(cfg *config.Config, logw io.Writer) (*slog.Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newLogger(cfg, logw)
}

// openService is setup plus stores and service, for the admin commands.
// The caller must call stores.close.
func openService(ctx context.Context, cfg *config.Config, logw io.Writer) (*auth.Service, *stores, error) {
	logger, err := setup(cfg, logw)
	if err != nil {
		return nil, nil, err
	}
	s, err := openStores(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	svc, err := newService(cfg, s, logger, nil)
	if err != nil {
		s.close()
		return nil, nil, err
	}
	return svc, s, nil
}
