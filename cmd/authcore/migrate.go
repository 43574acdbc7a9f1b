// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package main

import (
	"strconv"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/authcore/authcore/internal/config"
	"github.com/authcore/authcore/internal/store"
)

// migrator is the subset of store.Migrator the commands drive.
type migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (uint, bool, error)
	Force(version int) error
	Pending() ([]store.Migration, error)
	Close() error
}

// newMigrator is replaced in tests.
var newMigrator = func(databaseURL string) (migrator, error) {
	return store.NewMigrator(databaseURL)
}

// NewMigrateCmd creates the migrate command group.
func NewMigrateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
		Long: `Apply, roll back or inspect PostgreSQL schema migrations. The sqlite
driver creates its schema on open and needs no migrations.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: withMigrator(opts, func(cmd *cobra.Command, m migrator, _ []string) error {
			if err := m.Up(); err != nil {
				return err
			}
			return printVersion(cmd, m)
		}),
	})

	var all bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: withMigrator(opts, func(cmd *cobra.Command, m migrator, _ []string) error {
			if all {
				if err := m.Down(); err != nil {
					return err
				}
			} else if err := m.Steps(-1); err != nil {
				return err
			}
			return printVersion(cmd, m)
		}),
	}
	down.Flags().BoolVar(&all, "all", false, "roll back every migration (drops all users and sessions)")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the applied version and pending migrations",
		Args:  cobra.NoArgs,
		RunE:  withMigrator(opts, runMigrateStatus),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied without running it",
		Long:  `Clear a dirty schema by recording VERSION as cleanly applied.`,
		Args:  cobra.ExactArgs(1),
		RunE: withMigrator(opts, func(cmd *cobra.Command, m migrator, args []string) error {
			version, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			if err := m.Force(version); err != nil {
				return err
			}
			return printVersion(cmd, m)
		}),
	})

	return cmd
}

// withMigrator resolves the database URL, opens a migrator for the
// duration of fn and closes it afterwards.
func withMigrator(opts *rootOptions, fn func(*cobra.Command, migrator, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := opts.load(cmd)
		if err != nil {
			return err
		}
		databaseURL, err := getDatabaseURL(cfg)
		if err != nil {
			return err
		}
		m, err := newMigrator(databaseURL)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := m.Close(); closeErr != nil {
				cmd.PrintErrf("warning: %v\n", closeErr)
			}
		}()
		return fn(cmd, m, args)
	}
}

func getDatabaseURL(cfg *config.Config) (string, error) {
	if cfg.Store.Driver != config.DriverPostgres {
		return "", oops.Code("CONFIG_INVALID").
			With("driver", cfg.Store.Driver).
			Errorf("migrations require the postgres store driver")
	}
	if cfg.Store.DSN == "" {
		return "", oops.Code("CONFIG_INVALID").
			Errorf("store.dsn or %s is required", config.EnvDatabaseURL)
	}
	return cfg.Store.DSN, nil
}

func parseForceVersion(s string) (int, error) {
	version, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Errorf("version must be an integer")
	}
	return version, nil
}

func printVersion(cmd *cobra.Command, m migrator) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	if dirty {
		cmd.Printf("schema version %d (dirty)\n", version)
		return nil
	}
	cmd.Printf("schema version %d\n", version)
	return nil
}

func runMigrateStatus(cmd *cobra.Command, m migrator, _ []string) error {
	if err := printVersion(cmd, m); err != nil {
		return err
	}
	pending, err := m.Pending()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		cmd.Println("no pending migrations")
		return nil
	}
	cmd.Printf("%d pending:\n", len(pending))
	for _, mg := range pending {
		cmd.Printf("  %s\n", mg.Name)
	}
	return nil
}
