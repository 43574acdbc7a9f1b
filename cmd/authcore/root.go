// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/authcore/authcore/internal/config"
	"github.com/authcore/authcore/internal/xdg"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configFile string
}

// NewRootCmd creates the root command for the authcore CLI.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:   "authcore",
		Short: "authcore - credential verification and session management",
		Long: `authcore verifies username/password credentials against a salted,
peppered argon2id store, enforces password complexity, and issues
cookie-borne session tokens over a small HTTP API.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file path (default $XDG_CONFIG_HOME/authcore/config.yaml if present)")
	flags.String("log-format", defaults.Log.Format, "log format (json or text)")
	flags.String("log-level", defaults.Log.Level, "log level (debug, info, warn, error)")
	flags.String("store-driver", defaults.Store.Driver, "credential store (sqlite, postgres or memory)")
	flags.String("dsn", defaults.Store.DSN, "sqlite path or PostgreSQL URL")

	cmd.AddCommand(NewServeCmd(opts))
	cmd.AddCommand(NewMigrateCmd(opts))
	cmd.AddCommand(NewUserCmd(opts))
	cmd.AddCommand(NewConfigCmd(opts))

	return cmd
}

// load reads configuration for cmd: file, then environment, then flags.
// Without --config the XDG config file is used when one exists.
func (o *rootOptions) load(cmd *cobra.Command) (*config.Config, error) {
	path := o.configFile
	if path == "" {
		found, err := xdg.ConfigFile()
		if err != nil {
			return nil, err
		}
		path = found
	}
	return config.Load(path, cmd.Flags())
}
