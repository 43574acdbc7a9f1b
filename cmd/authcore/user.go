// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package main

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/authcore/authcore/internal/auth"
)

// readTerminalPassword is replaced in tests.
var readTerminalPassword = term.ReadPassword

// NewUserCmd creates the user administration command group.
func NewUserCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
		Long: `Provision, list and remove users in the configured credential store.
Passwords are prompted for on a terminal, or read one per line from
standard input otherwise.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add USERNAME",
		Short: "Create a user",
		Args:  cobra.ExactArgs(1),
		RunE: withService(opts, func(cmd *cobra.Command, svc *auth.Service, args []string) error {
			password, err := promptNewPassword(cmd)
			if err != nil {
				return err
			}
			if err := svc.Register(cmd.Context(), args[0], password); err != nil {
				return err
			}
			cmd.Printf("user %q created\n", args[0])
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "passwd USERNAME",
		Short: "Reset a user's password and revoke their sessions",
		Args:  cobra.ExactArgs(1),
		RunE: withService(opts, func(cmd *cobra.Command, svc *auth.Service, args []string) error {
			password, err := promptNewPassword(cmd)
			if err != nil {
				return err
			}
			if err := svc.SetPassword(cmd.Context(), args[0], password); err != nil {
				return err
			}
			cmd.Printf("password for %q updated\n", args[0])
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "delete USERNAME",
		Aliases: []string{"rm"},
		Short:   "Delete a user",
		Args:    cobra.ExactArgs(1),
		RunE: withService(opts, func(cmd *cobra.Command, svc *auth.Service, args []string) error {
			if err := svc.RemoveUser(cmd.Context(), args[0]); err != nil {
				return err
			}
			cmd.Printf("user %q deleted\n", args[0])
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List usernames",
		Args:    cobra.NoArgs,
		RunE: withService(opts, func(cmd *cobra.Command, svc *auth.Service, _ []string) error {
			names, err := svc.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				cmd.Println(name)
			}
			return nil
		}),
	})

	return cmd
}

func withService(opts *rootOptions, fn func(*cobra.Command, *auth.Service, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := opts.load(cmd)
		if err != nil {
			return err
		}
		svc, s, err := openService(cmd.Context(), cfg, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer s.close()
		return fn(cmd, svc, args)
	}
}

// promptNewPassword reads a password twice from a terminal, or once from
// any other input.
func promptNewPassword(cmd *cobra.Command) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		first, err := promptTerminal(cmd, f, "New password: ")
		if err != nil {
			return "", err
		}
		second, err := promptTerminal(cmd, f, "Retype new password: ")
		if err != nil {
			return "", err
		}
		if first != second {
			return "", oops.Code(auth.CodePasswordMismatch).Errorf("passwords do not match")
		}
		return first, nil
	}
	return readPasswordLine(in)
}

func promptTerminal(cmd *cobra.Command, f *os.File, prompt string) (string, error) {
	cmd.PrintErr(prompt)
	b, err := readTerminalPassword(int(f.Fd()))
	cmd.PrintErrln()
	if err != nil {
		return "", oops.Code("PASSWORD_READ_FAILED").Wrap(err)
	}
	return string(b), nil
}

func readPasswordLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", oops.Code("PASSWORD_READ_FAILED").Errorf("no password on standard input")
	}
	return strings.TrimRight(line, "\r\n"), nil
}
