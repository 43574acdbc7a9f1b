// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package main

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/authcore/authcore/internal/config"
)

const testSecret = "cli-test-secret-0123456789"

// writeTestConfig writes a config using a fresh sqlite file and cheap
// argon2id parameters, and returns its path.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	t.Setenv(config.EnvHasherSecret, "")
	t.Setenv(config.EnvDatabaseURL, "")

	dir := t.TempDir()
	body := fmt.Sprintf(`log:
  format: text
  level: error
http:
  addr: 127.0.0.1:0
  cookie_secure: false
metrics:
  addr: ""
store:
  driver: sqlite
  dsn: %s
hasher:
  secret: %s
  memory_kib: 64
  iterations: 1
  parallelism: 1
`, filepath.Join(dir, "user.db"), testSecret)

	path := filepath.Join(dir, "authcore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// execute runs the root command with args, feeding stdin, and returns
// standard output.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
