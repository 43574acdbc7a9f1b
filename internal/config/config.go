// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

// Package config loads authcore configuration from a YAML file, the
// environment and command-line flags, in increasing precedence.
package config

import (
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/authcore/authcore/internal/auth"
)

// Environment variables that override file values.
const (
	EnvHasherSecret = "AUTHCORE_HASHER_SECRET"
	EnvDatabaseURL  = "DATABASE_URL"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory" // tests and one-shot CLI runs; serve rejects it
)

// Session modes.
const (
	// SessionModePerUser keeps at most one session per user.
	SessionModePerUser = "per-user"
	// SessionModeSingle keeps one session for the whole process; each
	// login displaces whoever was logged in before.
	SessionModeSingle = "single"
)

// minSecretLength is the shortest hasher secret accepted.
const minSecretLength = 16

// Config is the full authcore configuration.
type Config struct {
	Log     LogConfig     `koanf:"log" yaml:"log"`
	HTTP    HTTPConfig    `koanf:"http" yaml:"http"`
	Metrics MetricsConfig `koanf:"metrics" yaml:"metrics"`
	Store   StoreConfig   `koanf:"store" yaml:"store"`
	Session SessionConfig `koanf:"session" yaml:"session"`
	Hasher  HasherConfig  `koanf:"hasher" yaml:"hasher"`
	Policy  PolicyConfig  `koanf:"policy" yaml:"policy"`
}

// LogConfig selects log output.
type LogConfig struct {
	Format string `koanf:"format" yaml:"format"`
	Level  string `koanf:"level" yaml:"level"`
}

// HTTPConfig configures the web adapter.
type HTTPConfig struct {
	Addr         string `koanf:"addr" yaml:"addr"`
	CookieName   string `koanf:"cookie_name" yaml:"cookie_name"`
	CookieSecure bool   `koanf:"cookie_secure" yaml:"cookie_secure"`
}

// MetricsConfig configures the metrics and health listener.
// An empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr" yaml:"addr"`
}

// StoreConfig selects the credential backend.
type StoreConfig struct {
	Driver  string        `koanf:"driver" yaml:"driver"`
	DSN     string        `koanf:"dsn" yaml:"dsn"`
	Timeout time.Duration `koanf:"timeout" yaml:"timeout"`
}

// SessionConfig tunes session lifetime.
type SessionConfig struct {
	Mode          string        `koanf:"mode" yaml:"mode"`
	TTL           time.Duration `koanf:"ttl" yaml:"ttl"`
	SweepInterval time.Duration `koanf:"sweep_interval" yaml:"sweep_interval"`
}

// HasherConfig holds the pepper and argon2id cost.
type HasherConfig struct {
	Secret      string `koanf:"secret" yaml:"secret"`
	MemoryKiB   uint32 `koanf:"memory_kib" yaml:"memory_kib"`
	Iterations  uint32 `koanf:"iterations" yaml:"iterations"`
	Parallelism uint8  `koanf:"parallelism" yaml:"parallelism"`
}

// PolicyConfig mirrors auth.PasswordPolicy.
type PolicyConfig struct {
	MinLength        int    `koanf:"min_length" yaml:"min_length"`
	MaxLength        int    `koanf:"max_length" yaml:"max_length"`
	RequireMixedCase bool   `koanf:"require_mixed_case" yaml:"require_mixed_case"`
	RequireSymbol    bool   `koanf:"require_symbol" yaml:"require_symbol"`
	RequireDigit     bool   `koanf:"require_digit" yaml:"require_digit"`
	SymbolSet        string `koanf:"symbol_set" yaml:"symbol_set"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	params := auth.DefaultArgon2idParams()
	policy := auth.DefaultPasswordPolicy()
	return Config{
		Log: LogConfig{Format: "json", Level: "info"},
		HTTP: HTTPConfig{
			Addr:         ":8080",
			CookieName:   "authcore_session",
			CookieSecure: true,
		},
		Metrics: MetricsConfig{Addr: "127.0.0.1:9100"},
		Store: StoreConfig{
			Driver:  DriverSQLite,
			DSN:     "user.db",
			Timeout: auth.DefaultStoreTimeout,
		},
		Session: SessionConfig{
			Mode:          SessionModePerUser,
			TTL:           auth.DefaultSessionTTL,
			SweepInterval: auth.DefaultSweepInterval,
		},
		Hasher: HasherConfig{
			MemoryKiB:   params.MemoryKiB,
			Iterations:  params.Iterations,
			Parallelism: params.Parallelism,
		},
		Policy: PolicyConfig{
			MinLength:        policy.MinLength,
			MaxLength:        policy.MaxLength,
			RequireMixedCase: policy.RequireMixedCase,
			RequireSymbol:    policy.RequireSymbol,
			RequireDigit:     policy.RequireDigit,
			SymbolSet:        policy.SymbolSet,
		},
	}
}

// FlagKeys maps command-line flag names to config keys. Only flags listed
// here, and only when set explicitly, override the file and environment.
var FlagKeys = map[string]string{
	"log-format":   "log.format",
	"log-level":    "log.level",
	"http-addr":    "http.addr",
	"metrics-addr": "metrics.addr",
	"store-driver": "store.driver",
	"dsn":          "store.dsn",
	"session-mode": "session.mode",
	"session-ttl":  "session.ttl",
}

// Load builds a Config from Default, then the YAML file at path (skipped
// when path is empty), then the environment, then changed flags.
// The result is not validated.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	if v := os.Getenv(EnvHasherSecret); v != "" {
		if err := k.Set("hasher.secret", v); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("env", EnvHasherSecret).Wrap(err)
		}
	}
	// DATABASE_URL only names a PostgreSQL database.
	if v := os.Getenv(EnvDatabaseURL); v != "" && driverOf(k, flags) == DriverPostgres {
		if err := k.Set("store.dsn", v); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("env", EnvDatabaseURL).Wrap(err)
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := FlagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "load flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "decode").Wrap(err)
	}
	return &cfg, nil
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	switch c.Log.Format {
	case "json", "text":
	default:
		return invalid("log.format", c.Log.Format, "must be 'json' or 'text'")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log.level", c.Log.Level, "must be debug, info, warn or error")
	}

	if c.HTTP.Addr == "" {
		return invalid("http.addr", c.HTTP.Addr, "is required")
	}
	if c.HTTP.CookieName == "" {
		return invalid("http.cookie_name", c.HTTP.CookieName, "is required")
	}

	switch c.Store.Driver {
	case DriverSQLite, DriverPostgres:
		if c.Store.DSN == "" {
			return invalid("store.dsn", c.Store.DSN, "is required for driver "+c.Store.Driver)
		}
	case DriverMemory:
	default:
		return invalid("store.driver", c.Store.Driver, "must be sqlite, postgres or memory")
	}
	if c.Store.Timeout <= 0 {
		return invalid("store.timeout", c.Store.Timeout, "must be positive")
	}

	switch c.Session.Mode {
	case SessionModePerUser:
	case SessionModeSingle:
		if c.Store.Driver == DriverPostgres {
			return invalid("session.mode", c.Session.Mode, "is only available with in-process sessions")
		}
	default:
		return invalid("session.mode", c.Session.Mode, "must be 'per-user' or 'single'")
	}
	if c.Session.TTL < 0 {
		return invalid("session.ttl", c.Session.TTL, "cannot be negative")
	}
	if c.Session.SweepInterval <= 0 {
		return invalid("session.sweep_interval", c.Session.SweepInterval, "must be positive")
	}

	if len(c.Hasher.Secret) < minSecretLength {
		return oops.Code("CONFIG_INVALID").
			With("key", "hasher.secret").
			Errorf("hasher.secret must be at least %d bytes (set %s)", minSecretLength, EnvHasherSecret)
	}
	if err := c.Hasher.Params().Validate(); err != nil {
		return err
	}
	return c.Policy.PasswordPolicy().Verify()
}

// Params returns the argon2id parameters.
func (h HasherConfig) Params() auth.Argon2idParams {
	p := auth.DefaultArgon2idParams()
	p.MemoryKiB = h.MemoryKiB
	p.Iterations = h.Iterations
	p.Parallelism = h.Parallelism
	return p
}

// PasswordPolicy returns the policy value.
func (p PolicyConfig) PasswordPolicy() auth.PasswordPolicy {
	return auth.PasswordPolicy{
		MinLength:        p.MinLength,
		MaxLength:        p.MaxLength,
		RequireMixedCase: p.RequireMixedCase,
		RequireSymbol:    p.RequireSymbol,
		RequireDigit:     p.RequireDigit,
		SymbolSet:        p.SymbolSet,
	}
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.Hasher.Secret != "" {
		c.Hasher.Secret = "REDACTED"
	}
	return c
}

func driverOf(k *koanf.Koanf, flags *pflag.FlagSet) string {
	if flags != nil {
		if f := flags.Lookup("store-driver"); f != nil && f.Changed {
			return f.Value.String()
		}
	}
	if k.Exists("store.driver") {
		return k.String("store.driver")
	}
	return Default().Store.Driver
}

func invalid(key string, value any, msg string) error {
	return oops.Code("CONFIG_INVALID").
		With("key", key).
		With("value", value).
		Errorf("%s %s", key, msg)
}
