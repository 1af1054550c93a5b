// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

// Package config loads server configuration.
//
// Sources are layered, later ones winning: built-in defaults, an optional
// YAML file, TASKFORGE_* environment variables, then explicitly set
// command-line flags. Nested keys use "." in files and flags and "__" in
// environment variables, so TASKFORGE_AUTH__TOKEN_SECRET sets
// auth.token_secret.
package config

import (
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/taskforge/taskforge/internal/auth"
	"github.com/taskforge/taskforge/internal/logging"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "TASKFORGE_"

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config is the complete server configuration.
type Config struct {
	HTTP            HTTPConfig     `koanf:"http"`
	Metrics         MetricsConfig  `koanf:"metrics"`
	Database        DatabaseConfig `koanf:"database"`
	Store           string         `koanf:"store"`
	Auth            AuthConfig     `koanf:"auth"`
	Log             LogConfig      `koanf:"log"`
	SMTP            SMTPConfig     `koanf:"smtp"`
	ShutdownTimeout time.Duration  `koanf:"shutdown_timeout"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr string `koanf:"addr"`
}

// MetricsConfig configures the metrics and health listener. Empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// DatabaseConfig configures Postgres.
type DatabaseConfig struct {
	URL         string `koanf:"url"`
	AutoMigrate bool   `koanf:"auto_migrate"`
}

// AuthConfig configures credentials and session tokens.
type AuthConfig struct {
	TokenSecret   string        `koanf:"token_secret"`
	TokenTTL      time.Duration `koanf:"token_ttl"`
	PruneInterval time.Duration `koanf:"prune_interval"`
	Argon2        Argon2Config  `koanf:"argon2"`
}

// Argon2Config holds the tunable argon2id cost parameters.
type Argon2Config struct {
	Time    uint32 `koanf:"time"`
	Memory  uint32 `koanf:"memory"`
	Threads uint8  `koanf:"threads"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// SMTPConfig configures outbound mail. Empty Host logs notifications
// instead of sending them.
type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	From     string `koanf:"from"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		HTTP:     HTTPConfig{Addr: ":8080"},
		Metrics:  MetricsConfig{Addr: "127.0.0.1:9100"},
		Database: DatabaseConfig{AutoMigrate: true},
		Store:    StorePostgres,
		Auth: AuthConfig{
			TokenTTL:      auth.DefaultTokenTTL,
			PruneInterval: time.Hour,
			Argon2: Argon2Config{
				Time:    auth.DefaultArgon2Params.Time,
				Memory:  auth.DefaultArgon2Params.Memory,
				Threads: auth.DefaultArgon2Params.Threads,
			},
		},
		Log:             LogConfig{Format: "json", Level: "info"},
		SMTP:            SMTPConfig{Port: 587, From: "noreply@taskforge.local"},
		ShutdownTimeout: 15 * time.Second,
	}
}

// Argon2Params merges the configured costs into the default salt and key
// lengths.
func (c Config) Argon2Params() auth.Argon2Params {
	p := auth.DefaultArgon2Params
	p.Time = c.Auth.Argon2.Time
	p.Memory = c.Auth.Argon2.Memory
	p.Threads = c.Auth.Argon2.Threads
	return p
}

// RegisterFlags adds the command-line overrides Load understands. Flag
// names are the config keys with "." and "_" replaced by "-".
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("http-addr", d.HTTP.Addr, "API listen address")
	fs.String("metrics-addr", d.Metrics.Addr, "metrics/health listen address (empty = disabled)")
	fs.String("database-url", "", "Postgres connection URL")
	fs.Bool("database-auto-migrate", d.Database.AutoMigrate, "apply pending migrations on start")
	fs.String("store", d.Store, "storage backend (postgres or memory)")
	fs.String("auth-token-secret", "", "HMAC secret for session tokens (at least 32 bytes)")
	fs.Duration("auth-token-ttl", d.Auth.TokenTTL, "session token lifetime")
	fs.Duration("auth-prune-interval", d.Auth.PruneInterval, "interval between expired-token sweeps (0 = disabled)")
	fs.String("log-format", d.Log.Format, "log format (json or text)")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.Duration("shutdown-timeout", d.ShutdownTimeout, "graceful shutdown budget")
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"http-addr":             "http.addr",
	"metrics-addr":          "metrics.addr",
	"database-url":          "database.url",
	"database-auto-migrate": "database.auto_migrate",
	"store":                 "store",
	"auth-token-secret":     "auth.token_secret",
	"auth-token-ttl":        "auth.token_ttl",
	"auth-prune-interval":   "auth.prune_interval",
	"log-format":            "log.format",
	"log-level":             "log.level",
	"shutdown-timeout":      "shutdown_timeout",
}

// Load builds a Config from the layered sources. path and fs may be empty
// or nil. Only flags the user actually set override earlier layers.
func Load(path string, fs *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, oops.Code("CONFIG_LOAD_FAILED").
				With("source", "file").
				With("path", path).
				Wrap(err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return Config{}, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return cfg, nil
}

// envKey maps TASKFORGE_AUTH__TOKEN_SECRET to auth.token_secret.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// Validate rejects configurations the server cannot start with. It does
// not touch the network.
func (c Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.HTTP.Addr); err != nil {
		return invalid("http.addr", "must be host:port")
	}
	if c.Metrics.Addr != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.Addr); err != nil {
			return invalid("metrics.addr", "must be host:port or empty")
		}
	}

	switch c.Store {
	case StorePostgres:
		if c.Database.URL == "" {
			return invalid("database.url", "is required when store is postgres")
		}
		if u, err := url.Parse(c.Database.URL); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			return invalid("database.url", "must be a postgres:// URL")
		}
	case StoreMemory:
	default:
		return invalid("store", "must be postgres or memory")
	}

	if len(c.Auth.TokenSecret) < auth.MinTokenSecretLength {
		return invalid("auth.token_secret", "must be at least %d bytes", auth.MinTokenSecretLength)
	}
	if c.Auth.TokenTTL <= 0 {
		return invalid("auth.token_ttl", "must be positive")
	}
	if c.Auth.PruneInterval < 0 {
		return invalid("auth.prune_interval", "must not be negative")
	}
	if err := c.Argon2Params().Validate(); err != nil {
		return oops.Code("CONFIG_INVALID").With("key", "auth.argon2").Wrap(err)
	}

	if c.Log.Format != "json" && c.Log.Format != "text" {
		return invalid("log.format", "must be json or text")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", "must be debug, info, warn or error")
	}

	if c.SMTP.Host != "" {
		if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
			return invalid("smtp.port", "must be between 1 and 65535")
		}
		if c.SMTP.From == "" {
			return invalid("smtp.from", "is required when smtp.host is set")
		}
	}

	if c.ShutdownTimeout <= 0 {
		return invalid("shutdown_timeout", "must be positive")
	}
	return nil
}

func invalid(key, format string, args ...any) error {
	return oops.Code("CONFIG_INVALID").With("key", key).Errorf(key+" "+format, args...)
}
