// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

// Package config loads service configuration from a YAML file with
// environment and command-line flag overrides. Precedence: defaults,
// then file, then environment, then flags.
package config

import (
	"errors"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/taskforge/taskforge/internal/access"
)

// Config is the full service configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Observability ObservabilityConfig `koanf:"observability"`
	Database      DatabaseConfig      `koanf:"database"`
	Auth          AuthConfig          `koanf:"auth"`
	Access        AccessConfig        `koanf:"access"`
	Log           LogConfig           `koanf:"log"`
}

// ServerConfig configures the HTTP API listener.
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// ObservabilityConfig configures the metrics/health listener.
type ObservabilityConfig struct {
	Addr string `koanf:"addr"`
}

// DatabaseConfig configures PostgreSQL connectivity.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// AuthConfig configures token signing and password hashing.
type AuthConfig struct {
	Secret     string        `koanf:"secret"`
	AccessTTL  time.Duration `koanf:"access_ttl"`
	RefreshTTL time.Duration `koanf:"refresh_ttl"`
	BcryptCost int           `koanf:"bcrypt_cost"`
}

// AccessConfig configures the authorization policy.
type AccessConfig struct {
	ExtraRoles []string             `koanf:"extra_roles"`
	Rules      []access.Rule        `koanf:"rules"`
	Public     []access.PublicRoute `koanf:"public"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns the built-in configuration. The signing secret has no
// default; it must come from the file or a flag.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Observability: ObservabilityConfig{
			Addr: ":9090",
		},
		Auth: AuthConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
			BcryptCost: 12,
		},
		Access: AccessConfig{
			Rules: []access.Rule{
				{Method: access.MethodAny, Pattern: "/api/admin/**", Roles: []string{access.RoleAdmin}},
				{Method: "PUT", Pattern: "/api/users/*/roles", Roles: []string{access.RoleAdmin}},
			},
			Public: []access.PublicRoute{
				{Method: "POST", Pattern: "/api/auth/register"},
				{Method: "POST", Pattern: "/api/auth/login"},
				{Method: "POST", Pattern: "/api/auth/refresh"},
				{Method: "POST", Pattern: "/api/auth/forgot-password"},
				{Method: "POST", Pattern: "/api/auth/reset-password"},
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds a Config from defaults, an optional YAML file, the
// TASKFORGE_* environment and flag overrides. A missing file is only an
// error when it was named explicitly.
func Load(path string, explicit bool, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return nil, oops.Code("CONFIG_LOAD_FAILED").
					With("path", path).
					Wrap(err)
			}
		}
	}

	// Only the secret-bearing keys come from the environment; a blanket
	// underscore-to-dot mapping would mangle keys like access_ttl.
	if err := k.Load(env.Provider("TASKFORGE_", ".", func(s string) string {
		switch s {
		case "TASKFORGE_DATABASE_URL":
			return "database.url"
		case "TASKFORGE_AUTH_SECRET":
			return "auth.secret"
		}
		return ""
	}), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").
			With("operation", "load environment").
			Wrap(err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("operation", "load flags").
				Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.Code("CONFIG_PARSE_FAILED").Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the invariants the rest of the process assumes.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return oops.Code("INVALID_CONFIG").Errorf("database.url is required")
	}
	if c.Auth.Secret == "" {
		return oops.Code("INVALID_CONFIG").Errorf("auth.secret is required")
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 {
		return oops.Code("INVALID_CONFIG").Errorf("token lifetimes must be positive")
	}
	if c.Auth.AccessTTL >= c.Auth.RefreshTTL {
		return oops.Code("INVALID_CONFIG").Errorf("auth.access_ttl must be shorter than auth.refresh_ttl")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return oops.Code("INVALID_CONFIG").
			With("level", c.Log.Level).
			Errorf("log.level must be one of debug, info, warn, error")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return oops.Code("INVALID_CONFIG").
			With("format", c.Log.Format).
			Errorf("log.format must be text or json")
	}
	return nil
}
