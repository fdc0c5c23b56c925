// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

// Package config loads service configuration from a YAML file with
// command-line flag overrides.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/gatekeep/gatekeep/internal/xdg"
)

// Config is the full service configuration. Flags override file values;
// file values override defaults.
type Config struct {
	Database     DatabaseConfig     `koanf:"database"`
	Token        TokenConfig        `koanf:"token"`
	Lockout      LockoutConfig      `koanf:"lockout"`
	Verification VerificationConfig `koanf:"verification"`
	Mailer       MailerConfig       `koanf:"mailer"`
	Metrics      MetricsConfig      `koanf:"metrics"`
	Log          LogConfig          `koanf:"log"`
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// TokenConfig holds refresh token settings.
type TokenConfig struct {
	SigningKey string        `koanf:"signing_key"`
	TTL        time.Duration `koanf:"ttl"`
}

// LockoutConfig holds the failed-login lockout policy.
type LockoutConfig struct {
	Threshold int           `koanf:"threshold"`
	Duration  time.Duration `koanf:"duration"`
}

// VerificationConfig holds verification token policy and link bases.
type VerificationConfig struct {
	EmailTokenTTL  time.Duration `koanf:"email_token_ttl"`
	ResetTokenTTL  time.Duration `koanf:"reset_token_ttl"`
	ResendCooldown time.Duration `koanf:"resend_cooldown"`
	VerifyBaseURL  string        `koanf:"verify_base_url"`
	ResetBaseURL   string        `koanf:"reset_base_url"`
}

// MailerConfig holds outbound mail settings. An empty APIKey selects the
// log-only mailer.
type MailerConfig struct {
	APIURL string `koanf:"api_url"`
	APIKey string `koanf:"api_key"`
	From   string `koanf:"from"`
}

// MetricsConfig holds the observability endpoint settings.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Format string `koanf:"format"`
}

// Default returns the configuration defaults.
func Default() Config {
	return Config{
		Token: TokenConfig{
			TTL: time.Hour,
		},
		Lockout: LockoutConfig{
			Threshold: 3,
			Duration:  time.Hour,
		},
		Verification: VerificationConfig{
			EmailTokenTTL:  24 * time.Hour,
			ResetTokenTTL:  time.Hour,
			ResendCooldown: 5 * time.Minute,
			VerifyBaseURL:  "http://localhost:3000",
			ResetBaseURL:   "http://localhost:3000",
		},
		Mailer: MailerConfig{
			APIURL: "https://api.resend.com/emails",
			From:   "no-reply@localhost",
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9100",
		},
		Log: LogConfig{
			Format: "json",
		},
	}
}

// Load reads configuration from the given YAML file (optional, may be
// empty) and overlays any set flags. Flag names use dashes where config
// keys use dots (e.g. --database-url sets database.url). With no path,
// $XDG_CONFIG_HOME/gatekeep/config.yaml is used if present.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		candidate := filepath.Join(xdg.ConfigDir(), "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil && explicit {
			return Config{}, oops.Code("CONFIG_FILE_MISSING").
				With("path", path).
				Wrap(err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, oops.Code("CONFIG_PARSE_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithValue(flags, ".", k, func(key, value string) (string, any) {
			// An empty flag value means the flag was never set; letting it
			// through would clobber file values and defaults.
			if value == "" {
				return "", nil
			}
			return strings.ReplaceAll(key, "-", "."), value
		})
		if err := k.Load(provider, nil); err != nil {
			return Config{}, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, oops.Code("CONFIG_UNMARSHAL_FAILED").Wrap(err)
	}

	// DATABASE_URL stays supported for parity with the usual deployment env.
	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}

	return cfg, nil
}

// Validate checks that required fields are present.
func (c Config) Validate() error {
	if c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url is required")
	}
	if c.Token.SigningKey == "" {
		return oops.Code("CONFIG_INVALID").Errorf("token.signing_key is required")
	}
	return nil
}
