// Package config loads runtime settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds the service settings.
type Config struct {
	Addr          string
	Storage       string
	DatabaseURL   string
	AllergenTable string
	LogLevel      string
	LogFormat     string
	TraceExporter string
	SessionTTL    time.Duration
	OIDC          OIDC
}

// OIDC holds single sign-on settings. SSO is enabled when Issuer and
// ClientID are both set.
type OIDC struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Enabled reports whether SSO is configured.
func (o OIDC) Enabled() bool {
	return o.Issuer != "" && o.ClientID != ""
}

// Load reads envFile, when it exists, into the process environment without
// overriding variables already set, then builds a Config.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := Config{
		Addr:          env("ADDR", ":8080"),
		Storage:       env("STORAGE", StoragePostgres),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		AllergenTable: os.Getenv("ALLERGEN_TABLE"),
		LogLevel:      env("LOG_LEVEL", "info"),
		LogFormat:     env("LOG_FORMAT", "text"),
		TraceExporter: os.Getenv("TRACE_EXPORTER"),
		OIDC: OIDC{
			Issuer:       os.Getenv("OIDC_ISSUER"),
			ClientID:     os.Getenv("OIDC_CLIENT_ID"),
			ClientSecret: os.Getenv("OIDC_CLIENT_SECRET"),
			RedirectURL:  os.Getenv("OIDC_REDIRECT_URL"),
		},
	}

	ttl, err := time.ParseDuration(env("SESSION_TTL", "24h"))
	if err != nil {
		return Config{}, fmt.Errorf("SESSION_TTL: %w", err)
	}
	cfg.SessionTTL = ttl

	return cfg, cfg.Validate()
}

// Validate checks that the settings are consistent.
func (c Config) Validate() error {
	switch c.Storage {
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for postgres storage")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown STORAGE %q", c.Storage)
	}
	switch c.TraceExporter {
	case "", "none", "stdout":
	default:
		return fmt.Errorf("unknown TRACE_EXPORTER %q", c.TraceExporter)
	}
	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	return nil
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
