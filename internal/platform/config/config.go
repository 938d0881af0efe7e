// Copyright (c) 2026 GapGens. All rights reserved.
// Author: engineering@gapgens.app

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct. In development an optional .env file is pre-loaded with 'godotenv'
so local runs do not need exported variables.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Once loaded, configuration is read-only and passed to components via constructors.
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// # Configuration Schema

// Config holds all runtime configuration for the GapGens session service.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// StoreDriver selects the session store backend ("postgres" or "memory").
	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// RedisURL enables the Redis-backed session event bus when set.
	RedisURL string `env:"REDIS_URL"`

	// SessionSecret keys the hash of session tokens at rest.
	SessionSecret string `env:"SESSION_SECRET,required,notEmpty"`

	// AuthPublicKeyPath is the auth provider's RS256 public key. Empty disables
	// bearer-token binding of user ids.
	AuthPublicKeyPath string `env:"AUTH_PUBLIC_KEY_PATH"`
	// AuthIssuer, when set, must match the token's 'iss' claim.
	AuthIssuer string `env:"AUTH_ISSUER"`

	// Seat admission
	SeatCap        int           `env:"SEAT_CAP"        envDefault:"3"`
	SessionTTL     time.Duration `env:"SESSION_TTL"     envDefault:"720h"`
	StoreTimeout   time.Duration `env:"STORE_TIMEOUT"   envDefault:"10s"`
	EvictionMode   string        `env:"EVICTION_MODE"   envDefault:"best-effort"`
	TouchOnReuse   bool          `env:"TOUCH_ON_REUSE"  envDefault:"true"`
	SignInPath     string        `env:"SIGN_IN_PATH"    envDefault:"/sign-in"`
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" envSeparator:","`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// A missing .env file is the normal case outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: failed to read .env file: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects inconsistent settings before any connection is opened.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if c.SeatCap < 1 {
		return fmt.Errorf("config: SEAT_CAP must be at least 1, got %d", c.SeatCap)
	}
	if c.SessionTTL <= 0 {
		return errors.New("config: SESSION_TTL must be positive")
	}
	if c.StoreTimeout <= 0 {
		return errors.New("config: STORE_TIMEOUT must be positive")
	}

	switch c.EvictionMode {
	case "best-effort", "strict", "reject":
	default:
		return fmt.Errorf("config: unknown EVICTION_MODE %q", c.EvictionMode)
	}

	if !strings.HasPrefix(c.SignInPath, "/") {
		return fmt.Errorf("config: SIGN_IN_PATH must be an absolute path, got %q", c.SignInPath)
	}

	return nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Origins returns the configured CORS origins.
func (c *Config) Origins() []string {
	return c.AllowedOrigins
}

// OriginHosts returns the host part of each allowed origin, the form the
// WebSocket origin check expects. Unparseable entries are skipped.
func (c *Config) OriginHosts() []string {
	hosts := make([]string, 0, len(c.AllowedOrigins))
	for _, origin := range c.AllowedOrigins {
		parsed, err := url.Parse(strings.TrimSpace(origin))
		if err != nil || parsed.Host == "" {
			continue
		}
		hosts = append(hosts, parsed.Host)
	}
	return hosts
}
