// Copyright (c) 2026 GapGens. All rights reserved.
// Author: engineering@gapgens.app

package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gapgens/gapgens/internal/platform/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "secret")
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 3, cfg.SeatCap)
	assert.Equal(t, 720*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 10*time.Second, cfg.StoreTimeout)
	assert.Equal(t, "best-effort", cfg.EvictionMode)
	assert.True(t, cfg.TouchOnReuse)
	assert.Equal(t, "/sign-in", cfg.SignInPath)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_RequiresSessionSecret(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("STORE_DRIVER", "memory")

	_, err := config.Load()
	require.Error(t, err)
}

func TestLoad_ParsesOrigins(t *testing.T) {
	t.Setenv("SESSION_SECRET", "secret")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("ALLOWED_ORIGINS", "https://app.gapgens.app,http://localhost:3000,::bad")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Len(t, cfg.Origins(), 3)
	assert.Equal(t, []string{"app.gapgens.app", "localhost:3000"}, cfg.OriginHosts())
}

func TestValidate(t *testing.T) {
	valid := func() config.Config {
		return config.Config{
			StoreDriver:  config.DriverPostgres,
			DatabaseURL:  "postgres://localhost/gapgens",
			SeatCap:      3,
			SessionTTL:   time.Hour,
			StoreTimeout: time.Second,
			EvictionMode: "strict",
			SignInPath:   "/sign-in",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
	}{
		{"valid", func(*config.Config) {}, false},
		{"postgres_without_dsn", func(c *config.Config) { c.DatabaseURL = "" }, true},
		{"unknown_driver", func(c *config.Config) { c.StoreDriver = "sqlite" }, true},
		{"zero_seats", func(c *config.Config) { c.SeatCap = 0 }, true},
		{"negative_ttl", func(c *config.Config) { c.SessionTTL = -time.Second }, true},
		{"zero_timeout", func(c *config.Config) { c.StoreTimeout = 0 }, true},
		{"unknown_mode", func(c *config.Config) { c.EvictionMode = "lenient" }, true},
		{"relative_sign_in", func(c *config.Config) { c.SignInPath = "sign-in" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
