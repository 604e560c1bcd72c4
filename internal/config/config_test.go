package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "LOG_LEVEL", "STATS_BACKEND", "SWEEP_INTERVAL", "PING_INTERVAL", "IDLE_TIMEOUT", "RATE_LIMIT", "RATE_BURST", "ALLOWED_ORIGINS", "DATABASE_URL"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, ":3000", cfg.Addr())
	assert.Equal(t, BackendFile, cfg.StatsBackend)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, 25*time.Second, cfg.PingInterval)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, 20, cfg.RateBurst)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("STATS_BACKEND", "SQLite")
	t.Setenv("SWEEP_INTERVAL", "5s")
	t.Setenv("ALLOWED_ORIGINS", "example.com, *.example.org")
	t.Setenv("RATE_LIMIT", "2.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, BackendSQLite, cfg.StatsBackend)
	assert.Equal(t, 5*time.Second, cfg.SweepInterval)
	assert.Equal(t, []string{"example.com", "*.example.org"}, cfg.AllowedOrigins)
	assert.Equal(t, 2.5, cfg.RateLimit)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := map[string][2]string{
		"port not a number":        {"PORT", "abc"},
		"port out of range":        {"PORT", "70000"},
		"unknown backend":          {"STATS_BACKEND", "redis"},
		"postgres without url":     {"STATS_BACKEND", "postgres"},
		"bad duration":             {"SWEEP_INTERVAL", "soon"},
		"negative duration":        {"IDLE_TIMEOUT", "-1s"},
		"ping slower than timeout": {"PING_INTERVAL", "2m"},
		"zero rate":                {"RATE_LIMIT", "0"},
	}

	for name, kv := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "")
			t.Setenv(kv[0], kv[1])

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
