// Package config reads server settings from the environment. A .env file in
// the working directory is loaded first.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

type Config struct {
	Port      int
	LogLevel  string
	LogFormat string

	StatsBackend string
	StatsFile    string
	SQLitePath   string
	DatabaseURL  string

	SweepInterval time.Duration
	PingInterval  time.Duration
	IdleTimeout   time.Duration

	RateLimit float64
	RateBurst int

	AllowedOrigins []string
}

// Load builds a Config from the environment, falling back to defaults for
// unset variables.
func Load() (Config, error) {
	var err error
	cfg := Config{
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    getEnv("LOG_FORMAT", "console"),
		StatsBackend: strings.ToLower(getEnv("STATS_BACKEND", BackendFile)),
		StatsFile:    getEnv("STATS_FILE", "player-stats.json"),
		SQLitePath:   getEnv("SQLITE_PATH", "decode.db"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
	}

	if cfg.Port, err = getInt("PORT", 3000); err != nil {
		return Config{}, err
	}
	if cfg.SweepInterval, err = getDuration("SWEEP_INTERVAL", time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.PingInterval, err = getDuration("PING_INTERVAL", 25*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.IdleTimeout, err = getDuration("IDLE_TIMEOUT", time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.RateBurst, err = getInt("RATE_BURST", 20); err != nil {
		return Config{}, err
	}

	rate := getEnv("RATE_LIMIT", "10")
	if cfg.RateLimit, err = strconv.ParseFloat(rate, 64); err != nil || cfg.RateLimit <= 0 {
		return Config{}, fmt.Errorf("RATE_LIMIT: invalid value %q", rate)
	}

	for _, origin := range strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.StatsBackend {
	case BackendFile, BackendSQLite:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL: required when STATS_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("STATS_BACKEND: unknown backend %q", c.StatsBackend)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT: out of range: %d", c.Port)
	}
	if c.PingInterval >= c.IdleTimeout {
		return fmt.Errorf("PING_INTERVAL (%s) must be shorter than IDLE_TIMEOUT (%s)", c.PingInterval, c.IdleTimeout)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return n, nil
}

func getDuration(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be positive, got %s", k, d)
	}
	return d, nil
}
