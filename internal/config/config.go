// Package config loads process configuration from the environment and the
// gameplay tables (thresholds, levels, missions, audit heuristics) from YAML.
// Both are read once at start and passed explicitly to the components.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// App is the process configuration.
type App struct {
	HTTPAddr         string        `env:"GUARDIAN_HTTP_ADDR" envDefault:"0.0.0.0:8431"`
	JWTSecret        string        `env:"GUARDIAN_JWT_SECRET"`
	JWTIssuer        string        `env:"GUARDIAN_JWT_ISSUER" envDefault:"guardian"`
	TablesPath       string        `env:"GUARDIAN_TABLES_PATH"`
	TimeZone         string        `env:"GUARDIAN_TIMEZONE" envDefault:"UTC"`
	StoreTimeout     time.Duration `env:"GUARDIAN_STORE_TIMEOUT" envDefault:"5s"`
	MaxTxAttempts    uint          `env:"GUARDIAN_TX_MAX_ATTEMPTS" envDefault:"5"`
	RedisAddr        string        `env:"REDIS_ADDRESS"`
	EventsChannel    string        `env:"GUARDIAN_EVENTS_CHANNEL" envDefault:"guardian:events"`
	AuditParallelism int           `env:"GUARDIAN_AUDIT_PARALLELISM" envDefault:"4"`
}

// Load reads .env when present (best-effort) and parses the environment.
func Load() (App, error) {
	_ = godotenv.Load()
	var cfg App
	if err := env.Parse(&cfg); err != nil {
		return App{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.StoreTimeout <= 0 {
		return App{}, fmt.Errorf("GUARDIAN_STORE_TIMEOUT must be positive")
	}
	if cfg.MaxTxAttempts == 0 {
		cfg.MaxTxAttempts = 1
	}
	return cfg, nil
}

// Location resolves the time zone that defines "today".
func (a App) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(a.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", a.TimeZone, err)
	}
	return loc, nil
}
