package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the process-wide settings. It is read once at start up and
// never mutated afterwards.
type Config struct {
	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":4000"`
	DatabaseURL  string        `env:"DATABASE_URL"`
	SQLitePath   string        `env:"SQLITE_PATH" envDefault:"gorm.db"`
	JWTSecret    string        `env:"JWT_SECRET"`
	TokenTTL     time.Duration `env:"TOKEN_TTL" envDefault:"168h"`
	StoreTimeout time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`
	AuthRate     float64       `env:"AUTH_RATE" envDefault:"10"`
	AuthBurst    int           `env:"AUTH_BURST" envDefault:"20"`
	ConsulAddr   string        `env:"CONSUL_ADDR"`
}

var ErrSecretMissing = errors.New("JWT_SECRET must be set")

// New loads the configuration from environment variables.
func New() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.JWTSecret == "" {
		return nil, ErrSecretMissing
	}
	if cfg.TokenTTL <= 0 {
		return nil, fmt.Errorf("TOKEN_TTL must be positive, got %s", cfg.TokenTTL)
	}

	return &cfg, nil
}
