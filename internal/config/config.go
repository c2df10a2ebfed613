// Package config loads runtime configuration from the environment and the
// recruitment rules from a YAML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration.
type Config struct {
	DBPath        string        `env:"RECRUIT_DB_PATH" envDefault:"data/recruitment.db"`
	APIPort       int           `env:"RECRUIT_API_PORT" envDefault:"8080"`
	AdminKey      string        `env:"RECRUIT_ADMIN_KEY"`
	TickInterval  time.Duration `env:"RECRUIT_TICK_INTERVAL" envDefault:"100ms"`
	RulesPath     string        `env:"RECRUIT_RULES_PATH"`
	Seed          int64         `env:"RECRUIT_SEED" envDefault:"42"`
	ExtraTowns    bool          `env:"RECRUIT_EXTRA_SETTLEMENTS" envDefault:"false"`
	GridIndex     bool          `env:"RECRUIT_GRID_INDEX" envDefault:"false"`
	StartingFunds uint64        `env:"RECRUIT_STARTING_TREASURY" envDefault:"1000"`
	HourlyIncome  uint64        `env:"RECRUIT_HOURLY_INCOME" envDefault:"25"`
	RecruitLimit  int           `env:"RECRUIT_RATE_LIMIT" envDefault:"30"` // Recruit requests per client per minute
	CORSOrigins   []string      `env:"RECRUIT_CORS_ORIGINS" envSeparator:","`
	TrustProxy    bool          `env:"RECRUIT_TRUST_PROXY" envDefault:"false"`

	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads an optional .env file, then parses the environment into Config.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	cfg := &Config{}
	if err := ParseEnv(cfg); err != nil {
		return nil, err
	}
	if cfg.TickInterval <= 0 {
		return nil, fmt.Errorf("RECRUIT_TICK_INTERVAL must be positive, got %s", cfg.TickInterval)
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
