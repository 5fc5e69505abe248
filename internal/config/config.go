package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds environment-driven configuration.
type Config struct {
	// HTTPAddr is the listen address of the API server.
	HTTPAddr string `env:"TIMEKEEPER_HTTP_ADDR" envDefault:":8080"`
	// MySQLDSN must include parseTime=true&multiStatements=true, e.g.
	// user:pass@tcp(host:3306)/timekeeper?parseTime=true&multiStatements=true
	MySQLDSN string `env:"TIMEKEEPER_MYSQL_DSN,required"`
	// AuthSecret is the HS256 key bearer tokens are verified against.
	AuthSecret string `env:"TIMEKEEPER_AUTH_SECRET,required"`
}

// Load reads configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
