package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Env holds overrides read from SESH_* environment variables.
type Env struct {
	LogLevel    string `envconfig:"LOG_LEVEL"`
	LogDev      bool   `envconfig:"LOG_DEV"`
	MetricsAddr string `envconfig:"METRICS_ADDR"`
	UserAgent   string `envconfig:"USER_AGENT"`
}

// LoadEnv reads the SESH_* environment.
func LoadEnv() (Env, error) {
	var env Env
	if err := envconfig.Process("sesh", &env); err != nil {
		return Env{}, fmt.Errorf("failed to read environment: %w", err)
	}
	return env, nil
}

// Apply overrides cfg with the values set in env.
func (e Env) Apply(cfg *Config) {
	if e.LogLevel != "" {
		cfg.Logging.Level = e.LogLevel
	}
	if e.LogDev {
		cfg.Logging.Development = true
	}
	if e.MetricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Address = e.MetricsAddr
	}
	if e.UserAgent != "" {
		cfg.Session.UserAgent = e.UserAgent
	}
}
