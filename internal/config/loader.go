package config

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads and parses a YAML scenario file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a scenario from YAML, applies defaults and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validate checks the configuration for errors and fills per-request
// defaults.
func validate(cfg *Config) error {
	if len(cfg.Requests) == 0 {
		return fmt.Errorf("at least one request is required")
	}

	names := make(map[string]bool, len(cfg.Requests))
	for i, r := range cfg.Requests {
		if r.URL == "" {
			return fmt.Errorf("request[%d]: url is required", i)
		}
		if r.Name == "" {
			cfg.Requests[i].Name = fmt.Sprintf("request-%d", i+1)
		}
		if names[cfg.Requests[i].Name] {
			return fmt.Errorf("request[%d]: duplicate name %q", i, cfg.Requests[i].Name)
		}
		names[cfg.Requests[i].Name] = true

		if r.Method == "" {
			cfg.Requests[i].Method = http.MethodGet
		} else {
			cfg.Requests[i].Method = strings.ToUpper(r.Method)
		}
		if r.Weight < 0 {
			return fmt.Errorf("request[%d]: weight must not be negative", i)
		}
		if r.Weight == 0 {
			cfg.Requests[i].Weight = 1
		}
		if r.ExpectStatus != 0 && (r.ExpectStatus < 100 || r.ExpectStatus > 599) {
			return fmt.Errorf("request[%d]: expect_status %d is not an HTTP status", i, r.ExpectStatus)
		}
		if r.Data != nil && r.JSON != nil {
			return fmt.Errorf("request[%d]: data and json are mutually exclusive", i)
		}
	}

	if cfg.Load.Workers <= 0 {
		return fmt.Errorf("load.workers must be positive")
	}
	if cfg.Load.QueueSize <= 0 {
		cfg.Load.QueueSize = cfg.Load.Workers * 100
	}
	if cfg.Load.RPS <= 0 {
		return fmt.Errorf("load.rps must be positive")
	}
	if cfg.Load.Total < 0 {
		return fmt.Errorf("load.total must not be negative")
	}
	if cfg.Load.Total == 0 && cfg.Load.Duration <= 0 {
		return fmt.Errorf("load needs a total or a duration")
	}
	if cfg.Load.Jitter < 0 || cfg.Load.Jitter >= 1 {
		return fmt.Errorf("load.jitter must be in [0, 1)")
	}

	if cfg.Health.Enabled {
		if cfg.Health.URL == "" {
			return fmt.Errorf("health.url is required when health is enabled")
		}
		if cfg.Health.Interval <= 0 {
			return fmt.Errorf("health.interval must be positive")
		}
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	return nil
}
