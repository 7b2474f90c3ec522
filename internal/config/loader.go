package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Load reads and parses the configuration file and environment variables
func Load(configPath string) (*Config, *Secrets, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	secrets, err := LoadSecrets()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load secrets: %w", err)
	}

	return &cfg, secrets, nil
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.Eval.OutputDir == "" {
		cfg.Eval.OutputDir = "output"
	}
	if cfg.Eval.MaxRequestsPerMinute == 0 {
		cfg.Eval.MaxRequestsPerMinute = 60
	}
	if cfg.Eval.Workers == 0 {
		cfg.Eval.Workers = 16
	}
	if cfg.Eval.RateLimitBackoffSeconds == 0 {
		cfg.Eval.RateLimitBackoffSeconds = 10
	}
	// NOTE: In TOML we can't distinguish 0 from unset, so an explicit
	// zero retry cap is expressed as -1.
	if cfg.Eval.MaxTransientRetries == 0 {
		cfg.Eval.MaxTransientRetries = 5
	} else if cfg.Eval.MaxTransientRetries == -1 {
		cfg.Eval.MaxTransientRetries = 0
	}
	if cfg.Eval.ShutdownGraceSeconds == 0 {
		cfg.Eval.ShutdownGraceSeconds = 5
	}

	if cfg.Model.RequestTimeoutSeconds == 0 {
		cfg.Model.RequestTimeoutSeconds = 30
	}
	if cfg.Model.CompletionCount == 0 {
		cfg.Model.CompletionCount = 1
	}
}
