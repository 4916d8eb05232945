// Package config provides configuration loading and validation for the oracle relayer.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a YAML file, expanding environment variables.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	data, err := os.ReadFile(absPath) // #nosec G304 -- Path sanitized with filepath.Clean and filepath.Abs
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// applyDefaults sets default values for optional fields.
func applyDefaults(cfg *Config) {
	if cfg.StalePriceThresholdSeconds == 0 {
		cfg.StalePriceThresholdSeconds = 5
	}

	if cfg.Hyperliquid.PublishInterval.ToDuration() == 0 {
		// Venue rate limit is one oracle update per 2.5s.
		cfg.Hyperliquid.PublishInterval = Duration(3 * time.Second)
	}
	if cfg.Hyperliquid.PublishTimeout.ToDuration() == 0 {
		cfg.Hyperliquid.PublishTimeout = Duration(5 * time.Second)
	}
	if cfg.Hyperliquid.UserLimitInterval.ToDuration() == 0 {
		cfg.Hyperliquid.UserLimitInterval = Duration(30 * time.Minute)
	}
	if cfg.Hyperliquid.WSPingInterval.ToDuration() == 0 {
		cfg.Hyperliquid.WSPingInterval = Duration(20 * time.Second)
	}
	if len(cfg.Hyperliquid.PushURLs) == 0 {
		if cfg.Hyperliquid.UseTestnet {
			cfg.Hyperliquid.PushURLs = []string{"https://api.hyperliquid-testnet.xyz"}
		} else {
			cfg.Hyperliquid.PushURLs = []string{"https://api.hyperliquid.xyz"}
		}
	}

	if cfg.Seda.PollInterval.ToDuration() == 0 {
		cfg.Seda.PollInterval = Duration(5 * time.Second)
	}
	if cfg.Seda.PollFailureInterval.ToDuration() == 0 {
		cfg.Seda.PollFailureInterval = Duration(10 * time.Second)
	}
	if cfg.Seda.PollTimeout.ToDuration() == 0 {
		cfg.Seda.PollTimeout = Duration(10 * time.Second)
	}
	if cfg.Seda.PriceField == "" {
		cfg.Seda.PriceField = "price"
	}
	if cfg.Seda.TimestampField == "" {
		cfg.Seda.TimestampField = "timestamp"
	}

	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "oracle-relayer"
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9091"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// LazerAPIKey resolves the Lazer bearer token, preferring the environment
// variable indirection when configured.
func (c *Config) LazerAPIKey() string {
	if c.Lazer.APIKeyEnv != "" {
		if v := os.Getenv(c.Lazer.APIKeyEnv); v != "" {
			return v
		}
	}
	return c.Lazer.APIKey
}

// StaleThreshold returns the staleness cutoff as seconds.
func (c *Config) StaleThreshold() float64 {
	return c.StalePriceThresholdSeconds
}
