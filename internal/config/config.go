// Package config provides configuration loading and validation for the
// orchestrator.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/atelier-labs/hypothesis-runner/internal/types"
)

// Defaults applied when neither the config file nor the environment sets a
// value.
const (
	DefaultTotalSlots        = 2
	DefaultPollInterval      = 5 * time.Second
	DefaultIdempotencyTTLMin = 5
)

// Config holds the orchestrator configuration. It can be loaded from a JSON
// file; environment variables override file values.
type Config struct {
	// DatabaseURL is the PostgreSQL connection string. Empty selects the
	// in-memory store (local development only).
	DatabaseURL string `json:"database_url,omitempty"`

	// TotalSlots is the global concurrency ceiling: at most this many runs
	// may be running at once. Read-only at request time.
	TotalSlots int `json:"total_slots,omitempty"`

	// PollIntervalSeconds is how often the admission scheduler polls.
	PollIntervalSeconds int `json:"poll_interval_seconds,omitempty"`

	// IdempotencyTTLMinutes bounds the dedup window for retried operations.
	IdempotencyTTLMinutes int `json:"idempotency_ttl_minutes,omitempty"`

	// ExtraTransitions adds deployment-specific edges to the default
	// lifecycle graph, keyed by source status.
	ExtraTransitions map[string][]string `json:"extra_transitions,omitempty"`
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// FromEnv returns a config populated from environment variables only.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides config values from the environment: DATABASE_URL,
// TOTAL_SLOTS, POLL_INTERVAL_SECONDS, IDEMPOTENCY_TTL_MINUTES.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("TOTAL_SLOTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.TotalSlots = n
		}
	}
	if v := os.Getenv("POLL_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.PollIntervalSeconds = n
		}
	}
	if v := os.Getenv("IDEMPOTENCY_TTL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.IdempotencyTTLMinutes = n
		}
	}
}

// Validate checks that the configuration has valid values and fills in
// defaults for unset fields.
func (c *Config) Validate() error {
	if c.TotalSlots < 0 {
		return fmt.Errorf("config error: 'total_slots' must be non-negative")
	}
	if c.TotalSlots == 0 {
		c.TotalSlots = DefaultTotalSlots
	}
	if c.PollIntervalSeconds < 0 {
		return fmt.Errorf("config error: 'poll_interval_seconds' must be non-negative")
	}
	if c.PollIntervalSeconds == 0 {
		c.PollIntervalSeconds = int(DefaultPollInterval / time.Second)
	}
	if c.IdempotencyTTLMinutes < 0 {
		return fmt.Errorf("config error: 'idempotency_ttl_minutes' must be non-negative")
	}
	if c.IdempotencyTTLMinutes == 0 {
		c.IdempotencyTTLMinutes = DefaultIdempotencyTTLMin
	}
	for from, tos := range c.ExtraTransitions {
		if !types.Status(from).Valid() {
			return fmt.Errorf("config error: unknown status %q in extra_transitions", from)
		}
		for _, to := range tos {
			if !types.Status(to).Valid() {
				return fmt.Errorf("config error: unknown status %q in extra_transitions", to)
			}
		}
	}
	return nil
}

// PollInterval returns the scheduler polling interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// IdempotencyTTL returns the dedup window for retried operations.
func (c *Config) IdempotencyTTL() time.Duration {
	return time.Duration(c.IdempotencyTTLMinutes) * time.Minute
}
