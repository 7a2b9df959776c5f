// Package config provides configuration loading and management for semprofile.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360studio/semprofile/hydrate"
)

// Config represents the complete semprofile configuration
type Config struct {
	Profiles  ProfilesConfig  `yaml:"profiles"`
	Hydration HydrationConfig `yaml:"hydration"`
	NATS      NATSConfig      `yaml:"nats"`
	Batch     BatchConfig     `yaml:"batch"`
}

// ProfilesConfig locates profile documents
type ProfilesConfig struct {
	// Dir is the profiles root (default: profiles)
	Dir string `yaml:"dir"`
}

// HydrationConfig configures allowed-item list hydration
type HydrationConfig struct {
	// Endpoint is the SPARQL query service URL
	Endpoint string `yaml:"endpoint"`
	// Timeout bounds each query attempt (default: 10s)
	Timeout time.Duration `yaml:"timeout"`
	// MaxAttempts is the number of query attempts before fallback (default: 3)
	MaxAttempts int `yaml:"max_attempts"`
	// BackoffBase is the wait after the first failed attempt (default: 500ms)
	BackoffBase time.Duration `yaml:"backoff_base"`
	// BackoffMultiplier grows the wait after each further failure (default: 2)
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
	// RateLimit is the sustained queries per second
	RateLimit float64 `yaml:"rate_limit"`
	// RateBurst is the maximum query burst
	RateBurst int `yaml:"rate_burst"`
	// UserAgent is sent with every query
	UserAgent string `yaml:"user_agent"`
}

// NATSConfig configures the NATS connection
type NATSConfig struct {
	// URL is the NATS server URL (empty = no persistence or publishing)
	URL string `yaml:"url"`
	// CacheBucket is the KV bucket for hydrated lists
	CacheBucket string `yaml:"cache_bucket"`
	// GraphSubject is where projected entities are published
	GraphSubject string `yaml:"graph_subject"`
}

// BatchConfig configures batch processing
type BatchConfig struct {
	// Workers bounds concurrently processed records (default: 4)
	Workers int `yaml:"workers"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	retry := hydrate.DefaultConfig()
	sparql := hydrate.DefaultSPARQLConfig()
	return &Config{
		Profiles: ProfilesConfig{
			Dir: "profiles",
		},
		Hydration: HydrationConfig{
			Endpoint:          sparql.Endpoint,
			Timeout:           retry.Timeout,
			MaxAttempts:       retry.MaxAttempts,
			BackoffBase:       retry.BackoffBase,
			BackoffMultiplier: retry.BackoffMultiplier,
			RateLimit:         sparql.RateLimit,
			RateBurst:         sparql.RateBurst,
			UserAgent:         sparql.UserAgent,
		},
		NATS: NATSConfig{
			URL:          "", // Disabled
			CacheBucket:  "SEMPROFILE_LISTS",
			GraphSubject: "graph.ingest.entity",
		},
		Batch: BatchConfig{
			Workers: 4,
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Profiles.Dir == "" {
		return fmt.Errorf("profiles.dir is required")
	}
	if c.Hydration.Endpoint == "" {
		return fmt.Errorf("hydration.endpoint is required")
	}
	if c.Hydration.Timeout <= 0 {
		return fmt.Errorf("hydration.timeout must be positive")
	}
	if c.Hydration.MaxAttempts < 1 {
		return fmt.Errorf("hydration.max_attempts must be at least 1")
	}
	if c.Hydration.BackoffMultiplier < 1 {
		return fmt.Errorf("hydration.backoff_multiplier must be at least 1")
	}
	if c.Batch.Workers < 1 {
		return fmt.Errorf("batch.workers must be at least 1")
	}
	return nil
}

// Retry returns the hydrator timeout and retry settings
func (h HydrationConfig) Retry() hydrate.Config {
	return hydrate.Config{
		Timeout:           h.Timeout,
		MaxAttempts:       h.MaxAttempts,
		BackoffBase:       h.BackoffBase,
		BackoffMultiplier: h.BackoffMultiplier,
	}
}

// SPARQL returns the query client settings
func (h HydrationConfig) SPARQL() hydrate.SPARQLConfig {
	return hydrate.SPARQLConfig{
		Endpoint:  h.Endpoint,
		UserAgent: h.UserAgent,
		RateLimit: h.RateLimit,
		RateBurst: h.RateBurst,
	}
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Profiles
	if other.Profiles.Dir != "" {
		c.Profiles.Dir = other.Profiles.Dir
	}

	// Hydration
	h := other.Hydration
	if h.Endpoint != "" {
		c.Hydration.Endpoint = h.Endpoint
	}
	if h.Timeout != 0 {
		c.Hydration.Timeout = h.Timeout
	}
	if h.MaxAttempts != 0 {
		c.Hydration.MaxAttempts = h.MaxAttempts
	}
	if h.BackoffBase != 0 {
		c.Hydration.BackoffBase = h.BackoffBase
	}
	if h.BackoffMultiplier != 0 {
		c.Hydration.BackoffMultiplier = h.BackoffMultiplier
	}
	if h.RateLimit != 0 {
		c.Hydration.RateLimit = h.RateLimit
	}
	if h.RateBurst != 0 {
		c.Hydration.RateBurst = h.RateBurst
	}
	if h.UserAgent != "" {
		c.Hydration.UserAgent = h.UserAgent
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
	if other.NATS.CacheBucket != "" {
		c.NATS.CacheBucket = other.NATS.CacheBucket
	}
	if other.NATS.GraphSubject != "" {
		c.NATS.GraphSubject = other.NATS.GraphSubject
	}

	// Batch
	if other.Batch.Workers != 0 {
		c.Batch.Workers = other.Batch.Workers
	}
}
