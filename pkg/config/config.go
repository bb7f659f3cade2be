// Package config loads syllabler settings from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/japaniel/syllabler/pkg/verse"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when --config is not given.
const DefaultPath = "syllabler.yaml"

// Config holds all syllabler settings.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Overrides OverridesConfig `yaml:"overrides"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Scan      ScanConfig      `yaml:"scan"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DatabaseConfig points at the sqlite store.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// OverridesConfig configures the override CSV and where to fetch it from.
type OverridesConfig struct {
	Path  string `yaml:"path"`
	URL   string `yaml:"url"`
	Watch bool   `yaml:"watch"`
}

// IngestConfig tunes the scoring pipeline.
type IngestConfig struct {
	Workers       int    `yaml:"workers"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval string `yaml:"flush_interval"`
}

// ScanConfig configures the scan command.
type ScanConfig struct {
	Form         string `yaml:"form"`
	FetchTimeout string `yaml:"fetch_timeout"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
}

// LoggingConfig selects the log level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	return &Config{
		Database:  DatabaseConfig{Path: "syllabler.db"},
		Overrides: OverridesConfig{Path: "overrides.csv"},
		Ingest: IngestConfig{
			Workers:       runtime.NumCPU(),
			BatchSize:     50,
			FlushInterval: "100ms",
		},
		Scan: ScanConfig{
			Form:         "5,7,5",
			FetchTimeout: "30s",
			MaxBodyBytes: 10 * 1024 * 1024,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("SYLLABLER_DB"); path != "" {
		c.Database.Path = path
	}
	if path := os.Getenv("SYLLABLER_OVERRIDES"); path != "" {
		c.Overrides.Path = path
	}
	if url := os.Getenv("SYLLABLER_OVERRIDES_URL"); url != "" {
		c.Overrides.URL = url
	}
}

// Validate checks values that would otherwise fail deep inside a command.
func (c *Config) Validate() error {
	if c.Ingest.Workers < 0 {
		return fmt.Errorf("ingest.workers must be non-negative, got %d", c.Ingest.Workers)
	}
	if c.Ingest.BatchSize < 0 {
		return fmt.Errorf("ingest.batch_size must be non-negative, got %d", c.Ingest.BatchSize)
	}
	if _, err := parseDuration(c.Ingest.FlushInterval); err != nil {
		return fmt.Errorf("ingest.flush_interval: %w", err)
	}
	if _, err := parseDuration(c.Scan.FetchTimeout); err != nil {
		return fmt.Errorf("scan.fetch_timeout: %w", err)
	}
	if c.Scan.Form != "" {
		if _, err := verse.ParseForm(c.Scan.Form); err != nil {
			return fmt.Errorf("scan.form: %w", err)
		}
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}
	return nil
}

// GetFlushInterval returns the ingest flush interval as a duration.
func (c *Config) GetFlushInterval() time.Duration {
	d, err := parseDuration(c.Ingest.FlushInterval)
	if err != nil || d == 0 {
		return 100 * time.Millisecond
	}
	return d
}

// GetFetchTimeout returns the scan fetch timeout as a duration.
func (c *Config) GetFetchTimeout() time.Duration {
	d, err := parseDuration(c.Scan.FetchTimeout)
	if err != nil || d == 0 {
		return 30 * time.Second
	}
	return d
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
