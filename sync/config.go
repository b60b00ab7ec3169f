// ABOUTME: Sync configuration stored as YAML at XDG config paths with environment overrides
// ABOUTME: Controls batch size, worker count, run deadline, retry policy, and store locations
package sync

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/harperreed/crmbridge/connector"
)

// Defaults.
const (
	DefaultBatchSize      = 100
	DefaultWorkers        = 4
	DefaultRunTimeout     = 2 * time.Minute
	DefaultDaemonInterval = 5 * time.Minute
)

// Config holds settings for sync runs.
type Config struct {
	DBPath         string        `yaml:"db_path"`
	PartnerHost    string        `yaml:"partner_host,omitempty"`
	BatchSize      int           `yaml:"batch_size"`
	Workers        int           `yaml:"workers"`
	RunTimeout     time.Duration `yaml:"run_timeout"`
	DaemonInterval time.Duration `yaml:"daemon_interval"`
	Retry          RetryConfig   `yaml:"retry"`
}

// RetryConfig configures backoff for connector calls.
type RetryConfig struct {
	MaxRetries      int           `yaml:"max_retries"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
}

// Policy converts the retry settings for the connector decorator.
func (r RetryConfig) Policy() connector.RetryPolicy {
	return connector.RetryPolicy{
		InitialInterval: r.InitialInterval,
		MaxInterval:     r.MaxInterval,
		MaxRetries:      r.MaxRetries,
	}
}

// ConfigDir returns the XDG config directory for crmbridge.
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, "crmbridge")
}

// ConfigPath returns the path of the sync config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "sync.yaml")
}

// DefaultDBPath is where the primary store lives unless configured otherwise.
func DefaultDBPath() string {
	return filepath.Join(xdg.DataHome, "crmbridge", "crmbridge.db")
}

// DefaultConfig returns a config with every default filled in.
func DefaultConfig() *Config {
	return &Config{
		DBPath:         DefaultDBPath(),
		BatchSize:      DefaultBatchSize,
		Workers:        DefaultWorkers,
		RunTimeout:     DefaultRunTimeout,
		DaemonInterval: DefaultDaemonInterval,
		Retry: RetryConfig{
			MaxRetries:      connector.DefaultMaxRetries,
			InitialInterval: connector.DefaultInitialInterval,
			MaxInterval:     connector.DefaultMaxInterval,
		},
	}
}

// LoadConfig loads the sync config from the XDG config directory.
// A missing file yields defaults. Environment variables override file values:
// - CRMBRIDGE_DB_PATH
// - CRMBRIDGE_PARTNER_HOST
// - CRMBRIDGE_BATCH_SIZE
// - CRMBRIDGE_WORKERS
// - CRMBRIDGE_RUN_TIMEOUT
// - CRMBRIDGE_MAX_RETRIES.
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(ConfigPath())
}

// LoadConfigFrom loads the sync config from path.
func LoadConfigFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read sync config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode sync config: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the sync config.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("CRMBRIDGE_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("CRMBRIDGE_PARTNER_HOST"); v != "" {
		cfg.PartnerHost = v
	}
	if v := os.Getenv("CRMBRIDGE_BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CRMBRIDGE_BATCH_SIZE %q: %w", v, err)
		}
		cfg.BatchSize = n
	}
	if v := os.Getenv("CRMBRIDGE_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CRMBRIDGE_WORKERS %q: %w", v, err)
		}
		cfg.Workers = n
	}
	if v := os.Getenv("CRMBRIDGE_RUN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid CRMBRIDGE_RUN_TIMEOUT %q: %w", v, err)
		}
		cfg.RunTimeout = d
	}
	if v := os.Getenv("CRMBRIDGE_MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CRMBRIDGE_MAX_RETRIES %q: %w", v, err)
		}
		cfg.Retry.MaxRetries = n
	}
	return nil
}

func (c *Config) normalize() {
	def := DefaultConfig()
	if c.DBPath == "" {
		c.DBPath = def.DBPath
	}
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	if c.RunTimeout < 0 {
		c.RunTimeout = 0
	}
	if c.DaemonInterval <= 0 {
		c.DaemonInterval = def.DaemonInterval
	}
	if c.Retry.MaxRetries < 0 {
		c.Retry.MaxRetries = 0
	}
	if c.Retry.InitialInterval <= 0 {
		c.Retry.InitialInterval = def.Retry.InitialInterval
	}
	if c.Retry.MaxInterval <= 0 {
		c.Retry.MaxInterval = def.Retry.MaxInterval
	}
}

// SaveConfig writes cfg to the XDG config directory.
func SaveConfig(cfg *Config) error {
	path := ConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode sync config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write sync config: %w", err)
	}
	return nil
}
