package config

import (
	"errors"
	"fmt"
	"time"
)

// Config represents a canisnap.yaml configuration file.
// All values are optional and act as defaults for snapshot command flags.
// CLI flags always override config values.
type Config struct {
	OutputDir string         `yaml:"output_dir"`
	Remote    RemoteConfig   `yaml:"remote"`
	Transfer  TransferConfig `yaml:"transfer"`
	Retry     RetryConfig    `yaml:"retry"`
	Adapter   AdapterConfig  `yaml:"adapter"`
	Log       LogConfig      `yaml:"log"`
	History   HistoryConfig  `yaml:"history"`
}

// RemoteConfig selects the snapshot service backend.
type RemoteConfig struct {
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// TransferConfig holds chunking and concurrency defaults.
type TransferConfig struct {
	ChunkSize             uint64 `yaml:"chunk_size"`
	LinearConcurrency     int    `yaml:"linear_concurrency"`
	ChunkStoreConcurrency int    `yaml:"chunk_store_concurrency"`
	ParallelArtifacts     bool   `yaml:"parallel_artifacts"`
}

// RetryConfig holds the chunk retry strategy.
type RetryConfig struct {
	Policy          string   `yaml:"policy"`
	MaxRetries      *int     `yaml:"max_retries,omitempty"`
	InitialInterval Duration `yaml:"initial_interval,omitempty"`
	MaxInterval     Duration `yaml:"max_interval,omitempty"`
}

// AdapterConfig holds adapter defaults from the config file.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// LogConfig holds logging defaults.
type LogConfig struct {
	Level string `yaml:"level"`
}

// HistoryConfig locates the transfer journal.
type HistoryConfig struct {
	Dir string `yaml:"dir"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Validate checks value ranges that YAML typing cannot express. Enum
// values (backend, retry policy, adapter type, log level) are checked where
// they are consumed, so flags and config fail the same way.
func (c *Config) Validate() error {
	var errs []error
	if c.Transfer.LinearConcurrency < 0 {
		errs = append(errs, fmt.Errorf("transfer.linear_concurrency must be >= 0, got %d", c.Transfer.LinearConcurrency))
	}
	if c.Transfer.ChunkStoreConcurrency < 0 {
		errs = append(errs, fmt.Errorf("transfer.chunk_store_concurrency must be >= 0, got %d", c.Transfer.ChunkStoreConcurrency))
	}
	if c.Retry.MaxRetries != nil && *c.Retry.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("retry.max_retries must be >= 0, got %d", *c.Retry.MaxRetries))
	}
	if c.Adapter.Retries != nil && *c.Adapter.Retries < 0 {
		errs = append(errs, fmt.Errorf("adapter.retries must be >= 0, got %d", *c.Adapter.Retries))
	}
	if c.Adapter.Type != "" && c.Adapter.URL == "" {
		errs = append(errs, fmt.Errorf("adapter.url is required for adapter type %q", c.Adapter.Type))
	}
	return errors.Join(errs...)
}
