// Package config loads personae settings from YAML, the environment and .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rcliao/personae/internal/embedding"
	"github.com/rcliao/personae/internal/llm"
)

// Environment variables that override file settings.
const (
	EnvDB       = "PERSONAE_DB"
	EnvAPIKey   = "OPENAI_API_KEY"
	EnvBaseURL  = "OPENAI_BASE_URL"
	EnvLogLevel = "PERSONAE_LOG_LEVEL"
)

// Config is the process configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	LLM      LLMConfig      `yaml:"llm"`
	Worker   WorkerConfig   `yaml:"worker"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	Path       string `yaml:"path"`
	Dimensions int    `yaml:"dimensions"`
	Metric     string `yaml:"metric"` // cosine, l2
}

// LLMConfig configures the provider. The API key normally comes from the
// environment rather than the file.
type LLMConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// WorkerConfig configures the job loop.
type WorkerConfig struct {
	PollInterval string `yaml:"poll_interval"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// DefaultPath is where the CLI looks for a config file when none is given.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".personae", "config.yaml")
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Database: DatabaseConfig{
			Path:       filepath.Join(home, ".personae", "personae.db"),
			Dimensions: llm.EmbeddingDimensions,
			Metric:     string(embedding.Cosine),
		},
		Worker: WorkerConfig{
			PollInterval: "500ms",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. A missing file or empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads variables from the given .env files (default ".env")
// without overriding variables already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(EnvDB); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv(EnvBaseURL); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks that every setting is usable.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("config: database.path is empty")
	}
	if c.Database.Dimensions <= 0 {
		return fmt.Errorf("config: database.dimensions must be positive, got %d", c.Database.Dimensions)
	}
	if _, err := embedding.ParseMetric(c.Database.Metric); err != nil {
		return fmt.Errorf("config: database.metric: %w", err)
	}
	if _, err := c.PollInterval(); err != nil {
		return err
	}
	return nil
}

// PollInterval parses worker.poll_interval.
func (c *Config) PollInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.Worker.PollInterval)
	if err != nil {
		return 0, fmt.Errorf("config: worker.poll_interval: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config: worker.poll_interval must be positive, got %s", d)
	}
	return d, nil
}

// Metric returns the parsed distance metric.
func (c *Config) Metric() embedding.Metric {
	m, _ := embedding.ParseMetric(c.Database.Metric)
	return m
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
