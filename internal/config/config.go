// Package config loads process configuration, layering optional YAML file
// settings under environment variables the way config/loader.go in this
// codebase's predecessor layered defaults -> user file -> project file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the value struct constructed once at process start and passed
// explicitly to every component; there is no package-level global.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`

	DefaultModel     string `yaml:"default_model"`
	OpenRouterAPIKey string `yaml:"-"`

	CloudflareAPIToken   string `yaml:"-"`
	CloudflareAccountID  string `yaml:"-"`

	AuthToken string `yaml:"-"`

	DatabaseURL string `yaml:"database_url"`
	NATSURL     string `yaml:"nats_url"`

	SweepInterval time.Duration `yaml:"sweep_interval"`
	JobRetention  time.Duration `yaml:"job_retention"`
}

// Default returns the baseline configuration before file/env layering.
func Default() Config {
	return Config{
		ListenAddr:    ":8080",
		DefaultModel:  "openai/gpt-4o-mini",
		NATSURL:       "nats://127.0.0.1:4222",
		SweepInterval: time.Hour,
		JobRetention:  24 * time.Hour,
	}
}

// Validate checks the fields required for the process to serve traffic.
// It does not check credentials: the Cloudflare credentials are checked
// lazily by the deploy driver, which raises apperr.ConfigMissing, and
// OpenRouterAPIKey is checked by the serve command, which refuses to start
// without it.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.NATSURL == "" {
		return fmt.Errorf("NATS_URL is required")
	}
	if c.AuthToken == "" {
		return fmt.Errorf("AUTH_TOKEN is required")
	}
	return nil
}

// LoadFromFile reads an optional YAML layer (non-secret fields only;
// credentials always come from the environment, never from a file on disk).
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}
	return c, nil
}

// Merge overlays non-zero fields of other onto c, returning the result.
// Used to layer a file config (base) under environment variables (override).
func (c Config) Merge(other Config) Config {
	if other.ListenAddr != "" {
		c.ListenAddr = other.ListenAddr
	}
	if other.DefaultModel != "" {
		c.DefaultModel = other.DefaultModel
	}
	if other.DatabaseURL != "" {
		c.DatabaseURL = other.DatabaseURL
	}
	if other.NATSURL != "" {
		c.NATSURL = other.NATSURL
	}
	if other.SweepInterval != 0 {
		c.SweepInterval = other.SweepInterval
	}
	if other.JobRetention != 0 {
		c.JobRetention = other.JobRetention
	}
	return c
}
