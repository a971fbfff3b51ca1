package config

import (
	"log/slog"
	"os"
	"path/filepath"
)

// Loader layers an optional YAML file under environment variables, mirroring
// the predecessor's defaults -> user config -> project config -> env chain,
// collapsed here to file -> env since this service has no interactive user
// config directory of its own.
type Loader struct {
	Logger *slog.Logger
}

// Load resolves the final configuration: defaults, then an optional file at
// configPath (if non-empty and present), then environment-variable
// overrides, which always win.
func (l Loader) Load(configPath string) (Config, error) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cfg := Default()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			fileCfg, err := LoadFromFile(configPath)
			if err != nil {
				return Config{}, err
			}
			cfg = cfg.Merge(fileCfg)
			logger.Info("loaded config file", "path", configPath)
		} else {
			logger.Debug("no config file found, using defaults", "path", configPath)
		}
	}

	cfg = cfg.Merge(fromEnv())
	applySecrets(&cfg)
	return cfg, nil
}

// fromEnv reads the non-secret layered fields from the environment.
func fromEnv() Config {
	var c Config
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("DEFAULT_MODEL"); v != "" {
		c.DefaultModel = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.NATSURL = v
	}
	return c
}

// applySecrets fills credential fields directly from the environment; these
// are never read from a file or merged via Merge so they can never
// accidentally be committed to a config file on disk.
func applySecrets(c *Config) {
	c.OpenRouterAPIKey = os.Getenv("OPENROUTER_API_KEY")
	c.CloudflareAPIToken = os.Getenv("CLOUDFLARE_API_TOKEN")
	c.CloudflareAccountID = os.Getenv("CLOUDFLARE_ACCOUNT_ID")
	c.AuthToken = os.Getenv("AUTH_TOKEN")
}

// DetectProjectConfig walks up from the current directory looking for a
// nimbusd.yaml, mirroring the predecessor's git-root-aware project config
// discovery.
func DetectProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, "nimbusd.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
