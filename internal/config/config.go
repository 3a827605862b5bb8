package config

import (
	"fmt"
	"os"
	"time"

	"github.com/JaimeStill/seedlab/pkg/database"
	"github.com/JaimeStill/seedlab/pkg/storage"
	"github.com/pelletier/go-toml/v2"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvSeedlabEnv             = "SEEDLAB_ENV"
	EnvSeedlabShutdownTimeout = "SEEDLAB_SHUTDOWN_TIMEOUT"
	EnvSeedlabVersion         = "SEEDLAB_VERSION"
)

var databaseEnv = &database.Env{
	Host:            "SEEDLAB_DB_HOST",
	Port:            "SEEDLAB_DB_PORT",
	Name:            "SEEDLAB_DB_NAME",
	User:            "SEEDLAB_DB_USER",
	Password:        "SEEDLAB_DB_PASSWORD",
	SSLMode:         "SEEDLAB_DB_SSL_MODE",
	MaxOpenConns:    "SEEDLAB_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "SEEDLAB_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "SEEDLAB_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "SEEDLAB_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	ContainerName:    "SEEDLAB_STORAGE_CONTAINER_NAME",
	ConnectionString: "SEEDLAB_STORAGE_CONNECTION_STRING",
	AccountURL:       "SEEDLAB_STORAGE_ACCOUNT_URL",
	MaxListSize:      "SEEDLAB_STORAGE_MAX_LIST_SIZE",
}

// Config is the root configuration for the SeedLab service.
type Config struct {
	Server          ServerConfig    `toml:"server"`
	Database        database.Config `toml:"database"`
	Storage         storage.Config  `toml:"storage"`
	API             APIConfig       `toml:"api"`
	Analyses        AnalysesConfig  `toml:"analyses"`
	ShutdownTimeout string          `toml:"shutdown_timeout"`
	Version         string          `toml:"version"`
}

// Env returns the SEEDLAB_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvSeedlabEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	return mustDuration(c.ShutdownTimeout)
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration.
func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.API.Merge(&overlay.API)
	c.Analyses.Merge(&overlay.Analyses)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Analyses.Finalize(); err != nil {
		return fmt.Errorf("analyses: %w", err)
	}
	if c.Analyses.UsesDatabase() {
		if err := c.Database.Finalize(databaseEnv); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if c.Analyses.HistorySink(SinkArchive) {
		if err := c.Storage.Finalize(storageEnv); err != nil {
			return fmt.Errorf("storage: %w", err)
		}
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvSeedlabShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvSeedlabVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvSeedlabEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
