package openapi

import "os"

// Config holds the document metadata published in the info object.
type Config struct {
	Title       string `toml:"title"`
	Description string `toml:"description"`
}

// ConfigEnv names the environment variables overriding Config. A set but
// empty description variable clears the description.
type ConfigEnv struct {
	Title       string
	Description string
}

// Finalize applies defaults and environment variable overrides.
func (c *Config) Finalize(env *ConfigEnv) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Title != "" {
		c.Title = overlay.Title
	}
	if overlay.Description != "" {
		c.Description = overlay.Description
	}
}

func (c *Config) loadDefaults() {
	if c.Title == "" {
		c.Title = "SeedLab API"
	}
	if c.Description == "" {
		c.Description = "Seed-quality analysis lifecycle and replicate batch acceptance service."
	}
}

func (c *Config) loadEnv(env *ConfigEnv) {
	if env.Title != "" {
		if v, ok := os.LookupEnv(env.Title); ok && v != "" {
			c.Title = v
		}
	}
	if env.Description != "" {
		if v, ok := os.LookupEnv(env.Description); ok {
			c.Description = v
		}
	}
}
