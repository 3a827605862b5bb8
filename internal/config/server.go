package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	EnvServerHost              = "SEEDLAB_SERVER_HOST"
	EnvServerPort              = "SEEDLAB_SERVER_PORT"
	EnvServerReadTimeout       = "SEEDLAB_SERVER_READ_TIMEOUT"
	EnvServerReadHeaderTimeout = "SEEDLAB_SERVER_READ_HEADER_TIMEOUT"
	EnvServerWriteTimeout      = "SEEDLAB_SERVER_WRITE_TIMEOUT"
	EnvServerShutdownTimeout   = "SEEDLAB_SERVER_SHUTDOWN_TIMEOUT"
)

// ServerConfig holds HTTP server parameters. Timeouts are Go duration strings.
type ServerConfig struct {
	Host              string `toml:"host"`
	Port              int    `toml:"port"`
	ReadTimeout       string `toml:"read_timeout"`
	ReadHeaderTimeout string `toml:"read_header_timeout"`
	WriteTimeout      string `toml:"write_timeout"`
	ShutdownTimeout   string `toml:"shutdown_timeout"`
}

// Addr returns the host:port listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *ServerConfig) ReadTimeoutDuration() time.Duration {
	return mustDuration(c.ReadTimeout)
}

func (c *ServerConfig) ReadHeaderTimeoutDuration() time.Duration {
	return mustDuration(c.ReadHeaderTimeout)
}

func (c *ServerConfig) WriteTimeoutDuration() time.Duration {
	return mustDuration(c.WriteTimeout)
}

func (c *ServerConfig) ShutdownTimeoutDuration() time.Duration {
	return mustDuration(c.ShutdownTimeout)
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *ServerConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *ServerConfig) Merge(overlay *ServerConfig) {
	if overlay.Host != "" {
		c.Host = overlay.Host
	}
	if overlay.Port != 0 {
		c.Port = overlay.Port
	}
	for _, f := range c.durations(overlay) {
		if *f.src != "" {
			*f.dst = *f.src
		}
	}
}

func (c *ServerConfig) loadDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == "" {
		c.ReadTimeout = "1m"
	}
	if c.ReadHeaderTimeout == "" {
		c.ReadHeaderTimeout = "10s"
	}
	if c.WriteTimeout == "" {
		c.WriteTimeout = "1m"
	}
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
}

func (c *ServerConfig) loadEnv() {
	if v := os.Getenv(EnvServerHost); v != "" {
		c.Host = v
	}
	if v := os.Getenv(EnvServerPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	for _, f := range c.durations(nil) {
		if v := os.Getenv(f.env); v != "" {
			*f.dst = v
		}
	}
}

func (c *ServerConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	for _, f := range c.durations(nil) {
		if d, err := time.ParseDuration(*f.dst); err != nil {
			return fmt.Errorf("invalid %s: %w", f.name, err)
		} else if d < 0 {
			return fmt.Errorf("invalid %s: negative duration", f.name)
		}
	}
	return nil
}

type durationField struct {
	name string
	env  string
	dst  *string
	src  *string
}

// durations lists the timeout fields. src points into overlay when one is given.
func (c *ServerConfig) durations(overlay *ServerConfig) []durationField {
	fields := []durationField{
		{name: "read_timeout", env: EnvServerReadTimeout, dst: &c.ReadTimeout},
		{name: "read_header_timeout", env: EnvServerReadHeaderTimeout, dst: &c.ReadHeaderTimeout},
		{name: "write_timeout", env: EnvServerWriteTimeout, dst: &c.WriteTimeout},
		{name: "shutdown_timeout", env: EnvServerShutdownTimeout, dst: &c.ShutdownTimeout},
	}
	if overlay != nil {
		fields[0].src = &overlay.ReadTimeout
		fields[1].src = &overlay.ReadHeaderTimeout
		fields[2].src = &overlay.WriteTimeout
		fields[3].src = &overlay.ShutdownTimeout
	}
	return fields
}

// mustDuration parses a duration already checked by validate.
func mustDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
