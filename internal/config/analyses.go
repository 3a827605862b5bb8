package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
)

const (
	EnvAnalysesStore              = "SEEDLAB_ANALYSES_STORE"
	EnvAnalysesReplicatesPerBatch = "SEEDLAB_ANALYSES_REPLICATES_PER_BATCH"
	EnvAnalysesTexture            = "SEEDLAB_ANALYSES_TEXTURE"
	EnvAnalysesHistory            = "SEEDLAB_ANALYSES_HISTORY"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"

	SinkDatabase = "database"
	SinkArchive  = "archive"
)

// AnalysesConfig selects the analysis store and the defaults applied to
// new analyses. History lists the sinks that receive history entries.
type AnalysesConfig struct {
	Store              string   `toml:"store"`
	ReplicatesPerBatch int      `toml:"replicates_per_batch"`
	Texture            string   `toml:"texture"`
	History            []string `toml:"history"`
}

// UsesDatabase reports whether any configured component needs Postgres.
func (c *AnalysesConfig) UsesDatabase() bool {
	return c.Store == StorePostgres || c.HistorySink(SinkDatabase)
}

// HistorySink reports whether the named history sink is enabled.
func (c *AnalysesConfig) HistorySink(name string) bool {
	return slices.Contains(c.History, name)
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *AnalysesConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay. A non-nil History replaces
// the base list, so an overlay can disable every sink with an empty array.
func (c *AnalysesConfig) Merge(overlay *AnalysesConfig) {
	if overlay.Store != "" {
		c.Store = overlay.Store
	}
	if overlay.ReplicatesPerBatch != 0 {
		c.ReplicatesPerBatch = overlay.ReplicatesPerBatch
	}
	if overlay.Texture != "" {
		c.Texture = overlay.Texture
	}
	if overlay.History != nil {
		c.History = overlay.History
	}
}

func (c *AnalysesConfig) loadDefaults() {
	if c.Store == "" {
		c.Store = StorePostgres
	}
	if c.ReplicatesPerBatch == 0 {
		c.ReplicatesPerBatch = 8
	}
	if c.Texture == "" {
		c.Texture = "normal"
	}
	if c.History == nil {
		c.History = []string{SinkDatabase}
	}
}

func (c *AnalysesConfig) loadEnv() {
	if v := os.Getenv(EnvAnalysesStore); v != "" {
		c.Store = v
	}
	if v := os.Getenv(EnvAnalysesReplicatesPerBatch); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.ReplicatesPerBatch = n
		}
	}
	if v := os.Getenv(EnvAnalysesTexture); v != "" {
		c.Texture = v
	}
	if v, ok := os.LookupEnv(EnvAnalysesHistory); ok {
		c.History = []string{}
		for s := range strings.SplitSeq(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				c.History = append(c.History, s)
			}
		}
	}
}

func (c *AnalysesConfig) validate() error {
	switch c.Store {
	case StorePostgres, StoreMemory:
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	if c.ReplicatesPerBatch < 1 {
		return fmt.Errorf("replicates_per_batch must be positive")
	}
	if c.Texture != "normal" && c.Texture != "friable" {
		return fmt.Errorf("unknown texture %q", c.Texture)
	}
	for _, sink := range c.History {
		if sink != SinkDatabase && sink != SinkArchive {
			return fmt.Errorf("unknown history sink %q", sink)
		}
	}
	return nil
}
