package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JaimeStill/seedlab/internal/config"
)

const baseConfig = `
shutdown_timeout = "30s"
version = "0.1.0"

[server]
host = "0.0.0.0"
port = 8080
read_timeout = "1m"
write_timeout = "15m"
shutdown_timeout = "30s"

[database]
host = "localhost"
port = 5432
name = "seedlab"
user = "seedlab"
password = "seedlab"

[api]
base_path = "/api"
max_body_size = "32KB"

[api.pagination]
default_page_size = 25
max_page_size = 50

[analyses]
store = "postgres"
replicates_per_batch = 8
history = ["database"]
`

const overlayConfig = `
[server]
port = 9090

[database]
host = "prodhost"

[analyses]
texture = "friable"
`

func writeConfig(t *testing.T, dir, filename, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, filename), []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", filename, err)
	}
}

func loadFrom(t *testing.T, files map[string]string) (*config.Config, error) {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		writeConfig(t, dir, name, content)
	}
	t.Chdir(dir)
	return config.Load()
}

func TestLoad(t *testing.T) {
	cfg, err := loadFrom(t, map[string]string{config.BaseConfigFile: baseConfig})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Addr() != "0.0.0.0:8080" {
		t.Errorf("addr: got %s, want 0.0.0.0:8080", cfg.Server.Addr())
	}
	if cfg.Database.Name != "seedlab" {
		t.Errorf("db name: got %s, want seedlab", cfg.Database.Name)
	}
	if cfg.API.Pagination.DefaultPageSize != 25 || cfg.API.Pagination.MaxPageSize != 50 {
		t.Errorf("pagination: got %+v, want {25 50}", cfg.API.Pagination)
	}
	if got := cfg.API.MaxBodySizeBytes(); got != 32*1024 {
		t.Errorf("max body size: got %d, want %d", got, 32*1024)
	}
	if cfg.API.OpenAPI.Title != "SeedLab API" {
		t.Errorf("openapi title: got %q", cfg.API.OpenAPI.Title)
	}
	if cfg.Analyses.Texture != "normal" {
		t.Errorf("texture default: got %s, want normal", cfg.Analyses.Texture)
	}
	if cfg.Env() != "local" {
		t.Errorf("env: got %s, want local", cfg.Env())
	}
	if d := cfg.ShutdownTimeoutDuration(); d != 30*time.Second {
		t.Errorf("shutdown timeout: got %v, want 30s", d)
	}
}

func TestLoadWithOverlay(t *testing.T) {
	t.Setenv(config.EnvSeedlabEnv, "staging")

	cfg, err := loadFrom(t, map[string]string{
		config.BaseConfigFile:  baseConfig,
		"config.staging.toml": overlayConfig,
	})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("server port: got %d, want 9090 from overlay", cfg.Server.Port)
	}
	if cfg.Database.Host != "prodhost" {
		t.Errorf("db host: got %s, want prodhost from overlay", cfg.Database.Host)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("db port: got %d, want 5432 from base", cfg.Database.Port)
	}
	if cfg.Analyses.Texture != "friable" || cfg.Analyses.ReplicatesPerBatch != 8 {
		t.Errorf("analyses: got %+v", cfg.Analyses)
	}
	if cfg.Env() != "staging" {
		t.Errorf("env: got %s, want staging", cfg.Env())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SEEDLAB_VERSION", "2.0.0")
	t.Setenv(config.EnvServerPort, "3000")
	t.Setenv("SEEDLAB_PAGINATION_MAX_PAGE_SIZE", "200")
	t.Setenv(config.EnvAPIMaxBodySize, "1MB")
	t.Setenv(config.EnvAnalysesReplicatesPerBatch, "4")
	t.Setenv(config.EnvServerReadHeaderTimeout, "5s")

	cfg, err := loadFrom(t, map[string]string{config.BaseConfigFile: baseConfig})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Version != "2.0.0" {
		t.Errorf("version: got %s, want 2.0.0", cfg.Version)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("server port: got %d, want 3000", cfg.Server.Port)
	}
	if cfg.API.Pagination.MaxPageSize != 200 {
		t.Errorf("max page size: got %d, want 200", cfg.API.Pagination.MaxPageSize)
	}
	if cfg.API.MaxBodySizeBytes() != 1024*1024 {
		t.Errorf("max body size: got %d", cfg.API.MaxBodySizeBytes())
	}
	if cfg.Analyses.ReplicatesPerBatch != 4 {
		t.Errorf("replicates per batch: got %d, want 4", cfg.Analyses.ReplicatesPerBatch)
	}
	if d := cfg.Server.ReadHeaderTimeoutDuration(); d != 5*time.Second {
		t.Errorf("read header timeout: got %v, want 5s", d)
	}
	if d := cfg.Server.WriteTimeoutDuration(); d != 15*time.Minute {
		t.Errorf("write timeout: got %v, want 15m from file", d)
	}
}

func TestLoadMemoryStoreNeedsNoDatabase(t *testing.T) {
	t.Setenv(config.EnvAnalysesStore, config.StoreMemory)
	t.Setenv(config.EnvAnalysesHistory, "")

	cfg, err := loadFrom(t, nil)
	if err != nil {
		t.Fatalf("load without config file failed: %v", err)
	}

	if cfg.Analyses.UsesDatabase() {
		t.Error("memory store without history should not use the database")
	}
	if len(cfg.Analyses.History) != 0 {
		t.Errorf("history: got %v, want none", cfg.Analyses.History)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("server port default: got %d, want 8080", cfg.Server.Port)
	}
}

func TestLoadArchiveRequiresStorage(t *testing.T) {
	t.Setenv(config.EnvAnalysesStore, config.StoreMemory)
	t.Setenv(config.EnvAnalysesHistory, "archive")

	if _, err := loadFrom(t, nil); err == nil || !strings.Contains(err.Error(), "storage") {
		t.Fatalf("got %v, want storage validation error", err)
	}

	t.Setenv("SEEDLAB_STORAGE_CONNECTION_STRING", "UseDevelopmentStorage=true")

	cfg, err := loadFrom(t, nil)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !cfg.Analyses.HistorySink(config.SinkArchive) || cfg.Storage.ContainerName != "history" {
		t.Errorf("archive config: got %+v / %+v", cfg.Analyses, cfg.Storage)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		wantErr string
	}{
		{"invalid toml", `[server`, "parse config"},
		{"invalid port", "[server]\nport = 99999\n[database]\nname = \"s\"\nuser = \"s\"", "invalid port"},
		{"missing database name", "[database]\nuser = \"s\"", "database"},
		{"unknown store", "[analyses]\nstore = \"redis\"", "unknown store"},
		{"unknown texture", "[analyses]\nstore = \"memory\"\nhistory = []\ntexture = \"glossy\"", "unknown texture"},
		{"unknown sink", "[analyses]\nstore = \"memory\"\nhistory = [\"kafka\"]", "unknown history sink"},
		{"negative timeout", "[server]\nwrite_timeout = \"-1s\"\n[database]\nname = \"s\"\nuser = \"s\"", "invalid write_timeout"},
		{"bad body size", "[database]\nname = \"s\"\nuser = \"s\"\n[api]\nmax_body_size = \"lots\"", "max_body_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadFrom(t, map[string]string{config.BaseConfigFile: tt.config})
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestAnalysesMerge(t *testing.T) {
	base := config.AnalysesConfig{
		Store:              config.StorePostgres,
		ReplicatesPerBatch: 8,
		History:            []string{config.SinkDatabase, config.SinkArchive},
	}

	base.Merge(&config.AnalysesConfig{ReplicatesPerBatch: 4})
	if base.ReplicatesPerBatch != 4 || len(base.History) != 2 {
		t.Errorf("zero overlay fields should keep base: got %+v", base)
	}

	base.Merge(&config.AnalysesConfig{History: []string{}})
	if len(base.History) != 0 || base.Store != config.StorePostgres {
		t.Errorf("empty history overlay should disable sinks: got %+v", base)
	}
	if !base.UsesDatabase() {
		t.Error("postgres store should still use the database")
	}
}
