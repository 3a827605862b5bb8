package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JaimeStill/seedlab/internal/analyses"
	"github.com/JaimeStill/seedlab/internal/api"
	"github.com/JaimeStill/seedlab/internal/config"
	"github.com/JaimeStill/seedlab/internal/infrastructure"
	"github.com/JaimeStill/seedlab/pkg/module"
	"github.com/JaimeStill/seedlab/pkg/openapi"
	"github.com/JaimeStill/seedlab/pkg/pagination"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     "1m",
			WriteTimeout:    "15m",
			ShutdownTimeout: "30s",
		},
		API: config.APIConfig{
			BasePath:    "/api",
			MaxBodySize: "64KB",
			Pagination: pagination.Config{
				DefaultPageSize: 20,
				MaxPageSize:     100,
			},
			OpenAPI: openapi.Config{
				Title:       "SeedLab API",
				Description: "test",
			},
		},
		Analyses: config.AnalysesConfig{
			Store:              config.StoreMemory,
			ReplicatesPerBatch: 2,
			Texture:            "normal",
			History:            []string{},
		},
		ShutdownTimeout: "30s",
		Version:         "0.1.0",
	}
}

func setupModule(t *testing.T) (*module.Module, *infrastructure.Infrastructure) {
	t.Helper()
	cfg := memoryConfig()

	infra, err := infrastructure.New(cfg)
	if err != nil {
		t.Fatalf("infrastructure.New() error = %v", err)
	}

	m, err := api.NewModule(cfg, infra)
	if err != nil {
		t.Fatalf("NewModule() error = %v", err)
	}
	return m, infra
}

func do(t *testing.T, m *module.Module, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	m.Serve(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestNewRuntime(t *testing.T) {
	cfg := memoryConfig()
	infra, err := infrastructure.New(cfg)
	if err != nil {
		t.Fatalf("infrastructure.New() error = %v", err)
	}

	runtime := api.NewRuntime(cfg, infra)

	if runtime.Pagination.DefaultPageSize != 20 || runtime.Pagination.MaxPageSize != 100 {
		t.Errorf("pagination: got %+v", runtime.Pagination)
	}
	if runtime.Analyses.Store != config.StoreMemory {
		t.Errorf("store: got %s, want memory", runtime.Analyses.Store)
	}
	if runtime.Logger == nil || runtime.Metrics == nil || runtime.Lifecycle == nil {
		t.Error("runtime is missing shared infrastructure")
	}
	if runtime.Database != nil || runtime.Storage != nil {
		t.Error("memory store without history should not open database or storage")
	}
}

func TestNewDomainWithoutHistory(t *testing.T) {
	cfg := memoryConfig()
	infra, err := infrastructure.New(cfg)
	if err != nil {
		t.Fatalf("infrastructure.New() error = %v", err)
	}

	domain := api.NewDomain(api.NewRuntime(cfg, infra))
	if domain.Analyses == nil {
		t.Fatal("analyses system is nil")
	}
	if domain.History != nil {
		t.Error("history journal should be nil when the database sink is off")
	}
}

func TestMassPerSampleFlow(t *testing.T) {
	m, infra := setupModule(t)

	if m.Prefix() != "/api" {
		t.Fatalf("prefix: got %s, want /api", m.Prefix())
	}

	rec := do(t, m, "POST", "/api/analyses", map[string]any{
		"type":   "MASS_PER_SAMPLE",
		"lot_id": "LOT-2026-0042",
		"actor":  "analyst",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: got %d: %s", rec.Code, rec.Body.String())
	}
	created := decode[analyses.Analysis](t, rec)
	if created.Config.ReplicatesPerBatch != 2 {
		t.Errorf("default replicates per batch: got %d, want 2", created.Config.ReplicatesPerBatch)
	}

	base := "/api/analyses/" + created.ID.String()

	for _, v := range []string{"10.0", "10.1"} {
		rec = do(t, m, "POST", base+"/replicates", map[string]any{"value": v, "actor": "analyst"})
		if rec.Code != http.StatusCreated {
			t.Fatalf("add replicate %s: got %d: %s", v, rec.Code, rec.Body.String())
		}
	}
	result := decode[analyses.ReplicateResult](t, rec)
	if !result.Complete || result.AssignedBatch != 1 {
		t.Errorf("second replicate: got complete=%v batch=%d", result.Complete, result.AssignedBatch)
	}

	rec = do(t, m, "POST", base+"/replicates", map[string]any{"value": "10.2", "actor": "analyst"})
	if rec.Code != http.StatusConflict {
		t.Errorf("add after acceptance: got %d, want 409", rec.Code)
	}

	rec = do(t, m, "PUT", base+"/rounded-value", map[string]any{"value": "100.5", "actor": "analyst"})
	if rec.Code != http.StatusOK {
		t.Fatalf("rounded value: got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, m, "GET", base+"/statistics", nil)
	stats := decode[analyses.Statistics](t, rec)
	if !stats.CanFinalize || stats.Replicates != 2 {
		t.Errorf("statistics: got can_finalize=%v replicates=%d", stats.CanFinalize, stats.Replicates)
	}

	rec = do(t, m, "POST", base+"/finalize", map[string]any{"actor": "analyst"})
	if rec.Code != http.StatusOK {
		t.Fatalf("finalize: got %d: %s", rec.Code, rec.Body.String())
	}
	if a := decode[analyses.Analysis](t, rec); a.Status != analyses.StatusPendingApproval {
		t.Errorf("status after analyst finalize: got %s, want PENDING_APPROVAL", a.Status)
	}

	rec = do(t, m, "POST", base+"/approve", map[string]any{"actor": "analyst"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("analyst approve: got %d, want 403", rec.Code)
	}

	families, err := infra.Metrics.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{"seedlab_http_requests_total", "seedlab_replicate_mutations_total"} {
		if !names[want] {
			t.Errorf("metric %s not registered", want)
		}
	}
}

func TestOpenAPIDocument(t *testing.T) {
	m, _ := setupModule(t)

	rec := do(t, m, "GET", "/api/openapi.json", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}

	body := rec.Body.String()
	for _, want := range []string{`"/analyses/{id}/replicates"`, `"SeedLab API"`, `"url": "/api"`} {
		if !strings.Contains(body, want) {
			t.Errorf("document missing %s", want)
		}
	}
	if strings.Contains(body, "/history") {
		t.Error("history paths should be absent when the database sink is off")
	}
}

func TestNewSpecWithHistory(t *testing.T) {
	cfg := memoryConfig()
	cfg.Analyses.History = []string{config.SinkDatabase}

	spec := api.NewSpec(cfg)
	if _, ok := spec.Paths["/analyses/{id}/history"]; !ok {
		t.Error("history path missing with the database sink on")
	}
	if _, ok := spec.Components.Schemas["HistoryEntry"]; !ok {
		t.Error("HistoryEntry schema missing")
	}
}
