package api

import (
	"github.com/JaimeStill/seedlab/internal/analyses"
	"github.com/JaimeStill/seedlab/internal/config"
	"github.com/JaimeStill/seedlab/internal/history"
	"github.com/JaimeStill/seedlab/pkg/openapi"
)

// NewSpec builds the OpenAPI document for the API module. Paths are relative
// to the module, which is advertised as the single server.
func NewSpec(cfg *config.Config) *openapi.Spec {
	spec := openapi.NewSpec(cfg.API.OpenAPI.Title, cfg.Version)
	spec.SetDescription(cfg.API.OpenAPI.Description)
	spec.AddServer(cfg.API.BasePath)

	spec.Components.AddSchemas(analyses.Schemas())
	spec.AddPaths("", analyses.Paths())

	if cfg.Analyses.HistorySink(config.SinkDatabase) {
		spec.Components.AddSchemas(history.Schemas())
		spec.AddPaths("", history.Paths())
	}

	return spec
}
