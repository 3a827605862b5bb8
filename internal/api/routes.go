package api

import (
	"fmt"
	"net/http"

	"github.com/JaimeStill/seedlab/internal/config"
	"github.com/JaimeStill/seedlab/pkg/openapi"
	"github.com/JaimeStill/seedlab/pkg/routes"
)

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	cfg *config.Config,
	runtime *Runtime,
) error {
	groups := []routes.Group{
		domain.Analyses.Handler(cfg.API.MaxBodySizeBytes()).Routes(),
	}

	if domain.History != nil {
		groups = append(groups, domain.History.Handler().Routes())
	}

	if runtime.Storage != nil {
		archive := newArchiveHandler(runtime.Storage, runtime.Logger, cfg.Storage.MaxListSize)
		groups = append(groups, archive.routes())
	}

	patterns := routes.Register(mux, groups...)
	runtime.Logger.Debug("routes registered", "count", len(patterns), "patterns", patterns)

	specBytes, err := openapi.MarshalJSON(NewSpec(cfg))
	if err != nil {
		return fmt.Errorf("openapi spec: %w", err)
	}
	mux.HandleFunc("GET /openapi.json", openapi.ServeSpec(specBytes))

	return nil
}
