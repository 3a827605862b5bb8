// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"net/http"

	"github.com/JaimeStill/seedlab/internal/config"
	"github.com/JaimeStill/seedlab/internal/infrastructure"
	"github.com/JaimeStill/seedlab/pkg/formatting"
	"github.com/JaimeStill/seedlab/pkg/middleware"
	"github.com/JaimeStill/seedlab/pkg/module"
)

// NewModule creates the API module with all domain handlers and middleware.
func NewModule(cfg *config.Config, infra *infrastructure.Infrastructure) (*module.Module, error) {
	runtime := NewRuntime(cfg, infra)
	domain := NewDomain(runtime)

	mux := http.NewServeMux()
	if err := registerRoutes(mux, domain, cfg, runtime); err != nil {
		return nil, err
	}

	m := module.New(cfg.API.BasePath, mux)
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(middleware.Metrics(runtime.Metrics))
	m.Use(middleware.Logger(runtime.Logger))

	runtime.Logger.Info("api module ready",
		"base_path", cfg.API.BasePath,
		"store", cfg.Analyses.Store,
		"history", cfg.Analyses.History,
		"max_body_size", formatting.FormatBytes(cfg.API.MaxBodySizeBytes(), 0),
	)

	return m, nil
}
