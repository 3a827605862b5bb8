package api

import (
	"github.com/JaimeStill/seedlab/internal/analyses"
	"github.com/JaimeStill/seedlab/internal/config"
	"github.com/JaimeStill/seedlab/internal/history"
)

// Domain holds all domain systems that comprise the API. History is nil
// unless the database history sink is enabled.
type Domain struct {
	Analyses analyses.System
	History  history.System
}

// NewDomain creates all domain systems from the API runtime.
func NewDomain(runtime *Runtime) *Domain {
	var journal history.System
	var recorders []analyses.Recorder

	if runtime.Analyses.HistorySink(config.SinkDatabase) {
		journal = history.New(
			runtime.Database.Connection(),
			runtime.Logger,
			runtime.Pagination,
		)
		recorders = append(recorders, journal)
	}

	if runtime.Analyses.HistorySink(config.SinkArchive) {
		recorders = append(recorders, history.NewArchive(runtime.Storage, runtime.Logger))
	}

	var recorder analyses.Recorder
	switch len(recorders) {
	case 0:
	case 1:
		recorder = recorders[0]
	default:
		recorder = history.Multi(recorders...)
	}

	analysesSystem := analyses.New(
		newStore(runtime),
		recorder,
		analyses.NewMetrics(runtime.Metrics),
		runtime.Logger,
		runtime.Pagination,
		analyses.Config{
			ReplicatesPerBatch: runtime.Analyses.ReplicatesPerBatch,
			Texture:            analyses.Texture(runtime.Analyses.Texture),
		},
	)

	return &Domain{
		Analyses: analysesSystem,
		History:  journal,
	}
}

func newStore(runtime *Runtime) analyses.Store {
	if runtime.Analyses.Store == config.StoreMemory {
		runtime.Logger.Warn("using in-memory analysis store; data is lost on restart")
		return analyses.NewMemoryStore()
	}
	return analyses.NewPostgresStore(runtime.Database.Connection())
}
