package history

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/seedlab/internal/analyses"
	"github.com/JaimeStill/seedlab/pkg/pagination"
)

// System is the queryable history journal. It records entries as an
// analyses.Recorder and lists them per analysis.
type System interface {
	analyses.Recorder

	Handler() *Handler

	Entries(
		ctx context.Context,
		analysisID uuid.UUID,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Entry], error)
}
