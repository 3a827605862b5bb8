package analyses

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/seedlab/internal/replicates"
	"github.com/JaimeStill/seedlab/pkg/pagination"
)

// State is the mutable view of one analysis handed to a mutation.
type State struct {
	Analysis   Analysis
	Replicates *replicates.Set
}

// MutateFunc applies changes to a locked analysis. Returning an error
// discards every change made to the State.
type MutateFunc func(st *State) error

// Store persists analyses and their replicates. Mutate is the single-writer
// boundary for an analysis: concurrent calls for the same id are serialized
// and the changes made by fn are committed atomically.
type Store interface {
	Insert(ctx context.Context, a Analysis) (Analysis, error)
	Find(ctx context.Context, id uuid.UUID) (*Analysis, error)
	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Analysis], error)
	Replicates(ctx context.Context, id uuid.UUID) ([]replicates.Replicate, error)
	Owner(ctx context.Context, replicateID uuid.UUID) (uuid.UUID, error)
	Mutate(ctx context.Context, id uuid.UUID, fn MutateFunc) (Analysis, error)
}
