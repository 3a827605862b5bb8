package analyses

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/seedlab/internal/replicates"
	"github.com/JaimeStill/seedlab/pkg/pagination"
)

// System defines the public contract for analysis domain operations.
type System interface {
	Handler(maxBodySize int64) *Handler

	Create(ctx context.Context, cmd CreateCommand) (*Analysis, error)
	Find(ctx context.Context, id uuid.UUID) (*Analysis, error)

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Analysis], error)

	Replicates(ctx context.Context, id uuid.UUID) ([]replicates.Replicate, error)
	AddReplicate(ctx context.Context, id uuid.UUID, cmd ReplicateCommand) (*ReplicateResult, error)
	UpdateReplicate(ctx context.Context, replicateID uuid.UUID, cmd ReplicateCommand) (*ReplicateResult, error)
	DeleteReplicate(ctx context.Context, replicateID uuid.UUID, actor Role) (*ReplicateResult, error)

	SetFinalRoundedValue(ctx context.Context, id uuid.UUID, cmd RoundedValueCommand) (*Analysis, error)
	Finalize(ctx context.Context, id uuid.UUID, cmd TransitionCommand) (*Analysis, error)
	Approve(ctx context.Context, id uuid.UUID, cmd TransitionCommand) (*Analysis, error)
	MarkForRepeat(ctx context.Context, id uuid.UUID, cmd TransitionCommand) (*Analysis, error)
	Deactivate(ctx context.Context, id uuid.UUID, cmd TransitionCommand) (*Analysis, error)

	Statistics(ctx context.Context, id uuid.UUID) (*Statistics, error)
}

// Recorder receives history events after an analysis change is committed.
type Recorder interface {
	RecordCreation(ctx context.Context, a Analysis) error
	RecordModification(ctx context.Context, a Analysis) error
}
