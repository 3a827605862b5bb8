package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/seedlab/internal/analyses"
	"github.com/JaimeStill/seedlab/pkg/pagination"
	"github.com/JaimeStill/seedlab/pkg/query"
	"github.com/JaimeStill/seedlab/pkg/repository"
)

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
	now        func() time.Time
}

// New creates the Postgres-backed history journal.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "history"),
		pagination: pagination,
		now:        time.Now,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) RecordCreation(ctx context.Context, a analyses.Analysis) error {
	return r.record(ctx, KindCreation, a)
}

func (r *repo) RecordModification(ctx context.Context, a analyses.Analysis) error {
	return r.record(ctx, KindModification, a)
}

func (r *repo) Entries(
	ctx context.Context,
	analysisID uuid.UUID,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Entry], error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM analyses WHERE id = $1)",
		analysisID,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check analysis: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereEquals("AnalysisID", analysisID)

	filters.Apply(qb)

	result, err := repository.QueryPage(ctx, r.db, qb, page, scanEntry)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return result, nil
}

func (r *repo) record(ctx context.Context, kind Kind, a analyses.Analysis) error {
	e, err := NewEntry(kind, a, r.now())
	if err != nil {
		return err
	}

	q := `
		INSERT INTO analysis_history(id, analysis_id, kind, status, snapshot, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	err = repository.ExecExpectOne(ctx, r.db, q,
		e.ID,
		e.AnalysisID,
		string(e.Kind),
		string(e.Status),
		[]byte(e.Snapshot),
		e.RecordedAt,
	)
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Debug("history recorded", "analysis_id", e.AnalysisID, "kind", e.Kind)
	return nil
}
