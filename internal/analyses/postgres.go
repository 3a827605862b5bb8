package analyses

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/JaimeStill/seedlab/internal/replicates"
	"github.com/JaimeStill/seedlab/pkg/pagination"
	"github.com/JaimeStill/seedlab/pkg/query"
	"github.com/JaimeStill/seedlab/pkg/repository"
)

const returning = `
		RETURNING id, analysis_type, lot_id, status, replicates_per_batch, texture,
				  trash_compliant, mean, std_dev, cv, derived_raw, rounded_final,
				  batch_count, started_at, finished_at, updated_at`

type postgresStore struct {
	db *sql.DB
}

// NewPostgresStore returns a Store backed by the analyses and replicates tables.
// Mutate holds a row lock on the analysis for the life of its transaction.
func NewPostgresStore(db *sql.DB) Store {
	return &postgresStore{db: db}
}

func (p *postgresStore) Insert(ctx context.Context, a Analysis) (Analysis, error) {
	q := `
		INSERT INTO analyses(
			id, analysis_type, lot_id, status, replicates_per_batch, texture,
			trash_compliant, batch_count, started_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)` + returning

	args := []any{
		a.ID,
		string(a.Type),
		a.LotID,
		string(a.Status),
		a.Config.ReplicatesPerBatch,
		string(a.Config.Texture),
		a.Config.TrashCompliant,
		a.BatchCount,
		a.StartedAt,
		a.UpdatedAt,
	}

	created, err := repository.QueryOne(ctx, p.db, q, args, scanAnalysis)
	if err != nil {
		return Analysis{}, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return created, nil
}

func (p *postgresStore) Find(ctx context.Context, id uuid.UUID) (*Analysis, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	a, err := repository.QueryOne(ctx, p.db, q, args, scanAnalysis)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &a, nil
}

func (p *postgresStore) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Analysis], error) {
	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "LotID")

	filters.Apply(qb)

	result, err := repository.QueryPage(ctx, p.db, qb, page, scanAnalysis)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	return result, nil
}

func (p *postgresStore) Replicates(ctx context.Context, id uuid.UUID) ([]replicates.Replicate, error) {
	if _, err := p.Find(ctx, id); err != nil {
		return nil, err
	}
	return loadReplicates(ctx, p.db, id)
}

func (p *postgresStore) Owner(ctx context.Context, replicateID uuid.UUID) (uuid.UUID, error) {
	var owner uuid.UUID
	err := p.db.QueryRowContext(ctx,
		"SELECT analysis_id FROM replicates WHERE id = $1",
		replicateID,
	).Scan(&owner)
	if err != nil {
		return uuid.Nil, repository.MapError(err, ErrReplicateNotFound, ErrDuplicate)
	}
	return owner, nil
}

func (p *postgresStore) Mutate(ctx context.Context, id uuid.UUID, fn MutateFunc) (Analysis, error) {
	return repository.WithTx(ctx, p.db, func(tx *sql.Tx) (Analysis, error) {
		q, args := query.NewBuilder(projection).BuildSingleForUpdate("ID", id)

		a, err := repository.QueryOne(ctx, tx, q, args, scanAnalysis)
		if err != nil {
			return Analysis{}, repository.MapError(err, ErrNotFound, ErrDuplicate)
		}

		existing, err := loadReplicates(ctx, tx, id)
		if err != nil {
			return Analysis{}, err
		}

		st := &State{
			Analysis:   a,
			Replicates: replicates.NewSet(id, existing),
		}

		if err := fn(st); err != nil {
			return Analysis{}, err
		}

		if err := applyChanges(ctx, tx, st.Replicates.Diff(existing)); err != nil {
			return Analysis{}, err
		}

		updated, err := saveAnalysis(ctx, tx, st.Analysis)
		if err != nil {
			return Analysis{}, repository.MapError(err, ErrNotFound, ErrDuplicate)
		}
		return updated, nil
	})
}

func loadReplicates(ctx context.Context, q repository.Querier, id uuid.UUID) ([]replicates.Replicate, error) {
	stmt, args := query.
		NewBuilder(replicateProjection, query.SortField{Field: "Index"}).
		WhereEquals("AnalysisID", id).
		Build()

	rs, err := repository.QueryMany(ctx, q, stmt, args, scanReplicate)
	if err != nil {
		return nil, fmt.Errorf("query replicates: %w", err)
	}
	return rs, nil
}

func applyChanges(ctx context.Context, tx *sql.Tx, c replicates.Changes) error {
	for _, id := range c.Deleted {
		if err := repository.ExecExpectOne(ctx, tx,
			"DELETE FROM replicates WHERE id = $1",
			id,
		); err != nil {
			return fmt.Errorf("delete replicate %s: %w", id, err)
		}
	}

	for _, r := range c.Updated {
		if err := repository.ExecExpectOne(ctx, tx,
			"UPDATE replicates SET value = $1, validity = $2 WHERE id = $3",
			r.Value, r.Validity.String(), r.ID,
		); err != nil {
			return fmt.Errorf("update replicate %s: %w", r.ID, err)
		}
	}

	for _, r := range c.Inserted {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO replicates(id, analysis_id, idx, value, batch, validity)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			r.ID, r.AnalysisID, r.Index, r.Value, r.Batch, r.Validity.String(),
		); err != nil {
			return fmt.Errorf("insert replicate %s: %w", r.ID, err)
		}
	}

	return nil
}

func saveAnalysis(ctx context.Context, tx *sql.Tx, a Analysis) (Analysis, error) {
	q := `
		UPDATE analyses
		SET status = $1, mean = $2, std_dev = $3, cv = $4, derived_raw = $5,
			rounded_final = $6, batch_count = $7, finished_at = $8, updated_at = $9
		WHERE id = $10` + returning

	args := []any{
		string(a.Status),
		a.Mean,
		a.StdDev,
		a.CV,
		a.DerivedRaw,
		a.RoundedFinal,
		a.BatchCount,
		a.FinishedAt,
		a.UpdatedAt,
		a.ID,
	}

	return repository.QueryOne(ctx, tx, q, args, scanAnalysis)
}
