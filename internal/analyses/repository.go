package analyses

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JaimeStill/seedlab/internal/acceptance"
	"github.com/JaimeStill/seedlab/internal/replicates"
	"github.com/JaimeStill/seedlab/pkg/pagination"
)

type repo struct {
	store      Store
	history    Recorder
	metrics    *Metrics
	logger     *slog.Logger
	pagination pagination.Config
	defaults   Config
	now        func() time.Time
}

// New creates an analysis system implementing the System interface over store.
// history may be nil, in which case no history is recorded. defaults supplies
// the configuration used for fields a creation request leaves empty.
func New(
	store Store,
	history Recorder,
	metrics *Metrics,
	logger *slog.Logger,
	pagination pagination.Config,
	defaults Config,
) System {
	if defaults.ReplicatesPerBatch == 0 {
		defaults.ReplicatesPerBatch = DefaultReplicatesPerBatch
	}
	return &repo{
		store:      store,
		history:    history,
		metrics:    metrics,
		logger:     logger.With("system", "analyses"),
		pagination: pagination,
		defaults:   defaults,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (r *repo) Handler(maxBodySize int64) *Handler {
	return NewHandler(r, r.logger, r.pagination, maxBodySize)
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Analysis, error) {
	if err := cmd.Actor.Validate(); err != nil {
		return nil, err
	}

	if _, err := PolicyFor(cmd.Type); err != nil {
		return nil, err
	}

	lot := strings.TrimSpace(cmd.LotID)
	if lot == "" {
		return nil, fmt.Errorf("%w: lot id is required", ErrInvalidConfig)
	}

	cfg := cmd.Config
	if cfg.Texture == "" {
		cfg.Texture = r.defaults.Texture
	}
	if err := cfg.normalize(r.defaults.ReplicatesPerBatch); err != nil {
		return nil, err
	}

	now := r.now()
	a, err := r.store.Insert(ctx, Analysis{
		ID:         uuid.New(),
		Type:       cmd.Type,
		LotID:      lot,
		Status:     StatusRegistered,
		Config:     cfg,
		BatchCount: 1,
		StartedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return nil, fmt.Errorf("create analysis: %w", err)
	}

	r.logger.Info("analysis registered",
		"id", a.ID,
		"type", a.Type,
		"lot_id", a.LotID,
		"replicates_per_batch", a.Config.ReplicatesPerBatch,
	)

	if r.history != nil {
		if err := r.history.RecordCreation(ctx, a); err != nil {
			r.historyFailed(a, err)
		}
	}
	return &a, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Analysis, error) {
	return r.store.Find(ctx, id)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Analysis], error) {
	page.Normalize(r.pagination)
	return r.store.List(ctx, page, filters)
}

func (r *repo) Replicates(ctx context.Context, id uuid.UUID) ([]replicates.Replicate, error) {
	return r.store.Replicates(ctx, id)
}

func (r *repo) AddReplicate(ctx context.Context, id uuid.UUID, cmd ReplicateCommand) (*ReplicateResult, error) {
	if err := requirePositive(cmd.Value); err != nil {
		return nil, err
	}

	return r.edit(ctx, "add", id, cmd.Actor,
		func(st *State, p Policy, e acceptance.Engine) (acceptance.Outcome, error) {
			var out acceptance.Outcome
			var err error

			if p.Batched {
				out, err = e.Insert(st.Replicates, cmd.Value)
			} else {
				out, err = appendUnbatched(st, p, cmd.Value)
			}
			if err != nil {
				return out, err
			}

			Begin(&st.Analysis)
			return out, nil
		})
}

func (r *repo) UpdateReplicate(ctx context.Context, replicateID uuid.UUID, cmd ReplicateCommand) (*ReplicateResult, error) {
	if err := requirePositive(cmd.Value); err != nil {
		return nil, err
	}

	owner, err := r.store.Owner(ctx, replicateID)
	if err != nil {
		return nil, err
	}

	return r.edit(ctx, "update", owner, cmd.Actor,
		func(st *State, p Policy, e acceptance.Engine) (acceptance.Outcome, error) {
			if p.Batched {
				return e.Revise(st.Replicates, replicateID, cmd.Value)
			}
			rep, err := st.Replicates.Update(replicateID, cmd.Value)
			if err != nil {
				return acceptance.Outcome{}, err
			}
			return unbatchedOutcome(st, p, rep), nil
		})
}

func (r *repo) DeleteReplicate(ctx context.Context, replicateID uuid.UUID, actor Role) (*ReplicateResult, error) {
	owner, err := r.store.Owner(ctx, replicateID)
	if err != nil {
		return nil, err
	}

	return r.edit(ctx, "delete", owner, actor,
		func(st *State, p Policy, e acceptance.Engine) (acceptance.Outcome, error) {
			if p.Batched {
				return e.Remove(st.Replicates, replicateID)
			}
			rep, err := st.Replicates.Delete(replicateID)
			if err != nil {
				return acceptance.Outcome{}, err
			}
			return unbatchedOutcome(st, p, rep), nil
		})
}

func (r *repo) SetFinalRoundedValue(ctx context.Context, id uuid.UUID, cmd RoundedValueCommand) (*Analysis, error) {
	if cmd.Value.IsNegative() {
		return nil, fmt.Errorf("%w: rounded value %s", ErrInvalidValue, cmd.Value)
	}

	return r.transition(ctx, "rounded_value", id, func(st *State, p Policy) error {
		if err := Edit(&st.Analysis, cmd.Actor); err != nil {
			return err
		}
		if err := p.Ready(&st.Analysis, st.Replicates); err != nil {
			return err
		}
		st.Analysis.RoundedFinal = decimal.NewNullDecimal(cmd.Value)
		return nil
	})
}

func (r *repo) Finalize(ctx context.Context, id uuid.UUID, cmd TransitionCommand) (*Analysis, error) {
	return r.transition(ctx, "finalize", id, func(st *State, p Policy) error {
		complete := p.Complete(&st.Analysis, st.Replicates)
		return Finalize(&st.Analysis, cmd.Actor, complete, r.now())
	})
}

func (r *repo) Approve(ctx context.Context, id uuid.UUID, cmd TransitionCommand) (*Analysis, error) {
	return r.transition(ctx, "approve", id, func(st *State, p Policy) error {
		complete := p.Complete(&st.Analysis, st.Replicates)
		return Approve(&st.Analysis, cmd.Actor, complete)
	})
}

func (r *repo) MarkForRepeat(ctx context.Context, id uuid.UUID, cmd TransitionCommand) (*Analysis, error) {
	return r.transition(ctx, "repeat", id, func(st *State, _ Policy) error {
		return MarkForRepeat(&st.Analysis, cmd.Actor)
	})
}

func (r *repo) Deactivate(ctx context.Context, id uuid.UUID, cmd TransitionCommand) (*Analysis, error) {
	return r.transition(ctx, "deactivate", id, func(st *State, _ Policy) error {
		return Deactivate(&st.Analysis, cmd.Actor)
	})
}

func (r *repo) Statistics(ctx context.Context, id uuid.UUID) (*Statistics, error) {
	a, err := r.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	rs, err := r.store.Replicates(ctx, id)
	if err != nil {
		return nil, err
	}

	p, err := PolicyFor(a.Type)
	if err != nil {
		return nil, err
	}

	e, err := a.Engine()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	set := replicates.NewSet(id, rs)
	finalizable := p.Complete(a, set) == nil

	return &Statistics{
		AnalysisID:   a.ID,
		Mean:         a.Mean,
		StdDev:       a.StdDev,
		CV:           a.CV,
		DerivedRaw:   a.DerivedRaw,
		RoundedFinal: a.RoundedFinal,
		BatchCount:   a.BatchCount,
		Replicates:   set.CountTotal(),
		Threshold:    e.Threshold(),
		Status:       a.Status,
		CanFinalize:  finalizable,
	}, nil
}

type applyFunc func(st *State, p Policy, e acceptance.Engine) (acceptance.Outcome, error)

// edit runs a replicate mutation: it guards the status, applies the change,
// refreshes the aggregates and commits everything as one unit.
func (r *repo) edit(ctx context.Context, op string, id uuid.UUID, actor Role, apply applyFunc) (*ReplicateResult, error) {
	var out acceptance.Outcome
	var from Status

	a, err := r.store.Mutate(ctx, id, func(st *State) error {
		from = st.Analysis.Status

		p, err := PolicyFor(st.Analysis.Type)
		if err != nil {
			return err
		}

		e, err := st.Analysis.Engine()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}

		if err := Edit(&st.Analysis, actor); err != nil {
			return err
		}

		out, err = apply(st, p, e)
		if err != nil {
			return err
		}

		if err := refresh(st, p, e); err != nil {
			return err
		}

		st.Analysis.UpdatedAt = r.now()
		return nil
	})

	if err != nil {
		r.metrics.rejected(op)
		return nil, err
	}

	r.metrics.mutation(op, out.Evaluation, out.CeilingReached)
	r.metrics.transition(from, a.Status)

	r.logger.Info("replicate mutation committed",
		"operation", op,
		"analysis_id", a.ID,
		"replicate_id", out.Replicate.ID,
		"batch", out.Replicate.Batch,
		"batch_count", out.BatchCount,
		"status", a.Status,
	)

	if out.Evaluation.Complete {
		r.logger.Info("batch evaluated",
			"analysis_id", a.ID,
			"batch", out.Evaluation.Batch,
			"cv", out.Evaluation.Stats.CV,
			"accepted", out.Evaluation.Accepted,
		)
	}

	if out.CeilingReached {
		r.logger.Warn("replicate ceiling reached without an accepted batch",
			"analysis_id", a.ID,
			"batch_count", out.BatchCount,
		)
	}

	r.recordModification(ctx, a)

	result := &ReplicateResult{
		Replicate:      out.Replicate,
		AssignedBatch:  out.Replicate.Batch,
		Validity:       out.Replicate.Validity,
		Evaluation:     out.Evaluation,
		BatchCount:     out.BatchCount,
		Escalated:      out.Escalated,
		Complete:       out.Complete,
		CeilingReached: out.CeilingReached,
		Analysis:       a,
	}
	return result, nil
}

// transition runs a status change or single-field edit under the analysis lock.
func (r *repo) transition(ctx context.Context, op string, id uuid.UUID, fn func(st *State, p Policy) error) (*Analysis, error) {
	var from Status
	changed := false

	a, err := r.store.Mutate(ctx, id, func(st *State) error {
		from = st.Analysis.Status
		before := st.Analysis

		p, err := PolicyFor(st.Analysis.Type)
		if err != nil {
			return err
		}

		if err := fn(st, p); err != nil {
			return err
		}

		changed = st.Analysis.Status != before.Status ||
			!nullEqual(st.Analysis.RoundedFinal, before.RoundedFinal)
		if changed {
			st.Analysis.UpdatedAt = r.now()
		}
		return nil
	})

	if err != nil {
		r.metrics.rejected(op)
		return nil, err
	}

	r.metrics.transition(from, a.Status)

	if !changed {
		return &a, nil
	}

	r.logger.Info("analysis updated",
		"operation", op,
		"id", a.ID,
		"from", from,
		"status", a.Status,
	)

	r.recordModification(ctx, a)
	return &a, nil
}

func (r *repo) recordModification(ctx context.Context, a Analysis) {
	if r.history == nil {
		return
	}
	if err := r.history.RecordModification(ctx, a); err != nil {
		r.historyFailed(a, err)
	}
}

func (r *repo) historyFailed(a Analysis, err error) {
	r.metrics.historyFailed()
	r.logger.Warn("history record failed",
		"analysis_id", a.ID,
		"status", a.Status,
		"error", err,
	)
}

// refresh recomputes the aggregates stored on the analysis from its replicates.
// The rounded final value is reviewed by hand and left untouched.
func refresh(st *State, p Policy, e acceptance.Engine) error {
	if !p.Batched {
		st.Analysis.BatchCount = 1
		return nil
	}

	res, err := acceptance.Recompute(st.Replicates)
	if err != nil {
		return err
	}

	if res == nil {
		st.Analysis.Mean = decimal.NullDecimal{}
		st.Analysis.StdDev = decimal.NullDecimal{}
		st.Analysis.CV = decimal.NullDecimal{}
		st.Analysis.DerivedRaw = decimal.NullDecimal{}
	} else {
		st.Analysis.Mean = decimal.NewNullDecimal(res.Mean)
		st.Analysis.StdDev = decimal.NewNullDecimal(res.StdDev)
		st.Analysis.CV = decimal.NewNullDecimal(res.CV)
		st.Analysis.DerivedRaw = decimal.NewNullDecimal(res.Derived)
	}

	k, err := e.BatchCount(st.Replicates)
	if err != nil {
		return err
	}
	st.Analysis.BatchCount = k
	return nil
}

func appendUnbatched(st *State, p Policy, value decimal.Decimal) (acceptance.Outcome, error) {
	if st.Replicates.CountTotal() >= acceptance.MaxReplicates {
		return acceptance.Outcome{}, ErrCeilingReached
	}
	rep := st.Replicates.Append(value, 1)
	return unbatchedOutcome(st, p, rep), nil
}

func unbatchedOutcome(st *State, p Policy, rep replicates.Replicate) acceptance.Outcome {
	return acceptance.Outcome{
		Replicate:  rep,
		Evaluation: acceptance.Evaluation{Batch: 1},
		BatchCount: 1,
		Complete:   p.Ready(&st.Analysis, st.Replicates) == nil,
	}
}

func requirePositive(v decimal.Decimal) error {
	if !v.IsPositive() {
		return fmt.Errorf("%w: got %s", ErrInvalidValue, v)
	}
	return nil
}

func nullEqual(a, b decimal.NullDecimal) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Decimal.Equal(b.Decimal)
}
