// Package acceptance decides whether batches of replicate measurements agree
// closely enough to be accepted, and when a rejected batch may be repeated.
//
// A batch is complete once its raw replicate count reaches the per-batch
// target; only complete batches are evaluated. A batch is accepted when its
// coefficient of variation is at or below the threshold for the seed
// texture, otherwise every member is marked invalid and a further batch may
// be opened as long as the analysis stays within MaxReplicates.
package acceptance

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/JaimeStill/seedlab/internal/replicates"
	"github.com/JaimeStill/seedlab/internal/stats"
)

// MaxReplicates is the hard ceiling on replicates across all batches of one analysis.
const MaxReplicates = 16

var (
	// ErrCeilingReached indicates opening another batch would exceed MaxReplicates.
	ErrCeilingReached = errors.New("replicate ceiling reached")
	// ErrAlreadyAcceptable indicates an accepted result exists and no batch may be opened.
	ErrAlreadyAcceptable = errors.New("analysis already has an acceptable batch")
	// ErrInvalidTarget indicates a per-batch target outside 1..MaxReplicates.
	ErrInvalidTarget = errors.New("replicates per batch must be between 1 and 16")
)

var (
	normalThreshold  = decimal.RequireFromString("4.0")
	friableThreshold = decimal.RequireFromString("6.0")
)

// Engine applies the acceptance rules for one analysis configuration.
type Engine struct {
	Target  int
	Friable bool
}

// New validates the configuration and returns an Engine.
func New(target int, friable bool) (Engine, error) {
	if target < 1 || target > MaxReplicates {
		return Engine{}, fmt.Errorf("%w: %d", ErrInvalidTarget, target)
	}
	return Engine{Target: target, Friable: friable}, nil
}

// Threshold returns the maximum accepted coefficient of variation, in percent.
func (e Engine) Threshold() decimal.Decimal {
	if e.Friable {
		return friableThreshold
	}
	return normalThreshold
}

// Accepts reports whether cv satisfies the threshold. Ties are accepted.
func (e Engine) Accepts(cv decimal.Decimal) bool {
	return cv.LessThanOrEqual(e.Threshold())
}

// Evaluation is the outcome of checking a single batch.
type Evaluation struct {
	Batch    int           `json:"batch"`
	Complete bool          `json:"complete"`
	Accepted bool          `json:"accepted"`
	Stats    *stats.Result `json:"stats,omitempty"`
}

// Evaluate checks batch against the acceptance rules and marks its
// replicates. Incomplete batches are reset to unknown validity.
func (e Engine) Evaluate(s *replicates.Set, batch int) (Evaluation, error) {
	ev := Evaluation{Batch: batch}

	if s.CountInBatch(batch) < e.Target {
		s.Mark(batch, replicates.Unknown)
		return ev, nil
	}

	r, err := stats.Compute(replicates.Values(s.Batch(batch)))
	if err != nil {
		return ev, fmt.Errorf("evaluate batch %d: %w", batch, err)
	}

	ev.Complete = true
	ev.Stats = &r
	ev.Accepted = e.Accepts(r.CV)

	if ev.Accepted {
		s.Mark(batch, replicates.Valid)
	} else {
		s.Mark(batch, replicates.Invalid)
	}

	return ev, nil
}

// BatchCount returns the number of open batches. It is derived from the
// replicate set: the highest batch holding a replicate, plus one when every
// batch is complete, no acceptable result exists and the ceiling leaves room
// for another full batch. An empty set has batch 1 open.
func (e Engine) BatchCount(s *replicates.Set) (int, error) {
	m := s.MaxBatch()
	if m == 0 {
		return 1, nil
	}

	for b := 1; b <= m; b++ {
		if s.CountInBatch(b) < e.Target {
			return m, nil
		}
	}

	ok, err := e.acceptable(s)
	if err != nil {
		return 0, err
	}
	if ok || !e.roomForBatch(s) {
		return m, nil
	}
	return m + 1, nil
}

// Place returns the batch a new replicate belongs to: the lowest open batch
// still short of its target. When every batch is full it fails with
// ErrAlreadyAcceptable if the valid replicates already meet the threshold,
// or ErrCeilingReached if another batch would cross MaxReplicates.
func (e Engine) Place(s *replicates.Set) (int, error) {
	if s.CountTotal() >= MaxReplicates {
		return 0, ErrCeilingReached
	}

	k, err := e.BatchCount(s)
	if err != nil {
		return 0, err
	}

	for b := 1; b <= k; b++ {
		if s.CountInBatch(b) < e.Target {
			return b, nil
		}
	}

	ok, err := e.acceptable(s)
	if err != nil {
		return 0, err
	}
	if ok {
		return 0, ErrAlreadyAcceptable
	}
	return 0, ErrCeilingReached
}

// Accepted reports whether any open batch has reached its target with every
// member valid. Earlier invalid batches do not matter.
func (e Engine) Accepted(s *replicates.Set) (bool, error) {
	k, err := e.BatchCount(s)
	if err != nil {
		return false, err
	}
	for b := 1; b <= k; b++ {
		if s.CountValid(b) >= e.Target {
			return true, nil
		}
	}
	return false, nil
}

// Blocked reports whether the analysis can no longer reach an accepted
// batch: every batch is complete, none is accepted and the ceiling leaves no
// room for another.
func (e Engine) Blocked(s *replicates.Set) (bool, error) {
	if s.CountTotal() == 0 {
		return false, nil
	}
	accepted, err := e.Accepted(s)
	if err != nil || accepted {
		return false, err
	}
	_, err = e.Place(s)
	switch {
	case err == nil, errors.Is(err, ErrAlreadyAcceptable):
		return false, nil
	case errors.Is(err, ErrCeilingReached):
		return true, nil
	}
	return false, err
}

// Outcome summarizes the effect of one replicate mutation.
type Outcome struct {
	Replicate      replicates.Replicate `json:"replicate"`
	Evaluation     Evaluation           `json:"evaluation"`
	BatchCount     int                  `json:"batch_count"`
	Escalated      bool                 `json:"escalated"`
	Complete       bool                 `json:"complete"`
	CeilingReached bool                 `json:"ceiling_reached"`
}

// Insert places value into the current batch, evaluates the batch once it
// reaches its target, and reports the resulting state. Nothing is appended
// when placement fails.
func (e Engine) Insert(s *replicates.Set, value decimal.Decimal) (Outcome, error) {
	before, err := e.BatchCount(s)
	if err != nil {
		return Outcome{}, err
	}

	batch, err := e.Place(s)
	if err != nil {
		return Outcome{}, err
	}

	r := s.Append(value, batch)
	return e.settle(s, r.ID, batch, before)
}

// Revise changes the value of replicate id and re-evaluates its batch.
func (e Engine) Revise(s *replicates.Set, id uuid.UUID, value decimal.Decimal) (Outcome, error) {
	before, err := e.BatchCount(s)
	if err != nil {
		return Outcome{}, err
	}

	r, err := s.Update(id, value)
	if err != nil {
		return Outcome{}, err
	}
	return e.settle(s, r.ID, r.Batch, before)
}

// Remove deletes replicate id and re-evaluates its batch.
func (e Engine) Remove(s *replicates.Set, id uuid.UUID) (Outcome, error) {
	before, err := e.BatchCount(s)
	if err != nil {
		return Outcome{}, err
	}

	r, err := s.Delete(id)
	if err != nil {
		return Outcome{}, err
	}

	out, err := e.settle(s, uuid.Nil, r.Batch, before)
	out.Replicate = r
	return out, err
}

func (e Engine) settle(s *replicates.Set, id uuid.UUID, batch, before int) (Outcome, error) {
	ev, err := e.Evaluate(s, batch)
	if err != nil {
		return Outcome{}, err
	}

	after, err := e.BatchCount(s)
	if err != nil {
		return Outcome{}, err
	}

	complete, err := e.Accepted(s)
	if err != nil {
		return Outcome{}, err
	}

	blocked, err := e.Blocked(s)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{
		Evaluation:     ev,
		BatchCount:     after,
		Escalated:      after > before,
		Complete:       complete,
		CeilingReached: blocked,
	}
	if r, ok := s.Get(id); ok {
		out.Replicate = r
	}
	return out, nil
}

// acceptable reports whether the replicates currently marked valid meet the threshold.
func (e Engine) acceptable(s *replicates.Set) (bool, error) {
	valid := s.ValidValues()
	if len(valid) == 0 {
		return false, nil
	}
	r, err := stats.Compute(valid)
	if err != nil {
		return false, err
	}
	return e.Accepts(r.CV), nil
}

func (e Engine) roomForBatch(s *replicates.Set) bool {
	return s.CountTotal()+e.Target <= MaxReplicates
}
