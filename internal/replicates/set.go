package replicates

import (
	"errors"
	"slices"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrNotFound indicates a replicate id is not part of the set.
var ErrNotFound = errors.New("replicate not found")

// Set is the replicate collection of a single analysis. It is a plain value
// container: callers serialize access per analysis.
type Set struct {
	analysisID uuid.UUID
	items      []Replicate
}

// NewSet creates a Set for analysisID seeded with existing replicates.
// The input slice is copied.
func NewSet(analysisID uuid.UUID, existing []Replicate) *Set {
	items := slices.Clone(existing)
	slices.SortFunc(items, func(a, b Replicate) int { return a.Index - b.Index })
	return &Set{analysisID: analysisID, items: items}
}

// AnalysisID returns the owning analysis.
func (s *Set) AnalysisID() uuid.UUID {
	return s.analysisID
}

// Append adds a new replicate to batch with the next free index.
func (s *Set) Append(value decimal.Decimal, batch int) Replicate {
	r := Replicate{
		ID:         uuid.New(),
		AnalysisID: s.analysisID,
		Index:      s.nextIndex(),
		Value:      value,
		Batch:      batch,
		Validity:   Unknown,
	}
	s.items = append(s.items, r)
	return r
}

// Update replaces the value of the replicate with id. The batch is kept.
func (s *Set) Update(id uuid.UUID, value decimal.Decimal) (Replicate, error) {
	i := s.position(id)
	if i < 0 {
		return Replicate{}, ErrNotFound
	}
	s.items[i].Value = value
	return s.items[i], nil
}

// Delete removes the replicate with id and returns it.
func (s *Set) Delete(id uuid.UUID) (Replicate, error) {
	i := s.position(id)
	if i < 0 {
		return Replicate{}, ErrNotFound
	}
	r := s.items[i]
	s.items = slices.Delete(s.items, i, i+1)
	return r, nil
}

// Get returns the replicate with id.
func (s *Set) Get(id uuid.UUID) (Replicate, bool) {
	i := s.position(id)
	if i < 0 {
		return Replicate{}, false
	}
	return s.items[i], true
}

// All returns a copy of every replicate ordered by index.
func (s *Set) All() []Replicate {
	return slices.Clone(s.items)
}

// Batch returns a copy of the replicates in batch ordered by index.
func (s *Set) Batch(batch int) []Replicate {
	var out []Replicate
	for _, r := range s.items {
		if r.Batch == batch {
			out = append(out, r)
		}
	}
	return out
}

// CountTotal returns the number of replicates across all batches.
func (s *Set) CountTotal() int {
	return len(s.items)
}

// CountInBatch returns the raw number of replicates in batch, regardless of validity.
func (s *Set) CountInBatch(batch int) int {
	n := 0
	for _, r := range s.items {
		if r.Batch == batch {
			n++
		}
	}
	return n
}

// CountValid returns the number of replicates in batch marked valid.
func (s *Set) CountValid(batch int) int {
	n := 0
	for _, r := range s.items {
		if r.Batch == batch && r.Validity == Valid {
			n++
		}
	}
	return n
}

// MaxBatch returns the highest batch number holding a replicate, or 0.
func (s *Set) MaxBatch() int {
	m := 0
	for _, r := range s.items {
		m = max(m, r.Batch)
	}
	return m
}

// Mark sets the validity of every replicate in batch.
func (s *Set) Mark(batch int, v Validity) {
	for i := range s.items {
		if s.items[i].Batch == batch {
			s.items[i].Validity = v
		}
	}
}

// Values returns the measured values of rs in order.
func Values(rs []Replicate) []decimal.Decimal {
	out := make([]decimal.Decimal, len(rs))
	for i, r := range rs {
		out[i] = r.Value
	}
	return out
}

// ValidValues returns the values of every replicate marked valid.
func (s *Set) ValidValues() []decimal.Decimal {
	var out []decimal.Decimal
	for _, r := range s.items {
		if r.Validity == Valid {
			out = append(out, r.Value)
		}
	}
	return out
}

func (s *Set) nextIndex() int {
	next := 1
	for _, r := range s.items {
		if r.Index >= next {
			next = r.Index + 1
		}
	}
	return next
}

func (s *Set) position(id uuid.UUID) int {
	return slices.IndexFunc(s.items, func(r Replicate) bool { return r.ID == id })
}
