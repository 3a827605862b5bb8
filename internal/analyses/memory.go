package analyses

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/JaimeStill/seedlab/internal/replicates"
	"github.com/JaimeStill/seedlab/pkg/pagination"
)

type memoryStore struct {
	mu         sync.RWMutex
	analyses   map[uuid.UUID]Analysis
	replicates map[uuid.UUID][]replicates.Replicate
	owners     map[uuid.UUID]uuid.UUID

	locksMu sync.Mutex
	locks   map[uuid.UUID]*keyedLock
}

// keyedLock is dropped from the lock table once no caller holds or awaits it.
type keyedLock struct {
	mu   sync.Mutex
	refs int
}

// NewMemoryStore returns a Store that keeps analyses in process memory.
// Mutations of one analysis are serialized by a per-analysis lock and work
// on a copy that replaces the stored state only when the mutation succeeds.
func NewMemoryStore() Store {
	return &memoryStore{
		analyses:   make(map[uuid.UUID]Analysis),
		replicates: make(map[uuid.UUID][]replicates.Replicate),
		owners:     make(map[uuid.UUID]uuid.UUID),
		locks:      make(map[uuid.UUID]*keyedLock),
	}
}

func (m *memoryStore) Insert(ctx context.Context, a Analysis) (Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.analyses[a.ID]; ok {
		return Analysis{}, ErrDuplicate
	}
	m.analyses[a.ID] = a
	return a, nil
}

func (m *memoryStore) Find(ctx context.Context, id uuid.UUID) (*Analysis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.analyses[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (m *memoryStore) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Analysis], error) {
	m.mu.RLock()
	matched := make([]Analysis, 0, len(m.analyses))
	for _, a := range m.analyses {
		if !filters.Matches(a) {
			continue
		}
		if page.Search != nil && !strings.Contains(strings.ToLower(a.LotID), strings.ToLower(*page.Search)) {
			continue
		}
		matched = append(matched, a)
	}
	m.mu.RUnlock()

	slices.SortFunc(matched, func(a, b Analysis) int {
		if c := b.StartedAt.Compare(a.StartedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})

	start := min(page.Offset(), len(matched))
	end := min(start+page.PageSize, len(matched))

	result := pagination.NewPageResult(matched[start:end], len(matched), page.Page, page.PageSize)
	return &result, nil
}

func (m *memoryStore) Replicates(ctx context.Context, id uuid.UUID) ([]replicates.Replicate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.analyses[id]; !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(m.replicates[id]), nil
}

func (m *memoryStore) Owner(ctx context.Context, replicateID uuid.UUID) (uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	owner, ok := m.owners[replicateID]
	if !ok {
		return uuid.Nil, ErrReplicateNotFound
	}
	return owner, nil
}

func (m *memoryStore) Mutate(ctx context.Context, id uuid.UUID, fn MutateFunc) (Analysis, error) {
	unlock := m.lock(id)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}

	m.mu.RLock()
	a, ok := m.analyses[id]
	existing := slices.Clone(m.replicates[id])
	m.mu.RUnlock()

	if !ok {
		return Analysis{}, ErrNotFound
	}

	st := &State{
		Analysis:   a,
		Replicates: replicates.NewSet(id, existing),
	}

	if err := fn(st); err != nil {
		return Analysis{}, err
	}

	changes := st.Replicates.Diff(existing)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.analyses[id] = st.Analysis
	m.replicates[id] = st.Replicates.All()
	for _, r := range changes.Inserted {
		m.owners[r.ID] = id
	}
	for _, rid := range changes.Deleted {
		delete(m.owners, rid)
	}

	return st.Analysis, nil
}

func (m *memoryStore) lock(id uuid.UUID) func() {
	m.locksMu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &keyedLock{}
		m.locks[id] = l
	}
	l.refs++
	m.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		m.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, id)
		}
		m.locksMu.Unlock()
	}
}
