package replicates

import "github.com/google/uuid"

// Changes describes how a replicate set differs from a previous snapshot.
// Stores apply it to persist a mutation.
type Changes struct {
	Inserted []Replicate
	Updated  []Replicate
	Deleted  []uuid.UUID
}

// Empty reports whether there is nothing to persist.
func (c Changes) Empty() bool {
	return len(c.Inserted) == 0 && len(c.Updated) == 0 && len(c.Deleted) == 0
}

// Diff compares before with the current contents of s.
func (s *Set) Diff(before []Replicate) Changes {
	prev := make(map[uuid.UUID]Replicate, len(before))
	for _, r := range before {
		prev[r.ID] = r
	}

	var c Changes
	for _, r := range s.items {
		old, ok := prev[r.ID]
		if !ok {
			c.Inserted = append(c.Inserted, r)
			continue
		}
		delete(prev, r.ID)
		if !old.Value.Equal(r.Value) || old.Validity != r.Validity {
			c.Updated = append(c.Updated, r)
		}
	}

	for _, r := range before {
		if _, gone := prev[r.ID]; gone {
			c.Deleted = append(c.Deleted, r.ID)
		}
	}

	return c
}
