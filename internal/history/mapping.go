package history

import (
	"net/url"

	"github.com/JaimeStill/seedlab/internal/analyses"
	"github.com/JaimeStill/seedlab/pkg/query"
	"github.com/JaimeStill/seedlab/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "analysis_history", "h").
	Project("id", "ID").
	Project("analysis_id", "AnalysisID").
	Project("kind", "Kind").
	Project("status", "Status").
	Project("snapshot", "Snapshot").
	Project("recorded_at", "RecordedAt").
	Join("public", "analyses", "a", "JOIN", "h.analysis_id = a.id").
	Project("lot_id", "LotID")

var defaultSort = query.SortField{
	Field:      "RecordedAt",
	Descending: true,
}

// Filters narrows history listings. Nil fields are ignored.
type Filters struct {
	Kind   *Kind            `json:"kind,omitempty"`
	Status *analyses.Status `json:"status,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	if f.Kind != nil {
		b.WhereEquals("Kind", string(*f.Kind))
	}
	if f.Status != nil {
		b.WhereEquals("Status", string(*f.Status))
	}
	return b
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if k := values.Get("kind"); k != "" {
		kind := Kind(k)
		f.Kind = &kind
	}
	if s := values.Get("status"); s != "" {
		status := analyses.Status(s)
		f.Status = &status
	}

	return f
}

func scanEntry(s repository.Scanner) (Entry, error) {
	var (
		e        Entry
		snapshot []byte
	)

	err := s.Scan(
		&e.ID,
		&e.AnalysisID,
		&e.Kind,
		&e.Status,
		&snapshot,
		&e.RecordedAt,
		&e.LotID,
	)
	e.Snapshot = snapshot
	return e, err
}
