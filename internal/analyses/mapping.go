package analyses

import (
	"fmt"
	"net/url"
	"time"

	"github.com/JaimeStill/seedlab/internal/replicates"
	"github.com/JaimeStill/seedlab/pkg/query"
	"github.com/JaimeStill/seedlab/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "analyses", "a").
	Project("id", "ID").
	Project("analysis_type", "Type").
	Project("lot_id", "LotID").
	Project("status", "Status").
	Project("replicates_per_batch", "ReplicatesPerBatch").
	Project("texture", "Texture").
	Project("trash_compliant", "TrashCompliant").
	Project("mean", "Mean").
	Project("std_dev", "StdDev").
	Project("cv", "CV").
	Project("derived_raw", "DerivedRaw").
	Project("rounded_final", "RoundedFinal").
	Project("batch_count", "BatchCount").
	Project("started_at", "StartedAt").
	Project("finished_at", "FinishedAt").
	Project("updated_at", "UpdatedAt")

var replicateProjection = query.
	NewProjectionMap("public", "replicates", "r").
	Project("id", "ID").
	Project("analysis_id", "AnalysisID").
	Project("idx", "Index").
	Project("value", "Value").
	Project("batch", "Batch").
	Project("validity", "Validity")

var defaultSort = query.SortField{
	Field:      "StartedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for analysis queries.
// Nil fields are ignored. Type, Status and LotID match exactly; the started
// bounds select the half-open interval [StartedFrom, StartedTo).
type Filters struct {
	Type        *Type      `json:"type,omitempty"`
	Status      *Status    `json:"status,omitempty"`
	LotID       *string    `json:"lot_id,omitempty"`
	StartedFrom *time.Time `json:"started_from,omitempty"`
	StartedTo   *time.Time `json:"started_to,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Type", stringPtr(f.Type)).
		WhereEquals("Status", stringPtr(f.Status)).
		WhereEquals("LotID", f.LotID).
		WhereRange("StartedAt", f.StartedFrom, f.StartedTo)
}

// Matches reports whether a satisfies every set filter.
func (f Filters) Matches(a Analysis) bool {
	switch {
	case f.Type != nil && a.Type != *f.Type:
		return false
	case f.Status != nil && a.Status != *f.Status:
		return false
	case f.LotID != nil && a.LotID != *f.LotID:
		return false
	case f.StartedFrom != nil && a.StartedAt.Before(*f.StartedFrom):
		return false
	case f.StartedTo != nil && !a.StartedAt.Before(*f.StartedTo):
		return false
	}
	return true
}

// FiltersFromQuery extracts filter values from URL query parameters.
// started_from and started_to are RFC 3339 timestamps.
func FiltersFromQuery(values url.Values) (Filters, error) {
	var f Filters

	if t := values.Get("type"); t != "" {
		v := Type(t)
		f.Type = &v
	}

	if s := values.Get("status"); s != "" {
		v := Status(s)
		f.Status = &v
	}

	if l := values.Get("lot_id"); l != "" {
		f.LotID = &l
	}

	for _, b := range []struct {
		param string
		dst   **time.Time
	}{
		{"started_from", &f.StartedFrom},
		{"started_to", &f.StartedTo},
	} {
		v := values.Get(b.param)
		if v == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return Filters{}, fmt.Errorf("%s must be an RFC 3339 timestamp: %q", b.param, v)
		}
		*b.dst = &ts
	}

	return f, nil
}

func stringPtr[T ~string](v *T) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func scanAnalysis(s repository.Scanner) (Analysis, error) {
	var a Analysis
	err := s.Scan(
		&a.ID,
		&a.Type,
		&a.LotID,
		&a.Status,
		&a.Config.ReplicatesPerBatch,
		&a.Config.Texture,
		&a.Config.TrashCompliant,
		&a.Mean,
		&a.StdDev,
		&a.CV,
		&a.DerivedRaw,
		&a.RoundedFinal,
		&a.BatchCount,
		&a.StartedAt,
		&a.FinishedAt,
		&a.UpdatedAt,
	)
	return a, err
}

func scanReplicate(s repository.Scanner) (replicates.Replicate, error) {
	var r replicates.Replicate
	var validity string

	err := s.Scan(
		&r.ID,
		&r.AnalysisID,
		&r.Index,
		&r.Value,
		&r.Batch,
		&validity,
	)
	if err != nil {
		return r, err
	}

	r.Validity, err = replicates.ParseValidity(validity)
	return r, err
}
