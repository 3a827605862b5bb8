// Package history records post-commit snapshots of analysis changes.
// Entries are written to a Postgres journal, a blob archive, or both; a
// failed write never affects the analysis change that produced it.
package history

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/seedlab/internal/analyses"
)

// Kind identifies the change that produced a history entry.
type Kind string

const (
	KindCreation     Kind = "creation"
	KindModification Kind = "modification"
)

// Entry is one recorded snapshot of an analysis.
type Entry struct {
	ID         uuid.UUID       `json:"id"`
	AnalysisID uuid.UUID       `json:"analysis_id"`
	LotID      string          `json:"lot_id"`
	Kind       Kind            `json:"kind"`
	Status     analyses.Status `json:"status"`
	Snapshot   json.RawMessage `json:"snapshot"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// NewEntry captures a as a JSON snapshot.
func NewEntry(kind Kind, a analyses.Analysis, now time.Time) (Entry, error) {
	snapshot, err := json.Marshal(a)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal snapshot: %w", err)
	}

	return Entry{
		ID:         uuid.New(),
		AnalysisID: a.ID,
		LotID:      a.LotID,
		Kind:       kind,
		Status:     a.Status,
		Snapshot:   snapshot,
		RecordedAt: now.UTC(),
	}, nil
}

// Key returns the archive blob key for the entry, ordered by time within an analysis.
func (e Entry) Key() string {
	return fmt.Sprintf("%s/%s-%s.json",
		e.AnalysisID,
		e.RecordedAt.Format("20060102T150405.000000000Z"),
		e.Kind,
	)
}
