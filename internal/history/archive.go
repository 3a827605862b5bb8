package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/JaimeStill/seedlab/internal/analyses"
	"github.com/JaimeStill/seedlab/pkg/storage"
)

type archive struct {
	store  storage.System
	logger *slog.Logger
	now    func() time.Time
}

// NewArchive returns a Recorder that writes each entry as a JSON blob
// keyed by analysis id and timestamp.
func NewArchive(store storage.System, logger *slog.Logger) analyses.Recorder {
	return &archive{
		store:  store,
		logger: logger.With("system", "history-archive"),
		now:    time.Now,
	}
}

func (r *archive) RecordCreation(ctx context.Context, a analyses.Analysis) error {
	return r.record(ctx, KindCreation, a)
}

func (r *archive) RecordModification(ctx context.Context, a analyses.Analysis) error {
	return r.record(ctx, KindModification, a)
}

func (r *archive) record(ctx context.Context, kind Kind, a analyses.Analysis) error {
	e, err := NewEntry(kind, a, r.now())
	if err != nil {
		return err
	}

	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	key := e.Key()
	if err := r.store.Upload(ctx, key, bytes.NewReader(body), "application/json"); err != nil {
		return fmt.Errorf("archive entry: %w", err)
	}

	r.logger.Debug("history archived", "key", key)
	return nil
}
