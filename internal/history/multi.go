package history

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/seedlab/internal/analyses"
)

type multi []analyses.Recorder

// Multi fans each event out to every recorder concurrently. Every recorder
// is attempted; their failures are joined into a single error.
func Multi(recorders ...analyses.Recorder) analyses.Recorder {
	return multi(recorders)
}

func (m multi) RecordCreation(ctx context.Context, a analyses.Analysis) error {
	return m.each(func(r analyses.Recorder) error {
		return r.RecordCreation(ctx, a)
	})
}

func (m multi) RecordModification(ctx context.Context, a analyses.Analysis) error {
	return m.each(func(r analyses.Recorder) error {
		return r.RecordModification(ctx, a)
	})
}

func (m multi) each(fn func(analyses.Recorder) error) error {
	errs := make([]error, len(m))

	var g errgroup.Group
	for i, r := range m {
		g.Go(func() error {
			errs[i] = fn(r)
			return errs[i]
		})
	}

	if err := g.Wait(); err != nil {
		return errors.Join(errs...)
	}
	return nil
}
