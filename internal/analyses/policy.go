package analyses

import (
	"fmt"

	"github.com/JaimeStill/seedlab/internal/replicates"
)

// Policy holds the type-specific rules plugged into the shared lifecycle.
// Batched types place replicates through the acceptance engine. Ready
// reports whether the measurements alone would satisfy completion.
type Policy struct {
	Batched bool
	Ready   func(a *Analysis, s *replicates.Set) error
}

var policies = map[Type]Policy{
	TypeMassPerSample:  {Batched: true, Ready: acceptedBatchReady},
	TypePurity:         {Ready: countReady},
	TypeGermination:    {Ready: countReady},
	TypeViability:      {Ready: countReady},
	TypeOtherSeedCount: {Ready: countReady},
}

// PolicyFor returns the policy registered for t.
func PolicyFor(t Type) (Policy, error) {
	p, ok := policies[t]
	if !ok {
		return Policy{}, fmt.Errorf("%w: unknown analysis type %q", ErrInvalidConfig, t)
	}
	return p, nil
}

// Complete reports whether a may be finalized: the measurements are ready
// and a rounded final value has been recorded.
func (p Policy) Complete(a *Analysis, s *replicates.Set) error {
	if err := p.Ready(a, s); err != nil {
		return err
	}
	if !a.RoundedFinal.Valid {
		return fmt.Errorf("%w: rounded final value not set", ErrPrecondition)
	}
	return nil
}

func acceptedBatchReady(a *Analysis, s *replicates.Set) error {
	e, err := a.Engine()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	ok, err := e.Accepted(s)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: no accepted batch", ErrPrecondition)
	}
	return nil
}

func countReady(a *Analysis, s *replicates.Set) error {
	if s.CountTotal() < a.Config.ReplicatesPerBatch {
		return fmt.Errorf("%w: %d of %d replicates recorded",
			ErrPrecondition, s.CountTotal(), a.Config.ReplicatesPerBatch)
	}
	return nil
}
