package acceptance

import (
	"github.com/JaimeStill/seedlab/internal/replicates"
	"github.com/JaimeStill/seedlab/internal/stats"
)

// Recompute returns the statistics over every replicate in s regardless of
// batch or validity. It returns nil when s is empty.
func Recompute(s *replicates.Set) (*stats.Result, error) {
	if s.CountTotal() == 0 {
		return nil, nil
	}
	r, err := stats.Compute(replicates.Values(s.All()))
	if err != nil {
		return nil, err
	}
	return &r, nil
}
