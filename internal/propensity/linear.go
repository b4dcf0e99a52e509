package propensity

import (
	"gocausal/domain/causal"
	"gocausal/domain/core"
)

// Linear is a fixed blend of the normalised covariates. It is a covariate
// similarity proxy, not a fitted probability.
type Linear struct {
	UnitsWeight    float64
	DurationWeight float64
}

// DefaultLinear weights volume and duration equally.
func DefaultLinear() Linear {
	return Linear{UnitsWeight: 0.5, DurationWeight: 0.5}
}

func (Linear) Name() string { return causal.ModelLinear }

// Fit ignores the labels; the blend has no parameters to learn.
func (l Linear) Fit(_ []causal.CovariateVector, _ map[core.AgentID]bool) (Scorer, error) {
	return l, nil
}

func (l Linear) Score(v causal.CovariateVector) float64 {
	return l.UnitsWeight*v.Units + l.DurationWeight*v.Duration
}
