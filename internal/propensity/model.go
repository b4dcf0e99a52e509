// Package propensity turns covariate vectors into propensity scores.
//
// A score is only comparable with scores fitted on the same population: the
// covariates are normalised by population maxima, so every run refits.
package propensity

import (
	"fmt"
	"math"

	"gocausal/domain/causal"
	"gocausal/domain/core"
)

// Scorer maps a covariate vector to a propensity score.
type Scorer interface {
	Score(v causal.CovariateVector) float64
}

// Model fits a Scorer to one population. Models that do not learn from the
// treatment labels may ignore them.
type Model interface {
	Name() string
	Fit(vectors []causal.CovariateVector, treated map[core.AgentID]bool) (Scorer, error)
}

// New returns the model registered under name.
func New(name string) (Model, error) {
	switch name {
	case causal.ModelLinear, "":
		return DefaultLinear(), nil
	case causal.ModelLogistic:
		return DefaultLogistic(), nil
	}
	return nil, fmt.Errorf("%w: unknown propensity model %q", core.ErrConfiguration, name)
}

// ScoreAll scores every vector, clamping to [0,1], and keeps input order.
func ScoreAll(s Scorer, vectors []causal.CovariateVector) []causal.PropensityScore {
	scores := make([]causal.PropensityScore, len(vectors))
	for i, v := range vectors {
		scores[i] = causal.PropensityScore{AgentID: v.AgentID, Score: clamp01(s.Score(v))}
	}
	return scores
}

// Split separates scores into treated and control groups using the label set.
func Split(scores []causal.PropensityScore, treated map[core.AgentID]bool) (t, c []causal.PropensityScore) {
	for _, s := range scores {
		if treated[s.AgentID] {
			t = append(t, s)
		} else {
			c = append(c, s)
		}
	}
	return t, c
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
