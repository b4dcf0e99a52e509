// Package matching pairs treated agents with control agents by propensity score.
//
// Every matcher matches without replacement, rejects pairs whose distance is not
// strictly below the caliper, and is deterministic: treated agents are processed in
// descending score order with ties broken by ascending agent id, and candidate
// controls are scanned in ascending agent id order.
package matching

import (
	"fmt"
	"math"
	"sort"

	"gocausal/domain/causal"
	"gocausal/domain/core"
)

// Matcher produces matched pairs for one population.
type Matcher interface {
	Name() string
	Match(treated, control []causal.PropensityScore, caliper float64) []causal.MatchedPair
}

// New returns the matcher registered under name.
func New(name string) (Matcher, error) {
	switch name {
	case causal.MatcherGreedy, "":
		return Greedy{}, nil
	case causal.MatcherOptimal:
		return Optimal{}, nil
	}
	return nil, fmt.Errorf("%w: unknown matcher %q", core.ErrConfiguration, name)
}

// orderTreated sorts by descending score, then ascending id.
func orderTreated(scores []causal.PropensityScore) []causal.PropensityScore {
	out := append([]causal.PropensityScore(nil), scores...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].AgentID < out[j].AgentID
	})
	return out
}

// orderControl sorts by ascending id.
func orderControl(scores []causal.PropensityScore) []causal.PropensityScore {
	out := append([]causal.PropensityScore(nil), scores...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out
}

func distance(a, b causal.PropensityScore) float64 {
	return math.Abs(a.Score - b.Score)
}

// Verify checks the caliper and without-replacement invariants of a pair set.
func Verify(pairs []causal.MatchedPair, caliper float64) error {
	seen := make(map[core.AgentID]bool, len(pairs))
	for _, p := range pairs {
		if p.Distance > caliper {
			return fmt.Errorf("pair %s/%s: distance %g exceeds caliper %g", p.Treated, p.Control, p.Distance, caliper)
		}
		if seen[p.Control] {
			return fmt.Errorf("control agent %s matched more than once", p.Control)
		}
		seen[p.Control] = true
	}
	return nil
}

// Fingerprint hashes a pair set so runs can be compared byte for byte.
func Fingerprint(pairs []causal.MatchedPair) core.Hash {
	lines := make([]string, len(pairs))
	for i, p := range pairs {
		lines[i] = fmt.Sprintf("%s|%s|%.12f", p.Treated, p.Control, p.Distance)
	}
	return core.Fingerprint(lines)
}
