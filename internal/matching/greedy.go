package matching

import (
	"gocausal/domain/causal"
)

// Greedy is single-pass nearest-neighbour matching. Each treated agent takes the
// closest unused control; the pair is kept only if the distance is below the caliper.
// A rejected treated agent does not consume its nearest control.
type Greedy struct{}

func (Greedy) Name() string { return causal.MatcherGreedy }

func (Greedy) Match(treated, control []causal.PropensityScore, caliper float64) []causal.MatchedPair {
	controls := orderControl(control)
	used := make([]bool, len(controls))

	var pairs []causal.MatchedPair
	for _, t := range orderTreated(treated) {
		best := -1
		bestDist := 0.0
		for j, c := range controls {
			if used[j] {
				continue
			}
			d := distance(t, c)
			if best < 0 || d < bestDist {
				best = j
				bestDist = d
			}
		}
		if best < 0 || bestDist >= caliper {
			continue
		}
		used[best] = true
		pairs = append(pairs, causal.MatchedPair{
			Treated:  t.AgentID,
			Control:  controls[best].AgentID,
			Distance: bestDist,
		})
	}
	return pairs
}
