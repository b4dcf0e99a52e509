package matching

import (
	"math"

	"gocausal/domain/causal"
)

// Optimal solves the assignment problem instead of matching greedily. It first
// maximises the number of pairs within the caliper and then minimises their total
// distance. Caliper rejection and determinism are the same as Greedy.
type Optimal struct{}

func (Optimal) Name() string { return causal.MatcherOptimal }

func (Optimal) Match(treated, control []causal.PropensityScore, caliper float64) []causal.MatchedPair {
	ts := orderTreated(treated)
	cs := orderControl(control)
	if len(ts) == 0 || len(cs) == 0 {
		return nil
	}

	size := len(ts)
	if len(cs) > size {
		size = len(cs)
	}
	minSide := len(ts)
	if len(cs) < minSide {
		minSide = len(cs)
	}
	// Any single extra in-caliper pair outweighs the whole distance budget.
	reward := caliper * float64(minSide+1)

	cost := make([][]float64, size)
	for i := range cost {
		cost[i] = make([]float64, size)
		if i >= len(ts) {
			continue
		}
		for j := range cs {
			if d := distance(ts[i], cs[j]); d < caliper {
				cost[i][j] = d - reward
			}
		}
	}

	assign := hungarian(cost)
	var pairs []causal.MatchedPair
	for i, t := range ts {
		j := assign[i]
		if j < 0 || j >= len(cs) {
			continue
		}
		d := distance(t, cs[j])
		if d >= caliper {
			continue
		}
		pairs = append(pairs, causal.MatchedPair{Treated: t.AgentID, Control: cs[j].AgentID, Distance: d})
	}
	return pairs
}

// hungarian returns, for each row of a square cost matrix, the column of a
// minimum-cost perfect assignment (Kuhn-Munkres with potentials, O(n^3)).
func hungarian(cost [][]float64) []int {
	n := len(cost)
	u := make([]float64, n+1)
	v := make([]float64, n+1)
	p := make([]int, n+1)
	way := make([]int, n+1)

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		minv := make([]float64, n+1)
		used := make([]bool, n+1)
		for j := range minv {
			minv[j] = math.Inf(1)
		}
		for {
			used[j0] = true
			i0 := p[j0]
			delta := math.Inf(1)
			j1 := 0
			for j := 1; j <= n; j++ {
				if used[j] {
					continue
				}
				cur := cost[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= n; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}
		for {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
			if j0 == 0 {
				break
			}
		}
	}

	assign := make([]int, n)
	for i := range assign {
		assign[i] = -1
	}
	for j := 1; j <= n; j++ {
		if p[j] > 0 {
			assign[p[j]-1] = j - 1
		}
	}
	return assign
}
