package effect

import (
	"testing"

	"gocausal/domain/causal"
	"gocausal/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(id string, units, won, onsite int, dur float64) causal.AgentRecord {
	return causal.AgentRecord{
		AgentID:    core.AgentID(id),
		TotalUnits: units,
		OutcomeCounts: map[causal.OutcomeMetric]int{
			causal.MetricWon:    won,
			causal.MetricOnsite: onsite,
		},
		AverageDuration: dur,
	}
}

func index(records ...causal.AgentRecord) map[core.AgentID]causal.AgentRecord {
	out := make(map[core.AgentID]causal.AgentRecord, len(records))
	for _, r := range records {
		out[r.AgentID] = r
	}
	return out
}

// Both treated agents sit outside the caliper of the only control: no pairs,
// ATT skipped, naive ATE still reported.
func TestEstimate_NoMatchesStillReportsNaive(t *testing.T) {
	records := index(
		rec("a1", 10, 5, 0, 1000),
		rec("a2", 10, 2, 0, 100),
		rec("a3", 10, 8, 0, 1000),
	)

	est, err := Estimate(Input{
		Definition:    "empathy_shown",
		Metric:        causal.MetricWon,
		Records:       records,
		Treated:       []core.AgentID{"a1", "a3"},
		Control:       []core.AgentID{"a2"},
		Pairs:         nil,
		BiasThreshold: 0.05,
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.45, est.NaiveATE, 1e-12)
	assert.False(t, est.ATTDefined)
	assert.Equal(t, 0.0, est.MatchedATT)
	assert.Equal(t, 0, est.MatchCount)
	assert.Equal(t, 2, est.SampleSizeTreated)
	assert.Equal(t, 1, est.SampleSizeControl)
	assert.Equal(t, causal.BiasUndefined, est.Bias)
}

func TestNaive_AgentStratifiedNotPooled(t *testing.T) {
	// Pooled treated rate would be (1+90)/(2+100) ≈ 0.89; agent-level mean is 0.7.
	records := index(
		rec("small", 2, 1, 0, 0),
		rec("big", 100, 90, 0, 0),
		rec("c1", 10, 5, 0, 0),
		rec("c2", 10, 5, 0, 0),
	)
	ate, err := Naive(records, []core.AgentID{"small", "big"}, []core.AgentID{"c1", "c2"}, causal.MetricWon)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, ate, 1e-12)
}

func TestNaive_EmptyGroupErrors(t *testing.T) {
	_, err := Naive(index(rec("a", 1, 1, 0, 0)), []core.AgentID{"a"}, nil, causal.MetricWon)
	assert.Error(t, err)

	_, err = Naive(index(), []core.AgentID{"missing"}, []core.AgentID{"missing"}, causal.MetricWon)
	assert.Error(t, err)
}

func TestMatched(t *testing.T) {
	records := index(
		rec("t1", 10, 6, 3, 0),
		rec("t2", 10, 4, 5, 0),
		rec("c1", 10, 2, 5, 0),
		rec("c2", 10, 4, 5, 0),
	)
	pairs := []causal.MatchedPair{
		{Treated: "t1", Control: "c1", Distance: 0.01},
		{Treated: "t2", Control: "c2", Distance: 0.02},
	}

	att, ok := Matched(records, pairs, causal.MetricWon)
	require.True(t, ok)
	assert.InDelta(t, 0.2, att, 1e-12)

	att, ok = Matched(records, pairs, causal.MetricOnsite)
	require.True(t, ok)
	assert.InDelta(t, -0.1, att, 1e-12)

	_, ok = Matched(records, pairs[:1], causal.MetricWon)
	assert.False(t, ok, "one pair is not enough")
}

func TestStratified(t *testing.T) {
	// Units median 15, duration median 250.
	records := index(
		rec("t_lo", 5, 3, 0, 100),  // low/low stratum
		rec("c_lo", 5, 1, 0, 100),  // low/low
		rec("t_hi", 20, 10, 0, 300), // high/high
		rec("c_hi1", 20, 8, 0, 300), // high/high
		rec("c_hi2", 20, 4, 0, 300), // high/high
		rec("c_mid", 10, 0, 0, 200), // low/low (not above medians)
	)
	treated := []core.AgentID{"t_lo", "t_hi"}
	control := []core.AgentID{"c_lo", "c_hi1", "c_hi2", "c_mid"}

	got, ok := Stratified(records, treated, control, causal.MetricWon)
	require.True(t, ok)
	// low/low: 0.6 - mean(0.2, 0.0) = 0.5; high/high: 0.5 - mean(0.4, 0.2) = 0.2
	assert.InDelta(t, (0.5+0.2)/2, got, 1e-12)
}

func TestStratified_UndefinedWithoutOverlap(t *testing.T) {
	records := index(
		rec("t1", 50, 10, 0, 500),
		rec("t2", 60, 10, 0, 600),
		rec("c1", 5, 1, 0, 50),
		rec("c2", 6, 1, 0, 60),
	)
	_, ok := Stratified(records, []core.AgentID{"t1", "t2"}, []core.AgentID{"c1", "c2"}, causal.MetricWon)
	assert.False(t, ok)
}

func TestFlag_BothDirections(t *testing.T) {
	assert.Equal(t, causal.BiasHigh, Flag(0.10, 0.02, true, 0.05))
	assert.Equal(t, causal.BiasHigh, Flag(-0.02, 0.10, true, 0.05))
	assert.Equal(t, causal.BiasHigh, Flag(0.03, -0.03, true, 0.05), "sign flip larger than threshold")
	assert.Equal(t, causal.BiasStable, Flag(0.10, 0.06, true, 0.05))
	assert.Equal(t, causal.BiasStable, Flag(0.10, 0.15, true, 0.05), "exactly at threshold is stable")
	assert.Equal(t, causal.BiasUndefined, Flag(0.10, 0.90, false, 0.05))
}
