// Package effect computes treatment effects on agent-level outcome rates.
//
// All averages are agent-stratified: each agent's rate outcomeCount/totalUnits
// counts once regardless of volume. No standard errors or significance tests are
// computed; the bias flag is a fixed percentage-point threshold.
package effect

import (
	"fmt"
	"math"

	"gocausal/domain/causal"
	"gocausal/domain/core"

	"github.com/montanaflynn/stats"
)

// MinMatches is the smallest number of matched pairs for which the ATT is reported.
const MinMatches = 2

// Input is everything needed to estimate one (definition, metric) cell.
type Input struct {
	Definition    string
	Metric        causal.OutcomeMetric
	Records       map[core.AgentID]causal.AgentRecord
	Treated       []core.AgentID
	Control       []core.AgentID
	Pairs         []causal.MatchedPair
	BiasThreshold float64
}

// Estimate runs the naive, matched and stratified estimators for one metric.
// The same Pairs are reused for every metric: matching depends on covariates only.
func Estimate(in Input) (causal.EffectEstimate, error) {
	naive, err := Naive(in.Records, in.Treated, in.Control, in.Metric)
	if err != nil {
		return causal.EffectEstimate{}, err
	}
	att, attOK := Matched(in.Records, in.Pairs, in.Metric)
	strat, stratOK := Stratified(in.Records, in.Treated, in.Control, in.Metric)

	return causal.EffectEstimate{
		Definition:        in.Definition,
		Metric:            in.Metric,
		NaiveATE:          naive,
		MatchedATT:        att,
		ATTDefined:        attOK,
		StratifiedATE:     strat,
		StratifiedDefined: stratOK,
		MatchCount:        len(in.Pairs),
		SampleSizeTreated: len(in.Treated),
		SampleSizeControl: len(in.Control),
		Bias:              Flag(naive, att, attOK, in.BiasThreshold),
	}, nil
}

// Naive is mean(rate | treated) - mean(rate | control) over the full groups.
func Naive(records map[core.AgentID]causal.AgentRecord, treated, control []core.AgentID, m causal.OutcomeMetric) (float64, error) {
	tm, err := meanRate(records, treated, m)
	if err != nil {
		return 0, fmt.Errorf("naive ATE: treated group: %w", err)
	}
	cm, err := meanRate(records, control, m)
	if err != nil {
		return 0, fmt.Errorf("naive ATE: control group: %w", err)
	}
	return tm - cm, nil
}

// Matched is the mean within-pair rate difference. It is undefined below MinMatches pairs.
func Matched(records map[core.AgentID]causal.AgentRecord, pairs []causal.MatchedPair, m causal.OutcomeMetric) (float64, bool) {
	if len(pairs) < MinMatches {
		return 0, false
	}
	diffs := make([]float64, len(pairs))
	for i, p := range pairs {
		diffs[i] = records[p.Treated].Rate(m) - records[p.Control].Rate(m)
	}
	att, err := stats.Mean(diffs)
	if err != nil {
		return 0, false
	}
	return att, true
}

type stratumKey struct {
	highVolume   bool
	longDuration bool
}

type stratum struct {
	treated []float64
	control []float64
}

// Stratified splits the population at the median total units and the median
// average duration, takes the treated-minus-control difference inside every
// stratum that holds both groups, and weights strata by their treated count.
func Stratified(records map[core.AgentID]causal.AgentRecord, treated, control []core.AgentID, m causal.OutcomeMetric) (float64, bool) {
	all := make([]core.AgentID, 0, len(treated)+len(control))
	all = append(all, treated...)
	all = append(all, control...)
	if len(all) == 0 {
		return 0, false
	}

	units := make([]float64, len(all))
	durations := make([]float64, len(all))
	for i, id := range all {
		units[i] = float64(records[id].TotalUnits)
		durations[i] = records[id].AverageDuration
	}
	medUnits, err := stats.Median(units)
	if err != nil {
		return 0, false
	}
	medDuration, err := stats.Median(durations)
	if err != nil {
		return 0, false
	}

	strata := make(map[stratumKey]*stratum)
	place := func(id core.AgentID, isTreated bool) {
		r := records[id]
		k := stratumKey{
			highVolume:   float64(r.TotalUnits) > medUnits,
			longDuration: r.AverageDuration > medDuration,
		}
		s := strata[k]
		if s == nil {
			s = &stratum{}
			strata[k] = s
		}
		if isTreated {
			s.treated = append(s.treated, r.Rate(m))
		} else {
			s.control = append(s.control, r.Rate(m))
		}
	}
	for _, id := range treated {
		place(id, true)
	}
	for _, id := range control {
		place(id, false)
	}

	var weighted, weight float64
	for _, k := range []stratumKey{{false, false}, {false, true}, {true, false}, {true, true}} {
		s := strata[k]
		if s == nil || len(s.treated) == 0 || len(s.control) == 0 {
			continue
		}
		tm, _ := stats.Mean(s.treated)
		cm, _ := stats.Mean(s.control)
		w := float64(len(s.treated))
		weighted += w * (tm - cm)
		weight += w
	}
	if weight == 0 {
		return 0, false
	}
	return weighted / weight, true
}

// Flag marks estimates where matching moved the effect by more than threshold,
// in either direction.
func Flag(naive, att float64, attDefined bool, threshold float64) causal.BiasFlag {
	if !attDefined {
		return causal.BiasUndefined
	}
	if math.Abs(att-naive) > threshold {
		return causal.BiasHigh
	}
	return causal.BiasStable
}

func meanRate(records map[core.AgentID]causal.AgentRecord, ids []core.AgentID, m causal.OutcomeMetric) (float64, error) {
	rates := make([]float64, 0, len(ids))
	for _, id := range ids {
		r, ok := records[id]
		if !ok {
			return 0, fmt.Errorf("agent %s has no record", id)
		}
		rates = append(rates, r.Rate(m))
	}
	return stats.Mean(rates)
}
