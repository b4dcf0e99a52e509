// Package covariate aggregates raw units into one record per agent and turns
// those records into population-relative covariate vectors.
package covariate

import (
	"sort"

	"gocausal/domain/causal"
	"gocausal/domain/core"

	"gonum.org/v1/gonum/floats"
)

type accumulator struct {
	units       int
	outcomes    map[causal.OutcomeMetric]int
	durationSum float64
	durationN   int
}

// Build groups units by agent in a single pass and drops agents with fewer than
// minUnits units. Dropping is silent: small samples make rates unstable.
//
// When durations is nil the average duration is taken from the units themselves.
// Otherwise durations is treated as a separate stream joined on agent id, and agents
// with no sample get an average duration of 0.
//
// Records are returned sorted by agent id.
func Build(units []causal.Unit, durations []causal.DurationSample, minUnits int) []causal.AgentRecord {
	acc := make(map[core.AgentID]*accumulator)
	for _, u := range units {
		a := acc[u.AgentID]
		if a == nil {
			a = &accumulator{outcomes: make(map[causal.OutcomeMetric]int)}
			acc[u.AgentID] = a
		}
		a.units++
		for m, ok := range u.Outcomes {
			if ok {
				a.outcomes[m]++
			}
		}
		if durations == nil {
			a.durationSum += u.DurationSeconds
			a.durationN++
		}
	}

	if durations != nil {
		for _, d := range durations {
			a := acc[d.AgentID]
			if a == nil {
				continue
			}
			a.durationSum += d.Seconds
			a.durationN++
		}
	}

	records := make([]causal.AgentRecord, 0, len(acc))
	for id, a := range acc {
		if a.units < minUnits {
			continue
		}
		avg := 0.0
		if a.durationN > 0 {
			avg = a.durationSum / float64(a.durationN)
		}
		records = append(records, causal.AgentRecord{
			AgentID:         id,
			TotalUnits:      a.units,
			OutcomeCounts:   a.outcomes,
			AverageDuration: avg,
		})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].AgentID < records[j].AgentID })
	return records
}

// Index maps agent id to record.
func Index(records []causal.AgentRecord) map[core.AgentID]causal.AgentRecord {
	idx := make(map[core.AgentID]causal.AgentRecord, len(records))
	for _, r := range records {
		idx[r.AgentID] = r
	}
	return idx
}

// Normalize divides each covariate by its population maximum. A covariate whose
// maximum is zero normalises to zero for every agent.
func Normalize(records []causal.AgentRecord) []causal.CovariateVector {
	if len(records) == 0 {
		return nil
	}
	units := make([]float64, len(records))
	durations := make([]float64, len(records))
	for i, r := range records {
		units[i] = float64(r.TotalUnits)
		durations[i] = r.AverageDuration
	}
	maxUnits := floats.Max(units)
	maxDuration := floats.Max(durations)

	vectors := make([]causal.CovariateVector, len(records))
	for i, r := range records {
		vectors[i] = causal.CovariateVector{
			AgentID:  r.AgentID,
			Units:    ratio(units[i], maxUnits),
			Duration: ratio(durations[i], maxDuration),
		}
	}
	return vectors
}

func ratio(v, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return v / max
}
