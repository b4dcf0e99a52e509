// Package treatment labels agents as treated or control for one treatment definition.
package treatment

import (
	"fmt"
	"strings"

	"gocausal/domain/causal"
	"gocausal/domain/core"
)

// MinGroupSize is the smallest treated or control group a definition can be analysed with.
const MinGroupSize = 2

// Evidence bundles the unit-level evidence streams a definition may need.
// Tag definitions read Tags, keyword definitions read Texts.
type Evidence struct {
	Tags  []causal.TagEvidence
	Texts []causal.TextEvidence
}

type tally struct {
	units    map[core.UnitID]struct{}
	matching map[core.UnitID]struct{}
}

func (t *tally) observe(unit core.UnitID, matched bool) {
	t.units[unit] = struct{}{}
	if matched {
		t.matching[unit] = struct{}{}
	}
}

// Classify produces one label per agent, in the order of agents.
//
// Intensity is the share of the agent's evidence units that exhibit the behaviour;
// an agent is treated when intensity is strictly above the per-agent threshold.
// Agents without evidence have intensity 0.
func Classify(def causal.TreatmentDefinition, agents []causal.AgentRecord, ev Evidence, cfg causal.EngineConfig) ([]causal.TreatmentLabel, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	tallies := make(map[core.AgentID]*tally, len(agents))
	for _, a := range agents {
		tallies[a.AgentID] = &tally{
			units:    make(map[core.UnitID]struct{}),
			matching: make(map[core.UnitID]struct{}),
		}
	}

	switch def.Kind {
	case causal.KindTag:
		cutoff := cfg.ScoreCutoffFor(def)
		for _, e := range ev.Tags {
			t := tallies[e.AgentID]
			if t == nil {
				continue
			}
			t.observe(e.UnitID, e.TagCode == def.TagCode && e.Score >= cutoff)
		}
	case causal.KindKeyword:
		match := keywordMatcher(def.Keywords)
		for _, e := range ev.Texts {
			t := tallies[e.AgentID]
			if t == nil {
				continue
			}
			t.observe(e.UnitID, match(e.Text))
		}
	default:
		return nil, fmt.Errorf("%w: unknown treatment kind %q", core.ErrConfiguration, def.Kind)
	}

	threshold := cfg.IntensityThresholdFor(def)
	labels := make([]causal.TreatmentLabel, len(agents))
	for i, a := range agents {
		t := tallies[a.AgentID]
		intensity := 0.0
		if len(t.units) > 0 {
			intensity = float64(len(t.matching)) / float64(len(t.units))
		}
		labels[i] = causal.TreatmentLabel{
			AgentID:       a.AgentID,
			IsTreated:     intensity > threshold,
			Intensity:     intensity,
			MatchingUnits: len(t.matching),
			EvidenceUnits: len(t.units),
		}
	}
	return labels, nil
}

func keywordMatcher(keywords []string) func(string) bool {
	lowered := make([]string, len(keywords))
	for i, k := range keywords {
		lowered[i] = strings.ToLower(k)
	}
	return func(text string) bool {
		text = strings.ToLower(text)
		for _, k := range lowered {
			if strings.Contains(text, k) {
				return true
			}
		}
		return false
	}
}

// Partition splits labels into treated and control agent ids, preserving order.
func Partition(labels []causal.TreatmentLabel) (treated, control []core.AgentID) {
	for _, l := range labels {
		if l.IsTreated {
			treated = append(treated, l.AgentID)
		} else {
			control = append(control, l.AgentID)
		}
	}
	return treated, control
}

// CheckSample returns an insufficient-sample error when either group is smaller than MinGroupSize.
func CheckSample(labels []causal.TreatmentLabel) error {
	treated, control := Partition(labels)
	if len(treated) < MinGroupSize || len(control) < MinGroupSize {
		return core.NewInsufficientSampleError(len(treated), len(control))
	}
	return nil
}

// TreatedSet returns the treated agents as a set.
func TreatedSet(labels []causal.TreatmentLabel) map[core.AgentID]bool {
	set := make(map[core.AgentID]bool, len(labels))
	for _, l := range labels {
		set[l.AgentID] = l.IsTreated
	}
	return set
}
