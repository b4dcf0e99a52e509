package causal

import (
	"gocausal/domain/core"
)

// Unit is one raw outcome-bearing record (a deal or a call) attributed to an agent.
type Unit struct {
	ID              core.UnitID
	AgentID         core.AgentID
	Outcomes        map[OutcomeMetric]bool
	DurationSeconds float64
}

// Achieved reports whether the unit counts towards metric m.
func (u Unit) Achieved(m OutcomeMetric) bool {
	return u.Outcomes[m]
}

// DurationSample is a duration observation from a stream that may differ from the
// outcome units (calls versus deals). It is joined to agents by AgentID.
type DurationSample struct {
	AgentID core.AgentID
	Seconds float64
}

// TagEvidence is one structured tag score on one unit.
type TagEvidence struct {
	UnitID  core.UnitID  `db:"unit_id"`
	AgentID core.AgentID `db:"agent_id"`
	TagCode string       `db:"tag_code"`
	Score   float64      `db:"score"`
}

// TextEvidence is the free-text content of one unit.
type TextEvidence struct {
	UnitID  core.UnitID  `db:"unit_id"`
	AgentID core.AgentID `db:"agent_id"`
	Text    string       `db:"content"`
}

// TagInfo describes an entry of the tag catalogue.
type TagInfo struct {
	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`
}

// Scope narrows the units read from a source.
type Scope struct {
	// Segment is a substring matched against the deal segment column (e.g. leak area "2").
	Segment string `yaml:"segment" json:"segment,omitempty"`
	// RequireCallEvidence keeps only agents that have at least one call on record.
	RequireCallEvidence bool `yaml:"require_call_evidence" json:"require_call_evidence,omitempty"`
}

// AgentRecord is the per-agent rollup produced by the covariate builder.
type AgentRecord struct {
	AgentID         core.AgentID          `json:"agent_id"`
	TotalUnits      int                   `json:"total_units"`
	OutcomeCounts   map[OutcomeMetric]int `json:"outcome_counts"`
	AverageDuration float64               `json:"average_duration"`
}

// Rate is the agent-level outcome rate outcomeCount / totalUnits.
func (a AgentRecord) Rate(m OutcomeMetric) float64 {
	if a.TotalUnits <= 0 {
		return 0
	}
	return float64(a.OutcomeCounts[m]) / float64(a.TotalUnits)
}

// CovariateVector holds population-relative covariates in [0,1].
// It is only meaningful inside the population that produced it.
type CovariateVector struct {
	AgentID  core.AgentID `json:"agent_id"`
	Units    float64      `json:"units"`
	Duration float64      `json:"duration"`
}

// PropensityScore is a scalar in [0,1] used for nearest-neighbour matching.
type PropensityScore struct {
	AgentID core.AgentID `json:"agent_id"`
	Score   float64      `json:"score"`
}

// TreatmentLabel marks an agent as treated or control for one definition.
type TreatmentLabel struct {
	AgentID       core.AgentID `json:"agent_id"`
	IsTreated     bool         `json:"is_treated"`
	Intensity     float64      `json:"treatment_intensity"`
	MatchingUnits int          `json:"matching_units"`
	EvidenceUnits int          `json:"evidence_units"`
}

// MatchedPair links one treated agent to one control agent.
type MatchedPair struct {
	Treated  core.AgentID `json:"treated_agent_id"`
	Control  core.AgentID `json:"control_agent_id"`
	Distance float64      `json:"propensity_distance"`
}
