package causal

import (
	"time"

	"gocausal/domain/core"
)

// Method identifies an effect estimator.
type Method string

const (
	MethodNaive      Method = "naive_ate"
	MethodMatched    Method = "matched_att"
	MethodStratified Method = "stratified_ate"
)

// BiasFlag summarises how far matching moved the estimate.
type BiasFlag string

const (
	BiasHigh   BiasFlag = "high selection bias corrected"
	BiasStable BiasFlag = "stable"
	// BiasUndefined is used when the matched ATT could not be computed.
	BiasUndefined BiasFlag = ""
)

// EffectEstimate is computed once per (definition, metric) and never mutated.
type EffectEstimate struct {
	Definition string        `json:"definition"`
	Metric     OutcomeMetric `json:"metric"`

	NaiveATE   float64 `json:"naive_ate"`
	MatchedATT float64 `json:"matched_att"`
	// ATTDefined is false when fewer than two pairs matched; MatchedATT is then zero.
	ATTDefined bool `json:"att_defined"`

	StratifiedATE     float64 `json:"stratified_ate"`
	StratifiedDefined bool    `json:"stratified_defined"`

	MatchCount        int      `json:"match_count"`
	SampleSizeTreated int      `json:"sample_size_treated"`
	SampleSizeControl int      `json:"sample_size_control"`
	Bias              BiasFlag `json:"bias_flag"`
}

// Effect returns the estimate for a method and whether it is defined.
func (e EffectEstimate) Effect(m Method) (float64, bool) {
	switch m {
	case MethodNaive:
		return e.NaiveATE, true
	case MethodMatched:
		return e.MatchedATT, e.ATTDefined
	case MethodStratified:
		return e.StratifiedATE, e.StratifiedDefined
	}
	return 0, false
}

// Skip reasons recorded in the report.
const (
	ReasonInsufficientSample  = "insufficient sample"
	ReasonInsufficientMatches = "insufficient matches"
	ReasonPropensityFit       = "propensity fit failed"
)

// SkippedEntry records a definition (Metric empty) or a single metric that could not be estimated.
type SkippedEntry struct {
	Definition string        `json:"definition"`
	Metric     OutcomeMetric `json:"metric,omitempty"`
	Reason     string        `json:"reason"`
	Detail     string        `json:"detail"`
}

// Sign is the direction of an effect.
type Sign int

const (
	SignNegative Sign = -1
	SignZero     Sign = 0
	SignPositive Sign = 1
)

func (s Sign) String() string {
	switch s {
	case SignPositive:
		return "positive"
	case SignNegative:
		return "negative"
	}
	return "zero"
}

// MethodSign is one method's direction for one metric.
type MethodSign struct {
	Method Method  `json:"method"`
	Effect float64 `json:"effect"`
	Sign   Sign    `json:"sign"`
}

// ConsistencyVerdict tells whether the defined methods agree on direction.
type ConsistencyVerdict struct {
	Definition string        `json:"definition"`
	Metric     OutcomeMetric `json:"metric"`
	Methods    []MethodSign  `json:"methods"`
	Agree      bool          `json:"agree"`
}

// PairDetail is an audit sample of one matched pair.
type PairDetail struct {
	Pair    MatchedPair `json:"pair"`
	Treated AgentRecord `json:"treated"`
	Control AgentRecord `json:"control"`
}

// DefinitionSummary carries per-definition population facts for the report.
type DefinitionSummary struct {
	Definition  string       `json:"definition"`
	Population  int          `json:"population"`
	Treated     int          `json:"treated"`
	Control     int          `json:"control"`
	Matched     int          `json:"matched"`
	Fingerprint core.Hash    `json:"fingerprint"`
	SamplePairs []PairDetail `json:"sample_pairs,omitempty"`
}

// Report is the tabular output of one run.
type Report struct {
	RunID       core.RunID           `json:"run_id"`
	GeneratedAt time.Time            `json:"generated_at"`
	Config      EngineConfig         `json:"config"`
	Rows        []EffectEstimate     `json:"rows"`
	Skipped     []SkippedEntry       `json:"skipped"`
	Consistency []ConsistencyVerdict `json:"consistency"`
	Summaries   []DefinitionSummary  `json:"summaries"`
}

// RowsFor returns the rows of one definition in metric order.
func (r *Report) RowsFor(definition string) []EffectEstimate {
	var out []EffectEstimate
	for _, row := range r.Rows {
		if row.Definition == definition {
			out = append(out, row)
		}
	}
	return out
}
