package causal

import (
	"fmt"

	"gocausal/domain/core"
)

// Propensity model and matcher names accepted by EngineConfig.
const (
	ModelLinear   = "linear"
	ModelLogistic = "logistic"

	MatcherGreedy  = "greedy"
	MatcherOptimal = "optimal"
)

// EngineConfig carries every threshold of a run. It is built once per run and
// passed by value; nothing in the engine reads thresholds from anywhere else.
type EngineConfig struct {
	// MinUnits drops agents with fewer units. There is no default: callers must choose.
	MinUnits int `yaml:"min_units" json:"min_units"`
	// IntensityThreshold: an agent is treated when intensity > threshold.
	IntensityThreshold float64 `yaml:"intensity_threshold" json:"intensity_threshold"`
	// Caliper is the exclusive upper bound on the propensity distance of a pair.
	Caliper float64 `yaml:"caliper" json:"caliper"`
	// ScoreCutoff: a tag score >= cutoff marks the unit as exhibiting the behaviour.
	ScoreCutoff float64 `yaml:"score_cutoff" json:"score_cutoff"`
	// BiasThreshold: |ATT - ATE| above this flags a high selection-bias correction.
	BiasThreshold float64 `yaml:"bias_threshold" json:"bias_threshold"`

	Metrics         []OutcomeMetric `yaml:"metrics" json:"metrics"`
	PropensityModel string          `yaml:"propensity_model" json:"propensity_model"`
	Matcher         string          `yaml:"matcher" json:"matcher"`
	Scope           Scope           `yaml:"scope" json:"scope"`

	// SamplePairs is how many matched pairs per definition are kept for audit output.
	SamplePairs int `yaml:"sample_pairs" json:"sample_pairs"`
}

// DefaultEngineConfig returns the thresholds most of the historical analyses used.
// MinUnits is deliberately left at zero and must be set by the caller.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		IntensityThreshold: 0,
		Caliper:            0.2,
		ScoreCutoff:        80,
		BiasThreshold:      0.05,
		Metrics:            KnownMetrics(),
		PropensityModel:    ModelLinear,
		Matcher:            MatcherGreedy,
		SamplePairs:        5,
	}
}

// Validate is the pre-flight configuration check; it runs before any data is fetched.
func (c EngineConfig) Validate() error {
	if c.MinUnits <= 0 {
		return fmt.Errorf("%w: min_units must be > 0, got %d", core.ErrConfiguration, c.MinUnits)
	}
	if c.Caliper <= 0 {
		return fmt.Errorf("%w: caliper must be > 0, got %g", core.ErrConfiguration, c.Caliper)
	}
	if c.IntensityThreshold < 0 || c.IntensityThreshold >= 1 {
		return fmt.Errorf("%w: intensity_threshold must be in [0,1), got %g", core.ErrConfiguration, c.IntensityThreshold)
	}
	if c.BiasThreshold < 0 {
		return fmt.Errorf("%w: bias_threshold must be >= 0, got %g", core.ErrConfiguration, c.BiasThreshold)
	}
	if c.SamplePairs < 0 {
		return fmt.Errorf("%w: sample_pairs must be >= 0, got %d", core.ErrConfiguration, c.SamplePairs)
	}
	if len(c.Metrics) == 0 {
		return fmt.Errorf("%w: at least one outcome metric is required", core.ErrConfiguration)
	}
	for _, m := range c.Metrics {
		if !m.Valid() {
			return fmt.Errorf("%w %q", core.ErrUnknownMetric, m)
		}
	}
	switch c.PropensityModel {
	case ModelLinear, ModelLogistic:
	default:
		return fmt.Errorf("%w: unknown propensity model %q", core.ErrConfiguration, c.PropensityModel)
	}
	switch c.Matcher {
	case MatcherGreedy, MatcherOptimal:
	default:
		return fmt.Errorf("%w: unknown matcher %q", core.ErrConfiguration, c.Matcher)
	}
	return nil
}

// IntensityThresholdFor resolves the per-agent threshold for def.
func (c EngineConfig) IntensityThresholdFor(def TreatmentDefinition) float64 {
	if def.IntensityThreshold != nil {
		return *def.IntensityThreshold
	}
	return c.IntensityThreshold
}

// ScoreCutoffFor resolves the unit-level tag score cutoff for def.
func (c EngineConfig) ScoreCutoffFor(def TreatmentDefinition) float64 {
	if def.ScoreCutoff != nil {
		return *def.ScoreCutoff
	}
	return c.ScoreCutoff
}
