package ports

import (
	"context"

	"gocausal/domain/causal"
)

// Query names reported in DataUnavailable errors.
const (
	QueryOutcomeUnits    = "outcome_units"
	QueryDurationSamples = "duration_samples"
	QueryTagEvidence     = "tag_evidence"
	QueryTextEvidence    = "text_evidence"
	QueryActiveTags      = "active_tags"
)

// UnitSource is the read-only data store contract of the engine.
// Implementations never filter by minimum units: that is the covariate builder's job.
type UnitSource interface {
	// OutcomeUnits returns one row per unit (deal) with its binary outcomes.
	OutcomeUnits(ctx context.Context, scope causal.Scope) ([]causal.Unit, error)

	// DurationSamples returns per-call durations; joined to agents by agent id.
	DurationSamples(ctx context.Context, scope causal.Scope) ([]causal.DurationSample, error)

	// TagEvidence returns scored tag observations. With an empty tagCode all tags are returned,
	// which the classifier needs to count each agent's evidence units.
	TagEvidence(ctx context.Context, scope causal.Scope, tagCode string) ([]causal.TagEvidence, error)

	// TextEvidence returns free-text content per unit for keyword definitions.
	TextEvidence(ctx context.Context, scope causal.Scope) ([]causal.TextEvidence, error)

	// ActiveTags returns the tag catalogue.
	ActiveTags(ctx context.Context) ([]causal.TagInfo, error)
}
