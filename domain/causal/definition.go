package causal

import (
	"fmt"
	"strings"

	"gocausal/domain/core"
)

// TreatmentKind selects how unit-level treatment evidence is recognised.
type TreatmentKind string

const (
	// KindTag treats a unit when its score on TagCode meets the score cutoff.
	KindTag TreatmentKind = "tag"
	// KindKeyword treats a unit when its text contains any of Keywords.
	KindKeyword TreatmentKind = "keyword"
)

// TreatmentDefinition describes one behaviour whose effect is estimated.
type TreatmentDefinition struct {
	Name     string        `yaml:"name" json:"name"`
	Kind     TreatmentKind `yaml:"kind" json:"kind"`
	TagCode  string        `yaml:"tag_code,omitempty" json:"tag_code,omitempty"`
	Keywords []string      `yaml:"keywords,omitempty" json:"keywords,omitempty"`

	// Optional per-definition overrides of the engine defaults.
	IntensityThreshold *float64 `yaml:"intensity_threshold,omitempty" json:"intensity_threshold,omitempty"`
	ScoreCutoff        *float64 `yaml:"score_cutoff,omitempty" json:"score_cutoff,omitempty"`
}

// TagDefinition is a shorthand for a tag-score treatment named after its tag.
func TagDefinition(code string) TreatmentDefinition {
	return TreatmentDefinition{Name: code, Kind: KindTag, TagCode: code}
}

// KeywordDefinition is a shorthand for a keyword treatment.
func KeywordDefinition(name string, keywords ...string) TreatmentDefinition {
	return TreatmentDefinition{Name: name, Kind: KindKeyword, Keywords: keywords}
}

// Label is the identifier printed in reports.
func (d TreatmentDefinition) Label() string {
	if d.Name != "" {
		return d.Name
	}
	if d.Kind == KindTag {
		return d.TagCode
	}
	return strings.Join(d.Keywords, "|")
}

// Validate checks the definition is self-consistent.
func (d TreatmentDefinition) Validate() error {
	switch d.Kind {
	case KindTag:
		if strings.TrimSpace(d.TagCode) == "" {
			return fmt.Errorf("%w: definition %q: tag_code is required", core.ErrConfiguration, d.Label())
		}
	case KindKeyword:
		if len(d.Keywords) == 0 {
			return fmt.Errorf("%w: definition %q: at least one keyword is required", core.ErrConfiguration, d.Label())
		}
		for _, k := range d.Keywords {
			if strings.TrimSpace(k) == "" {
				return fmt.Errorf("%w: definition %q: empty keyword", core.ErrConfiguration, d.Label())
			}
		}
	default:
		return fmt.Errorf("%w: definition %q: unknown kind %q", core.ErrConfiguration, d.Label(), d.Kind)
	}
	if d.IntensityThreshold != nil && (*d.IntensityThreshold < 0 || *d.IntensityThreshold >= 1) {
		return fmt.Errorf("%w: definition %q: intensity_threshold must be in [0,1)", core.ErrConfiguration, d.Label())
	}
	return nil
}
