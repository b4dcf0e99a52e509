// Package plan loads analysis plans: the engine thresholds plus the list of
// treatment definitions to analyse in one run.
package plan

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"gocausal/domain/causal"
	"gocausal/domain/core"
	"gocausal/internal/errors"

	"gopkg.in/yaml.v3"
)

// Row orders accepted by Plan.Sort.
const (
	SortPlan = "plan"
	SortATT  = "att"
)

// Plan is one analysis run.
type Plan struct {
	Name   string              `yaml:"name" json:"name"`
	Engine causal.EngineConfig `yaml:",inline" json:"engine"`

	Definitions []causal.TreatmentDefinition `yaml:"definitions" json:"definitions"`
	// AllActiveTags adds one tag definition per active catalogue tag not already listed.
	AllActiveTags bool `yaml:"all_active_tags" json:"all_active_tags"`
	// Sort orders report rows: plan order (default) or matched ATT descending.
	Sort string `yaml:"sort" json:"sort"`
}

// Default returns an empty plan carrying the default engine thresholds.
func Default() Plan {
	return Plan{Engine: causal.DefaultEngineConfig(), Sort: SortPlan}
}

// Load reads a YAML plan from path.
func Load(path string) (Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, errors.ConfigInvalidf(err, "failed to read plan %s", path)
	}
	p, err := Parse(data)
	if err != nil {
		return Plan{}, errors.Wrapf(err, "invalid plan %s", path)
	}
	return p, nil
}

// Parse decodes a YAML plan over the defaults and validates it. Unknown keys are rejected.
func Parse(data []byte) (Plan, error) {
	p := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !stderrors.Is(err, io.EOF) {
		return Plan{}, errors.ConfigInvalidf(err, "failed to decode plan")
	}
	if err := p.Validate(); err != nil {
		return Plan{}, err
	}
	return p, nil
}

// Validate is the pre-flight configuration check of a whole run.
func (p Plan) Validate() error {
	if err := p.Engine.Validate(); err != nil {
		return errors.ConfigInvalidf(err, "engine configuration")
	}
	if len(p.Definitions) == 0 && !p.AllActiveTags {
		return errors.ConfigInvalidf(core.ErrConfiguration, "plan lists no treatment definitions")
	}
	seen := make(map[string]bool, len(p.Definitions))
	for _, d := range p.Definitions {
		if err := d.Validate(); err != nil {
			return errors.ConfigInvalidf(err, "treatment definition")
		}
		if seen[d.Label()] {
			return errors.ConfigInvalidf(core.ErrConfiguration, "duplicate treatment definition %q", d.Label())
		}
		seen[d.Label()] = true
	}
	switch p.Sort {
	case "", SortPlan, SortATT:
	default:
		return errors.ConfigInvalidf(core.ErrConfiguration, "unknown sort %q", p.Sort)
	}
	return nil
}

// Encode writes the plan as YAML.
func (p Plan) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	return enc.Close()
}
