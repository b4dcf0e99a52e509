package plan

import (
	"bytes"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"gocausal/domain/causal"
	"gocausal/domain/core"
	"gocausal/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bathroomPlan = `
name: bathroom-keywords
min_units: 3
caliper: 0.3
metrics: [onsite, won]
matcher: optimal
scope:
  segment: "2"
  require_call_evidence: true
sort: att
definitions:
  - name: empathy_shown
    kind: tag
    tag_code: empathy_shown
    score_cutoff: 85
  - name: onsite_invite
    kind: keyword
    keywords: ["上门", "过来看"]
    intensity_threshold: 0.15
`

func TestParse(t *testing.T) {
	p, err := Parse([]byte(bathroomPlan))
	require.NoError(t, err)

	assert.Equal(t, "bathroom-keywords", p.Name)
	assert.Equal(t, 3, p.Engine.MinUnits)
	assert.Equal(t, 0.3, p.Engine.Caliper)
	assert.Equal(t, 80.0, p.Engine.ScoreCutoff, "unset keys keep defaults")
	assert.Equal(t, 0.05, p.Engine.BiasThreshold)
	assert.Equal(t, causal.ModelLinear, p.Engine.PropensityModel)
	assert.Equal(t, causal.MatcherOptimal, p.Engine.Matcher)
	assert.Equal(t, []causal.OutcomeMetric{causal.MetricOnsite, causal.MetricWon}, p.Engine.Metrics)
	assert.Equal(t, causal.Scope{Segment: "2", RequireCallEvidence: true}, p.Engine.Scope)
	assert.Equal(t, SortATT, p.Sort)

	require.Len(t, p.Definitions, 2)
	assert.Equal(t, 85.0, p.Engine.ScoreCutoffFor(p.Definitions[0]))
	assert.Equal(t, 0.15, p.Engine.IntensityThresholdFor(p.Definitions[1]))
	assert.Equal(t, []string{"上门", "过来看"}, p.Definitions[1].Keywords)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing min units", "definitions: [{kind: tag, tag_code: x}]"},
		{"zero caliper", "min_units: 2\ncaliper: 0\ndefinitions: [{kind: tag, tag_code: x}]"},
		{"unknown metric", "min_units: 2\nmetrics: [revenue]\ndefinitions: [{kind: tag, tag_code: x}]"},
		{"no definitions", "min_units: 2"},
		{"keyword without keywords", "min_units: 2\ndefinitions: [{name: k, kind: keyword}]"},
		{"duplicate", "min_units: 2\ndefinitions: [{kind: tag, tag_code: x}, {kind: tag, tag_code: x}]"},
		{"unknown key", "min_units: 2\ncalliper: 0.2\ndefinitions: [{kind: tag, tag_code: x}]"},
		{"unknown sort", "min_units: 2\nsort: naive\ndefinitions: [{kind: tag, tag_code: x}]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
			assert.True(t, stderrors.Is(err, core.ErrConfiguration))
		})
	}
}

func TestParse_AllActiveTagsNeedsNoDefinitions(t *testing.T) {
	p, err := Parse([]byte("min_units: 5\nall_active_tags: true\n"))
	require.NoError(t, err)
	assert.True(t, p.AllActiveTags)
	assert.Empty(t, p.Definitions)
}

func TestLoadAndEncode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(bathroomPlan), 0o644))

	p, err := Load(path)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, p.Encode(&buf))
	again, err := Parse(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, p, again)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}
