package render

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gocausal/domain/causal"
	"gocausal/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() *causal.Report {
	return &causal.Report{
		RunID:       core.RunID("0190c6d2-run"),
		GeneratedAt: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		Config:      causal.DefaultEngineConfig(),
		Rows: []causal.EffectEstimate{
			{Definition: "empathy_shown", Metric: causal.MetricWon, NaiveATE: 0.1234, MatchedATT: 0.02, ATTDefined: true,
				StratifiedATE: 0.03, StratifiedDefined: true, MatchCount: 6, SampleSizeTreated: 8, SampleSizeControl: 20, Bias: causal.BiasHigh},
			{Definition: "empathy_shown", Metric: causal.MetricOnsite, NaiveATE: -0.01, MatchCount: 1, SampleSizeTreated: 8, SampleSizeControl: 20},
		},
		Skipped: []causal.SkippedEntry{
			{Definition: "empathy_shown", Metric: causal.MetricOnsite, Reason: causal.ReasonInsufficientMatches, Detail: "1 matched pairs"},
			{Definition: "rare_tag", Reason: causal.ReasonInsufficientSample, Detail: "1 treated, 27 control"},
		},
		Consistency: []causal.ConsistencyVerdict{
			{Definition: "empathy_shown", Metric: causal.MetricWon, Agree: true, Methods: []causal.MethodSign{
				{Method: causal.MethodNaive, Effect: 0.1234, Sign: causal.SignPositive},
				{Method: causal.MethodMatched, Effect: 0.02, Sign: causal.SignPositive},
			}},
		},
		Summaries: []causal.DefinitionSummary{{
			Definition:  "empathy_shown",
			Fingerprint: core.NewHash([]byte("pairs")),
			SamplePairs: []causal.PairDetail{{
				Pair:    causal.MatchedPair{Treated: "agent_001", Control: "agent_017", Distance: 0.0123},
				Treated: causal.AgentRecord{AgentID: "agent_001", TotalUnits: 12, AverageDuration: 300},
				Control: causal.AgentRecord{AgentID: "agent_017", TotalUnits: 11, AverageDuration: 280},
			}},
		}},
	}
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "+12.34%", Percent(0.1234))
	assert.Equal(t, "-1.00%", Percent(-0.01))
	assert.Equal(t, "+0.00%", Percent(0))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" Markdown ")
	require.NoError(t, err)
	assert.Equal(t, FormatMarkdown, f)
	_, err = ParseFormat("pdf")
	assert.Error(t, err)
}

func TestRender_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleReport(), FormatTable))
	out := buf.String()

	assert.Contains(t, out, "+12.34%")
	assert.Contains(t, out, "+2.00%")
	assert.Contains(t, out, "n/a", "undefined ATT")
	assert.Contains(t, out, string(causal.BiasHigh))
	assert.Contains(t, out, "rare_tag")
	assert.Contains(t, out, "agent_017")
	assert.Contains(t, out, "Method consistency")
}

func TestRender_Markdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleReport(), FormatMarkdown))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "# Treatment effects"))
	assert.Contains(t, out, "## Effects")
	assert.Contains(t, out, "| empathy_shown |")
	assert.Contains(t, out, "## Skipped")
}

func TestRender_HTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleReport(), FormatHTML))
	out := buf.String()

	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<h2")
	assert.Contains(t, out, "empathy_shown")
	assert.Contains(t, out, "<title>")
}

func TestRender_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sampleReport(), FormatJSON))

	var back causal.Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &back))
	require.Len(t, back.Rows, 2)
	assert.Equal(t, causal.BiasHigh, back.Rows[0].Bias)
	assert.False(t, back.Rows[1].ATTDefined)
}

func TestRender_UnknownFormat(t *testing.T) {
	assert.Error(t, Render(&bytes.Buffer{}, sampleReport(), Format("pdf")))
}

func TestSink_WriteReport(t *testing.T) {
	var buf bytes.Buffer
	sink := Sink{W: &buf, Format: FormatMarkdown}
	require.NoError(t, sink.WriteReport(context.Background(), sampleReport()))
	assert.Contains(t, buf.String(), "## Effects")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	buf.Reset()
	assert.ErrorIs(t, sink.WriteReport(ctx, sampleReport()), context.Canceled)
	assert.Zero(t, buf.Len())
}
