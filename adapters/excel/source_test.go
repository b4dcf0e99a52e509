package excel

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"gocausal/domain/causal"
	"gocausal/domain/core"
	"gocausal/internal/covariate"
	"gocausal/internal/errors"
	"gocausal/internal/treatment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleTables() *Tables {
	return &Tables{
		Deals: []Deal{
			{ID: "d1", AgentID: "a1", Outcome: "won", OnsiteCompleted: true, Segment: "1,2"},
			{ID: "d2", AgentID: "a1", Outcome: "lost", Segment: "3"},
			{ID: "d3", AgentID: "a2", Outcome: "won", Segment: "2"},
			{ID: "d4", AgentID: "a3", Outcome: "lost", OnsiteCompleted: true, Segment: "2"},
		},
		Calls: []Call{
			{ID: "c1", AgentID: "a1", DurationSeconds: 120},
			{ID: "c2", AgentID: "a1", DurationSeconds: 240},
			{ID: "c3", AgentID: "a2", DurationSeconds: 60},
		},
		CallTags: []CallTag{
			{CallID: "c1", TagCode: "empathy_shown", Score: 90},
			{CallID: "c2", TagCode: "price_anchor", Score: 40},
			{CallID: "c3", TagCode: "empathy_shown", Score: 70},
			{CallID: "orphan", TagCode: "empathy_shown", Score: 99},
		},
		Transcripts: []Transcript{
			{ID: "t1", DealID: "d1", AgentID: "a1", Content: "we can come on site today"},
			{ID: "t2", DealID: "d2", AgentID: "a1", Content: "price is fixed"},
			{ID: "t3", DealID: "d3", Content: "上门 检测"},
		},
		Tags: []Tag{
			{Code: "price_anchor", Name: "Price anchor", Active: true},
			{Code: "empathy_shown", Name: "Empathy", Active: true},
			{Code: "legacy", Name: "Legacy", Active: false},
		},
	}
}

func TestSource_OutcomeUnits(t *testing.T) {
	src := NewSourceFromTables(sampleTables())
	ctx := context.Background()

	units, err := src.OutcomeUnits(ctx, causal.Scope{})
	require.NoError(t, err)
	require.Len(t, units, 4)
	assert.True(t, units[0].Achieved(causal.MetricWon))
	assert.True(t, units[0].Achieved(causal.MetricOnsite))
	assert.False(t, units[1].Achieved(causal.MetricWon))

	units, err = src.OutcomeUnits(ctx, causal.Scope{Segment: "2"})
	require.NoError(t, err)
	assert.Len(t, units, 3)

	units, err = src.OutcomeUnits(ctx, causal.Scope{Segment: "2", RequireCallEvidence: true})
	require.NoError(t, err)
	require.Len(t, units, 2, "a3 has no calls")
	for _, u := range units {
		assert.NotEqual(t, core.AgentID("a3"), u.AgentID)
	}
}

func TestSource_Evidence(t *testing.T) {
	src := NewSourceFromTables(sampleTables())
	ctx := context.Background()

	all, err := src.TagEvidence(ctx, causal.Scope{}, "")
	require.NoError(t, err)
	assert.Len(t, all, 3, "orphan call tag is dropped")

	one, err := src.TagEvidence(ctx, causal.Scope{}, "empathy_shown")
	require.NoError(t, err)
	require.Len(t, one, 2)
	assert.Equal(t, core.AgentID("a1"), one[0].AgentID)
	assert.Equal(t, 90.0, one[0].Score)

	texts, err := src.TextEvidence(ctx, causal.Scope{Segment: "2"})
	require.NoError(t, err)
	require.Len(t, texts, 2)
	assert.Equal(t, core.AgentID("a2"), texts[1].AgentID, "agent falls back to the deal's agent")
	assert.Equal(t, core.UnitID("t3"), texts[1].UnitID)

	durations, err := src.DurationSamples(ctx, causal.Scope{Segment: "2"})
	require.NoError(t, err)
	assert.Len(t, durations, 3)

	tags, err := src.ActiveTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []causal.TagInfo{
		{Code: "empathy_shown", Name: "Empathy"},
		{Code: "price_anchor", Name: "Price anchor"},
	}, tags)
}

func TestSource_MissingFileIsDataUnavailable(t *testing.T) {
	src := NewSource(filepath.Join(t.TempDir(), "missing.xlsx"))
	_, err := src.OutcomeUnits(context.Background(), causal.Scope{})
	require.Error(t, err)
	assert.Equal(t, errors.CodeDataUnavailable, errors.GetCode(err))
	assert.Contains(t, err.Error(), "outcome_units")
}

func TestSource_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSourceFromTables(sampleTables()).ActiveTags(ctx)
	assert.Equal(t, errors.CodeDataUnavailable, errors.GetCode(err))
}

func TestWriteTables_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calls.xlsx")
	in := sampleTables()
	require.NoError(t, WriteTables(path, in))

	out, err := NewDataReader(path).ReadTables()
	require.NoError(t, err)
	assert.Equal(t, in.Deals, out.Deals)
	assert.Equal(t, in.Calls, out.Calls)
	assert.Equal(t, in.CallTags, out.CallTags)
	assert.Equal(t, in.Tags, out.Tags)
	assert.Equal(t, in.Transcripts, out.Transcripts)
}

func TestReadTables_CSVDirectory(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("deals.csv", "ID,Agent_ID,Outcome,is_onsite_completed,leak_area\n1,a1,WON,1,2\n2,a2,lost,0,2\n")
	write("calls.csv", "id,agent_id,duration\n10,a1,300\n11,a2,\n")

	tables, err := NewDataReader(dir).ReadTables()
	require.NoError(t, err)
	require.Len(t, tables.Deals, 2)
	assert.Equal(t, "won", tables.Deals[0].Outcome)
	assert.True(t, tables.Deals[0].OnsiteCompleted)
	assert.Equal(t, 0.0, tables.Calls[1].DurationSeconds)
	assert.Empty(t, tables.CallTags)
}

func TestReadTables_TranscriptIDOptional(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "deals.csv"),
		[]byte("id,agent_id,outcome,is_onsite_completed,leak_area\n1,a1,won,0,2\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "transcripts.csv"),
		[]byte("deal_id,agent_id,content\n1,a1,hello\n1,a1,免费上门\n"), 0o644))

	tables, err := NewDataReader(dir).ReadTables()
	require.NoError(t, err)
	require.Len(t, tables.Transcripts, 2)
	assert.Equal(t, "1", tables.Transcripts[0].ID)
	assert.Equal(t, "2", tables.Transcripts[1].ID)
}

// Every transcript row is its own evidence unit, so a deal with several
// transcripts weighs each of them in the keyword intensity.
func TestSource_TextEvidencePerTranscript(t *testing.T) {
	tables := &Tables{
		Deals: []Deal{
			{ID: "d1", AgentID: "a1", Outcome: "won"},
			{ID: "d2", AgentID: "a1", Outcome: "lost"},
		},
		Transcripts: []Transcript{
			{ID: "t1", DealID: "d1", AgentID: "a1", Content: "您好"},
			{ID: "t2", DealID: "d1", AgentID: "a1", Content: "可以免费检测"},
			{ID: "t3", DealID: "d1", AgentID: "a1", Content: "明天见"},
			{ID: "t4", DealID: "d2", AgentID: "a1", Content: "价格包含材料费"},
		},
	}
	ctx := context.Background()
	src := NewSourceFromTables(tables)

	texts, err := src.TextEvidence(ctx, causal.Scope{})
	require.NoError(t, err)
	require.Len(t, texts, 4)

	units, err := src.OutcomeUnits(ctx, causal.Scope{})
	require.NoError(t, err)
	records := covariate.Build(units, nil, 1)

	labels, err := treatment.Classify(causal.KeywordDefinition("free", "免费"), records,
		treatment.Evidence{Texts: texts}, causal.DefaultEngineConfig())
	require.NoError(t, err)
	require.Len(t, labels, 1)
	assert.Equal(t, 4, labels[0].EvidenceUnits)
	assert.Equal(t, 1, labels[0].MatchingUnits)
	assert.InDelta(t, 0.25, labels[0].Intensity, 1e-12)
}

func TestReadTables_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := NewDataReader(dir).ReadTables()
	assert.ErrorContains(t, err, "required sheet")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "deals.csv"), []byte("id,agent\n1,a1\n"), 0o644))
	_, err = NewDataReader(dir).ReadTables()
	assert.ErrorContains(t, err, "missing column")
}

func TestWriteReport(t *testing.T) {
	report := &causal.Report{
		RunID:       core.NewRunID(),
		GeneratedAt: time.Now(),
		Rows: []causal.EffectEstimate{
			{Definition: "empathy_shown", Metric: causal.MetricWon, NaiveATE: 0.12, MatchedATT: 0.03, ATTDefined: true, MatchCount: 4, SampleSizeTreated: 5, SampleSizeControl: 9, Bias: causal.BiasHigh},
			{Definition: "empathy_shown", Metric: causal.MetricOnsite, NaiveATE: 0.01},
		},
		Skipped: []causal.SkippedEntry{{Definition: "rare_tag", Reason: causal.ReasonInsufficientSample, Detail: "1 treated"}},
	}
	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, ReportFile{Path: path}.WriteReport(context.Background(), report))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{SheetEffects, SheetSkipped, SheetConsistency, SheetPairs}, f.GetSheetList())

	rows, err := f.GetRows(SheetEffects)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "empathy_shown", rows[1][0])
	naive, err := strconv.ParseFloat(rows[1][2], 64)
	require.NoError(t, err)
	assert.InDelta(t, 12.0, naive, 1e-9)
	assert.Equal(t, "", rows[2][3], "undefined ATT is left blank")
	assert.Equal(t, string(causal.BiasHigh), rows[1][5])
}
