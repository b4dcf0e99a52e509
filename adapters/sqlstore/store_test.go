package sqlstore

import (
	"context"
	"path/filepath"
	"testing"

	"gocausal/adapters/excel"
	"gocausal/domain/causal"
	"gocausal/domain/core"
	"gocausal/internal/errors"
	"gocausal/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(t *testing.T) (*Store, *excel.Tables) {
	t.Helper()
	cfg := testkit.DefaultCallCenterConfig()
	cfg.AgentCount = 10
	cfg.MaxDeals = 8
	tables, _, err := testkit.NewCallCenterGenerator(cfg).Generate()
	require.NoError(t, err)

	db, err := testkit.NewSQLiteFixture(context.Background(), filepath.Join(t.TempDir(), "team-calls.db"), tables)
	require.NoError(t, err)
	s := New(db)
	t.Cleanup(func() { s.Close() })
	return s, tables
}

// The SQL store and the workbook source must agree on the same data.
func TestStore_MatchesWorkbookSource(t *testing.T) {
	store, tables := seeded(t)
	mem := excel.NewSourceFromTables(tables)
	ctx := context.Background()

	for _, scope := range []causal.Scope{{}, {Segment: "2"}, {Segment: "2", RequireCallEvidence: true}} {
		want, err := mem.OutcomeUnits(ctx, scope)
		require.NoError(t, err)
		got, err := store.OutcomeUnits(ctx, scope)
		require.NoError(t, err)
		assert.ElementsMatch(t, want, got, "scope %+v", scope)

		wantText, err := mem.TextEvidence(ctx, scope)
		require.NoError(t, err)
		gotText, err := store.TextEvidence(ctx, scope)
		require.NoError(t, err)
		assert.ElementsMatch(t, wantText, gotText, "scope %+v", scope)
	}

	wantDur, err := mem.DurationSamples(ctx, causal.Scope{})
	require.NoError(t, err)
	gotDur, err := store.DurationSamples(ctx, causal.Scope{})
	require.NoError(t, err)
	assert.ElementsMatch(t, wantDur, gotDur)

	for _, code := range []string{"", "empathy_shown"} {
		wantTags, err := mem.TagEvidence(ctx, causal.Scope{}, code)
		require.NoError(t, err)
		gotTags, err := store.TagEvidence(ctx, causal.Scope{}, code)
		require.NoError(t, err)
		assert.ElementsMatch(t, wantTags, gotTags, "tag %q", code)
	}

	wantCat, err := mem.ActiveTags(ctx)
	require.NoError(t, err)
	gotCat, err := store.ActiveTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, wantCat, gotCat)
}

func TestStore_SegmentFilter(t *testing.T) {
	store, tables := seeded(t)
	units, err := store.OutcomeUnits(context.Background(), causal.Scope{Segment: "3"})
	require.NoError(t, err)

	inSegment := map[core.UnitID]bool{}
	for _, d := range tables.Deals {
		if d.Segment == "3" {
			inSegment[core.UnitID(d.ID)] = true
		}
	}
	assert.Len(t, units, len(inSegment))
	for _, u := range units {
		assert.True(t, inSegment[u.ID], u.ID)
	}
}

func TestStore_ClosedDatabaseIsDataUnavailable(t *testing.T) {
	store, _ := seeded(t)
	require.NoError(t, store.Close())

	_, err := store.OutcomeUnits(context.Background(), causal.Scope{})
	require.Error(t, err)
	assert.Equal(t, errors.CodeDataUnavailable, errors.GetCode(err))
	assert.Contains(t, err.Error(), "query=outcome_units")

	_, err = store.ActiveTags(context.Background())
	assert.Equal(t, errors.CodeDataUnavailable, errors.GetCode(err))
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "root@/calls")
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestOpen_SQLite(t *testing.T) {
	s, err := Open(context.Background(), "sqlite3", filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.ActiveTags(context.Background())
	assert.Equal(t, errors.CodeDataUnavailable, errors.GetCode(err), "missing table")
}

func TestStore_TextEvidencePerTranscript(t *testing.T) {
	tables := &excel.Tables{
		Deals: []excel.Deal{
			{ID: "1", AgentID: "a1", Outcome: "won", Segment: "2"},
			{ID: "2", AgentID: "a1", Outcome: "lost", Segment: "3"},
		},
		Transcripts: []excel.Transcript{
			{ID: "10", DealID: "1", AgentID: "a1", Content: "您好"},
			{ID: "11", DealID: "1", AgentID: "a1", Content: "可以免费检测"},
			{ID: "12", DealID: "1", Content: "明天见"},
			{ID: "13", DealID: "2", AgentID: "a1", Content: "价格包含材料费"},
		},
	}
	ctx := context.Background()
	db, err := testkit.NewSQLiteFixture(ctx, filepath.Join(t.TempDir(), "transcripts.db"), tables)
	require.NoError(t, err)
	store := New(db)
	defer store.Close()

	texts, err := store.TextEvidence(ctx, causal.Scope{})
	require.NoError(t, err)
	require.Len(t, texts, 4)
	assert.Equal(t, []core.UnitID{"10", "11", "12", "13"},
		[]core.UnitID{texts[0].UnitID, texts[1].UnitID, texts[2].UnitID, texts[3].UnitID})
	assert.Equal(t, core.AgentID("a1"), texts[2].AgentID)

	texts, err = store.TextEvidence(ctx, causal.Scope{Segment: "2"})
	require.NoError(t, err)
	assert.Len(t, texts, 3)
}
