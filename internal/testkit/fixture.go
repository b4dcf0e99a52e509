package testkit

import (
	"context"

	"gocausal/adapters/excel"
	"gocausal/internal/errors"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// FixtureRunner creates the call-center tables read by the SQL store and loads
// generated rows into them. The production schema is owned elsewhere; this is
// the subset the engine reads.
type FixtureRunner struct {
	version string
}

// NewFixtureRunner creates a new fixture runner
func NewFixtureRunner() *FixtureRunner {
	return &FixtureRunner{version: "1.0.0"}
}

// Version returns the fixture schema version
func (r *FixtureRunner) Version() string {
	return r.version
}

var fixtureSchema = []struct {
	table string
	ddl   string
}{
	{"sync_deals", `
		CREATE TABLE IF NOT EXISTS sync_deals (
			id INTEGER PRIMARY KEY,
			agent_id TEXT,
			outcome TEXT,
			is_onsite_completed INTEGER DEFAULT 0,
			leak_area TEXT
		)`},
	{"biz_calls", `
		CREATE TABLE IF NOT EXISTS biz_calls (
			id INTEGER PRIMARY KEY,
			agent_id TEXT,
			duration REAL
		)`},
	{"biz_call_tags", `
		CREATE TABLE IF NOT EXISTS biz_call_tags (
			call_id INTEGER NOT NULL,
			tag_id TEXT NOT NULL,
			score REAL
		)`},
	{"sync_transcripts", `
		CREATE TABLE IF NOT EXISTS sync_transcripts (
			id INTEGER PRIMARY KEY,
			deal_id INTEGER NOT NULL,
			agent_id TEXT,
			content TEXT
		)`},
	{"cfg_tags", `
		CREATE TABLE IF NOT EXISTS cfg_tags (
			code TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			active INTEGER DEFAULT 1
		)`},
}

// Run creates the fixture tables.
func (r *FixtureRunner) Run(ctx context.Context, db *sqlx.DB) error {
	for _, s := range fixtureSchema {
		if _, err := db.ExecContext(ctx, s.ddl); err != nil {
			return errors.Wrapf(err, "failed to create %s table", s.table)
		}
	}
	return nil
}

type dealRow struct {
	ID       string `db:"id"`
	AgentID  string `db:"agent_id"`
	Outcome  string `db:"outcome"`
	Onsite   int    `db:"is_onsite_completed"`
	LeakArea string `db:"leak_area"`
}

type callRow struct {
	ID       string  `db:"id"`
	AgentID  string  `db:"agent_id"`
	Duration float64 `db:"duration"`
}

type callTagRow struct {
	CallID string  `db:"call_id"`
	TagID  string  `db:"tag_id"`
	Score  float64 `db:"score"`
}

type transcriptRow struct {
	ID      string `db:"id"`
	DealID  string `db:"deal_id"`
	AgentID string `db:"agent_id"`
	Content string `db:"content"`
}

type tagRow struct {
	Code   string `db:"code"`
	Name   string `db:"name"`
	Active int    `db:"active"`
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Seed inserts tables in a single transaction.
func (r *FixtureRunner) Seed(ctx context.Context, db *sqlx.DB, t *excel.Tables) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin seed transaction")
	}
	defer tx.Rollback()

	insert := func(query string, rows []interface{}) error {
		stmt, err := tx.PrepareNamedContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, row := range rows {
			if _, err := stmt.ExecContext(ctx, row); err != nil {
				return err
			}
		}
		return nil
	}

	var deals, calls, callTags, transcripts, tags []interface{}
	for _, d := range t.Deals {
		deals = append(deals, dealRow{ID: d.ID, AgentID: d.AgentID, Outcome: d.Outcome, Onsite: boolInt(d.OnsiteCompleted), LeakArea: d.Segment})
	}
	for _, c := range t.Calls {
		calls = append(calls, callRow{ID: c.ID, AgentID: c.AgentID, Duration: c.DurationSeconds})
	}
	for _, ct := range t.CallTags {
		callTags = append(callTags, callTagRow{CallID: ct.CallID, TagID: ct.TagCode, Score: ct.Score})
	}
	for _, tr := range t.Transcripts {
		transcripts = append(transcripts, transcriptRow{ID: tr.ID, DealID: tr.DealID, AgentID: tr.AgentID, Content: tr.Content})
	}
	for _, tag := range t.Tags {
		tags = append(tags, tagRow{Code: tag.Code, Name: tag.Name, Active: boolInt(tag.Active)})
	}

	steps := []struct {
		table string
		query string
		rows  []interface{}
	}{
		{"sync_deals", `INSERT INTO sync_deals (id, agent_id, outcome, is_onsite_completed, leak_area)
			VALUES (:id, :agent_id, :outcome, :is_onsite_completed, :leak_area)`, deals},
		{"biz_calls", `INSERT INTO biz_calls (id, agent_id, duration) VALUES (:id, :agent_id, :duration)`, calls},
		{"biz_call_tags", `INSERT INTO biz_call_tags (call_id, tag_id, score) VALUES (:call_id, :tag_id, :score)`, callTags},
		{"sync_transcripts", `INSERT INTO sync_transcripts (id, deal_id, agent_id, content) VALUES (:id, :deal_id, :agent_id, :content)`, transcripts},
		{"cfg_tags", `INSERT INTO cfg_tags (code, name, active) VALUES (:code, :name, :active)`, tags},
	}
	for _, s := range steps {
		if err := insert(s.query, s.rows); err != nil {
			return errors.Wrapf(err, "failed to seed %s", s.table)
		}
	}
	return tx.Commit()
}

// NewSQLiteFixture opens a SQLite database at path, creates the schema and seeds it.
// Callers own the returned handle.
func NewSQLiteFixture(ctx context.Context, path string, t *excel.Tables) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open sqlite fixture")
	}
	r := NewFixtureRunner()
	if err := r.Run(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	if err := r.Seed(ctx, db, t); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
