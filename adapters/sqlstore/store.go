// Package sqlstore reads call-center rollups from a relational store through sqlx.
// Postgres (lib/pq) and SQLite (mattn/go-sqlite3) are supported; queries are
// written with ? placeholders and rebound for the active driver.
package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"gocausal/domain/causal"
	"gocausal/domain/core"
	"gocausal/internal/errors"
	"gocausal/ports"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Store implements ports.UnitSource over the call-center schema.
type Store struct {
	db *sqlx.DB
}

var _ ports.UnitSource = (*Store)(nil)

// Open connects with driver "postgres" or "sqlite3" and pings the database.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch driver {
	case "postgres", "sqlite3":
	default:
		return nil, errors.ConfigInvalid(fmt.Sprintf("unsupported database driver %q", driver))
	}
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, errors.DataUnavailable("", "connect", err)
	}
	return &Store{db: db}, nil
}

// New wraps an existing connection.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the connection for callers that share it.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

type unitRow struct {
	UnitID  string `db:"unit_id"`
	AgentID string `db:"agent_id"`
	Won     int    `db:"won"`
	Onsite  int    `db:"onsite"`
}

type durationRow struct {
	AgentID string  `db:"agent_id"`
	Seconds float64 `db:"seconds"`
}

// dealFilter renders the scope as a WHERE fragment over sync_deals aliased sd.
func dealFilter(scope causal.Scope) (string, []interface{}) {
	var (
		clauses []string
		args    []interface{}
	)
	if scope.Segment != "" {
		clauses = append(clauses, "sd.leak_area LIKE ?")
		args = append(args, "%"+scope.Segment+"%")
	}
	if scope.RequireCallEvidence {
		clauses = append(clauses, "sd.agent_id IN (SELECT DISTINCT agent_id FROM biz_calls)")
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " AND " + strings.Join(clauses, " AND "), args
}

// OutcomeUnits returns one unit per deal with its won and onsite outcomes.
func (s *Store) OutcomeUnits(ctx context.Context, scope causal.Scope) ([]causal.Unit, error) {
	filter, args := dealFilter(scope)
	query := s.db.Rebind(`
		SELECT
			CAST(sd.id AS TEXT) AS unit_id,
			CAST(sd.agent_id AS TEXT) AS agent_id,
			CASE WHEN sd.outcome = 'won' THEN 1 ELSE 0 END AS won,
			CASE WHEN sd.is_onsite_completed = 1 THEN 1 ELSE 0 END AS onsite
		FROM sync_deals sd
		WHERE sd.agent_id IS NOT NULL` + filter + `
		ORDER BY sd.id`)

	var rows []unitRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.DataUnavailable("", ports.QueryOutcomeUnits, err)
	}
	units := make([]causal.Unit, len(rows))
	for i, r := range rows {
		units[i] = causal.Unit{
			ID:      core.UnitID(r.UnitID),
			AgentID: core.AgentID(r.AgentID),
			Outcomes: map[causal.OutcomeMetric]bool{
				causal.MetricWon:    r.Won == 1,
				causal.MetricOnsite: r.Onsite == 1,
			},
		}
	}
	return units, nil
}

// DurationSamples returns every call duration; calls carry no segment.
func (s *Store) DurationSamples(ctx context.Context, scope causal.Scope) ([]causal.DurationSample, error) {
	query := `
		SELECT CAST(agent_id AS TEXT) AS agent_id, COALESCE(duration, 0) AS seconds
		FROM biz_calls
		WHERE agent_id IS NOT NULL`

	var rows []durationRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, errors.DataUnavailable("", ports.QueryDurationSamples, err)
	}
	out := make([]causal.DurationSample, len(rows))
	for i, r := range rows {
		out[i] = causal.DurationSample{AgentID: core.AgentID(r.AgentID), Seconds: r.Seconds}
	}
	return out, nil
}

// TagEvidence joins tag scores to calls. An empty tagCode returns every tag.
func (s *Store) TagEvidence(ctx context.Context, scope causal.Scope, tagCode string) ([]causal.TagEvidence, error) {
	query := `
		SELECT
			CAST(bt.call_id AS TEXT) AS unit_id,
			CAST(bc.agent_id AS TEXT) AS agent_id,
			bt.tag_id AS tag_code,
			COALESCE(bt.score, 0) AS score
		FROM biz_call_tags bt
		JOIN biz_calls bc ON bt.call_id = bc.id
		WHERE bc.agent_id IS NOT NULL`
	var args []interface{}
	if tagCode != "" {
		query += ` AND bt.tag_id = ?`
		args = append(args, tagCode)
	}
	query += ` ORDER BY bt.call_id, bt.tag_id`

	var out []causal.TagEvidence
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(query), args...); err != nil {
		return nil, errors.DataUnavailable("", ports.QueryTagEvidence, err)
	}
	return out, nil
}

// TextEvidence returns one unit per transcript row of deals within the scope's segment.
func (s *Store) TextEvidence(ctx context.Context, scope causal.Scope) ([]causal.TextEvidence, error) {
	var (
		filter string
		args   []interface{}
	)
	if scope.Segment != "" {
		filter = " AND sd.leak_area LIKE ?"
		args = append(args, "%"+scope.Segment+"%")
	}
	query := s.db.Rebind(`
		SELECT
			CAST(st.id AS TEXT) AS unit_id,
			CAST(COALESCE(NULLIF(st.agent_id, ''), sd.agent_id) AS TEXT) AS agent_id,
			COALESCE(st.content, '') AS content
		FROM sync_transcripts st
		JOIN sync_deals sd ON st.deal_id = sd.id
		WHERE COALESCE(NULLIF(st.agent_id, ''), sd.agent_id) IS NOT NULL` + filter + `
		ORDER BY st.id`)

	var out []causal.TextEvidence
	if err := s.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, errors.DataUnavailable("", ports.QueryTextEvidence, err)
	}
	return out, nil
}

// ActiveTags returns the active tag catalogue ordered by code.
func (s *Store) ActiveTags(ctx context.Context) ([]causal.TagInfo, error) {
	var out []causal.TagInfo
	err := s.db.SelectContext(ctx, &out, `SELECT code, name FROM cfg_tags WHERE active = 1 ORDER BY code`)
	if err != nil {
		return nil, errors.DataUnavailable("", ports.QueryActiveTags, err)
	}
	return out, nil
}
