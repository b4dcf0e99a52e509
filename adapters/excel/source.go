package excel

import (
	"context"
	"sort"
	"strings"
	"sync"

	"gocausal/domain/causal"
	"gocausal/domain/core"
	"gocausal/internal/errors"
	"gocausal/ports"
)

// Source serves the unit source contract from workbook tables held in memory.
type Source struct {
	path string

	once   sync.Once
	tables *Tables
	err    error
}

// NewSource returns a source that reads path lazily on first use.
func NewSource(path string) *Source {
	return &Source{path: path}
}

// NewSourceFromTables serves already-loaded tables.
func NewSourceFromTables(t *Tables) *Source {
	s := &Source{tables: t}
	s.once.Do(func() {})
	return s
}

var _ ports.UnitSource = (*Source)(nil)

func (s *Source) load(query string) (*Tables, error) {
	s.once.Do(func() {
		s.tables, s.err = NewDataReader(s.path).ReadTables()
	})
	if s.err != nil {
		return nil, errors.DataUnavailable("", query, s.err)
	}
	return s.tables, nil
}

// OutcomeUnits returns one unit per deal.
func (s *Source) OutcomeUnits(ctx context.Context, scope causal.Scope) ([]causal.Unit, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.DataUnavailable("", ports.QueryOutcomeUnits, err)
	}
	t, err := s.load(ports.QueryOutcomeUnits)
	if err != nil {
		return nil, err
	}

	var callers map[string]bool
	if scope.RequireCallEvidence {
		callers = make(map[string]bool)
		for _, c := range t.Calls {
			callers[c.AgentID] = true
		}
	}

	units := make([]causal.Unit, 0, len(t.Deals))
	for _, d := range t.Deals {
		if !inSegment(d, scope) || (callers != nil && !callers[d.AgentID]) {
			continue
		}
		units = append(units, causal.Unit{
			ID:      core.UnitID(d.ID),
			AgentID: core.AgentID(d.AgentID),
			Outcomes: map[causal.OutcomeMetric]bool{
				causal.MetricWon:    d.Outcome == "won",
				causal.MetricOnsite: d.OnsiteCompleted,
			},
		})
	}
	return units, nil
}

// DurationSamples returns every call duration. Calls carry no segment, so the scope is not applied.
func (s *Source) DurationSamples(ctx context.Context, scope causal.Scope) ([]causal.DurationSample, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.DataUnavailable("", ports.QueryDurationSamples, err)
	}
	t, err := s.load(ports.QueryDurationSamples)
	if err != nil {
		return nil, err
	}
	out := make([]causal.DurationSample, 0, len(t.Calls))
	for _, c := range t.Calls {
		if c.AgentID == "" {
			continue
		}
		out = append(out, causal.DurationSample{AgentID: core.AgentID(c.AgentID), Seconds: c.DurationSeconds})
	}
	return out, nil
}

// TagEvidence joins call tags to their calls. An empty tagCode returns every tag.
func (s *Source) TagEvidence(ctx context.Context, scope causal.Scope, tagCode string) ([]causal.TagEvidence, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.DataUnavailable("", ports.QueryTagEvidence, err)
	}
	t, err := s.load(ports.QueryTagEvidence)
	if err != nil {
		return nil, err
	}
	agentOf := make(map[string]string, len(t.Calls))
	for _, c := range t.Calls {
		agentOf[c.ID] = c.AgentID
	}
	var out []causal.TagEvidence
	for _, ct := range t.CallTags {
		if tagCode != "" && ct.TagCode != tagCode {
			continue
		}
		agent, ok := agentOf[ct.CallID]
		if !ok || agent == "" {
			continue
		}
		out = append(out, causal.TagEvidence{
			UnitID:  core.UnitID(ct.CallID),
			AgentID: core.AgentID(agent),
			TagCode: ct.TagCode,
			Score:   ct.Score,
		})
	}
	return out, nil
}

// TextEvidence returns one unit per transcript row whose deal lies in the
// scope's segment.
func (s *Source) TextEvidence(ctx context.Context, scope causal.Scope) ([]causal.TextEvidence, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.DataUnavailable("", ports.QueryTextEvidence, err)
	}
	t, err := s.load(ports.QueryTextEvidence)
	if err != nil {
		return nil, err
	}
	deals := make(map[string]Deal, len(t.Deals))
	for _, d := range t.Deals {
		deals[d.ID] = d
	}
	var out []causal.TextEvidence
	for _, tr := range t.Transcripts {
		d, ok := deals[tr.DealID]
		if !ok || !inSegment(d, scope) {
			continue
		}
		agent := tr.AgentID
		if agent == "" {
			agent = d.AgentID
		}
		out = append(out, causal.TextEvidence{
			UnitID:  core.UnitID(tr.ID),
			AgentID: core.AgentID(agent),
			Text:    tr.Content,
		})
	}
	return out, nil
}

// ActiveTags returns active catalogue entries ordered by code.
func (s *Source) ActiveTags(ctx context.Context) ([]causal.TagInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.DataUnavailable("", ports.QueryActiveTags, err)
	}
	t, err := s.load(ports.QueryActiveTags)
	if err != nil {
		return nil, err
	}
	var out []causal.TagInfo
	for _, tag := range t.Tags {
		if tag.Active {
			out = append(out, causal.TagInfo{Code: tag.Code, Name: tag.Name})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func inSegment(d Deal, scope causal.Scope) bool {
	return scope.Segment == "" || strings.Contains(d.Segment, scope.Segment)
}
