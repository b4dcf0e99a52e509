package app

import (
	"context"
	stderrors "errors"
	"sort"
	"time"

	"gocausal/domain/causal"
	"gocausal/domain/core"
	"gocausal/internal"
	"gocausal/internal/consistency"
	"gocausal/internal/covariate"
	"gocausal/internal/effect"
	"gocausal/internal/errors"
	"gocausal/internal/matching"
	"gocausal/internal/metrics"
	"gocausal/internal/plan"
	"gocausal/internal/propensity"
	"gocausal/internal/treatment"
	"gocausal/ports"

	"golang.org/x/sync/errgroup"
)

// EffectAnalysisService runs the per-definition pipeline
// units -> covariates + labels -> propensity -> matching -> estimates
// and assembles the run report.
type EffectAnalysisService struct {
	source      ports.UnitSource
	logger      *internal.Logger
	metrics     *metrics.Recorder
	parallelism int
	now         func() time.Time
	model       propensity.Model
}

// Option configures the service.
type Option func(*EffectAnalysisService)

// WithLogger sets the logger; the default is internal.DefaultLogger.
func WithLogger(l *internal.Logger) Option {
	return func(s *EffectAnalysisService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records run statistics into r.
func WithMetrics(r *metrics.Recorder) Option {
	return func(s *EffectAnalysisService) { s.metrics = r }
}

// WithParallelism analyses up to n definitions concurrently. Each worker fetches
// and normalizes its own population.
func WithParallelism(n int) Option {
	return func(s *EffectAnalysisService) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

// WithClock overrides the report timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *EffectAnalysisService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithModel fits propensities with m instead of the model named by the engine config.
func WithModel(m propensity.Model) Option {
	return func(s *EffectAnalysisService) { s.model = m }
}

// NewEffectAnalysisService creates the service over a unit source.
func NewEffectAnalysisService(source ports.UnitSource, opts ...Option) *EffectAnalysisService {
	s := &EffectAnalysisService{
		source:      source,
		logger:      internal.DefaultLogger,
		parallelism: 1,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("effects")
	return s
}

// definitionResult is the outcome of one definition; skipped is set when the
// definition is absent from the rows.
type definitionResult struct {
	estimates []causal.EffectEstimate
	skipped   []causal.SkippedEntry
	summary   *causal.DefinitionSummary
}

// Run validates the plan, analyses every definition and returns the report.
// Insufficient samples and failed propensity fits become skipped entries;
// configuration and data errors
// abort the run without a partial report.
func (s *EffectAnalysisService) Run(ctx context.Context, p plan.Plan) (*causal.Report, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	cfg := p.Engine

	model := s.model
	if model == nil {
		m, err := propensity.New(cfg.PropensityModel)
		if err != nil {
			return nil, errors.ConfigInvalidf(err, "propensity model")
		}
		model = m
	}
	matcher, err := matching.New(cfg.Matcher)
	if err != nil {
		return nil, errors.ConfigInvalidf(err, "matcher")
	}

	defs, err := s.definitions(ctx, p)
	if err != nil {
		s.logger.Error("expanding definitions: %v", err)
		return nil, err
	}
	s.logger.Info("run %q: %d definitions, %d metrics, model=%s matcher=%s caliper=%g",
		p.Name, len(defs), len(cfg.Metrics), model.Name(), matcher.Name(), cfg.Caliper)

	results := make([]definitionResult, len(defs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, def := range defs {
		i, def := i, def
		g.Go(func() error {
			r, err := s.analyse(gctx, def, cfg, model, matcher)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error("run aborted: %v", err)
		return nil, err
	}

	report := &causal.Report{
		RunID:       core.NewRunID(),
		GeneratedAt: s.now(),
		Config:      cfg,
	}
	for _, r := range results {
		report.Rows = append(report.Rows, r.estimates...)
		report.Skipped = append(report.Skipped, r.skipped...)
		if r.summary != nil {
			report.Summaries = append(report.Summaries, *r.summary)
		}
	}
	if p.Sort == plan.SortATT {
		sortByATT(report.Rows)
	}
	report.Consistency = consistency.Compare(report.Rows)

	s.metrics.RunSucceeded(report.GeneratedAt)
	s.logger.Info("run %s: %d rows, %d skipped", report.RunID, len(report.Rows), len(report.Skipped))
	return report, nil
}

// definitions returns the plan's definitions, followed by one tag definition per
// active catalogue tag when the plan asks for all of them.
func (s *EffectAnalysisService) definitions(ctx context.Context, p plan.Plan) ([]causal.TreatmentDefinition, error) {
	defs := append([]causal.TreatmentDefinition(nil), p.Definitions...)
	if !p.AllActiveTags {
		return defs, nil
	}

	tags, err := s.source.ActiveTags(ctx)
	if err != nil {
		s.metrics.QueryFailed(ports.QueryActiveTags)
		return nil, unavailable("", ports.QueryActiveTags, err)
	}
	listed := make(map[string]bool, len(defs))
	for _, d := range defs {
		listed[d.Label()] = true
		if d.Kind == causal.KindTag {
			listed[d.TagCode] = true
		}
	}
	for _, t := range tags {
		if listed[t.Code] {
			continue
		}
		defs = append(defs, causal.TagDefinition(t.Code))
	}
	return defs, nil
}

type fetched struct {
	units     []causal.Unit
	durations []causal.DurationSample
	evidence  treatment.Evidence
}

// fetch runs the covariate and evidence queries of one definition concurrently.
func (s *EffectAnalysisService) fetch(ctx context.Context, def causal.TreatmentDefinition, scope causal.Scope) (fetched, error) {
	var f fetched
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		units, err := s.source.OutcomeUnits(gctx, scope)
		if err != nil {
			s.metrics.QueryFailed(ports.QueryOutcomeUnits)
			return unavailable(def.Label(), ports.QueryOutcomeUnits, err)
		}
		durations, err := s.source.DurationSamples(gctx, scope)
		if err != nil {
			s.metrics.QueryFailed(ports.QueryDurationSamples)
			return unavailable(def.Label(), ports.QueryDurationSamples, err)
		}
		f.units, f.durations = units, durations
		return nil
	})
	g.Go(func() error {
		switch def.Kind {
		case causal.KindTag:
			tags, err := s.source.TagEvidence(gctx, scope, "")
			if err != nil {
				s.metrics.QueryFailed(ports.QueryTagEvidence)
				return unavailable(def.Label(), ports.QueryTagEvidence, err)
			}
			f.evidence.Tags = tags
		case causal.KindKeyword:
			texts, err := s.source.TextEvidence(gctx, scope)
			if err != nil {
				s.metrics.QueryFailed(ports.QueryTextEvidence)
				return unavailable(def.Label(), ports.QueryTextEvidence, err)
			}
			f.evidence.Texts = texts
		}
		return nil
	})
	return f, g.Wait()
}

func (s *EffectAnalysisService) analyse(ctx context.Context, def causal.TreatmentDefinition, cfg causal.EngineConfig,
	model propensity.Model, matcher matching.Matcher) (definitionResult, error) {
	start := time.Now()
	name := def.Label()
	log := s.logger.Named(name)

	data, err := s.fetch(ctx, def, cfg.Scope)
	if err != nil {
		return definitionResult{}, err
	}

	records := covariate.Build(data.units, data.durations, cfg.MinUnits)
	labels, err := treatment.Classify(def, records, data.evidence, cfg)
	if err != nil {
		return definitionResult{}, errors.WithDefinition(errors.ConfigInvalidf(err, "treatment definition"), name)
	}
	treated, control := treatment.Partition(labels)
	log.Debug("%d units, %d agents with >= %d units, %d treated, %d control",
		len(data.units), len(records), cfg.MinUnits, len(treated), len(control))

	if err := treatment.CheckSample(labels); err != nil {
		log.Warn("skipped: %v", err)
		s.metrics.DefinitionSkipped(name, time.Since(start))
		return definitionResult{skipped: []causal.SkippedEntry{{
			Definition: name,
			Reason:     causal.ReasonInsufficientSample,
			Detail:     err.Error(),
		}}}, nil
	}

	vectors := covariate.Normalize(records)
	treatedSet := treatment.TreatedSet(labels)
	scorer, err := model.Fit(vectors, treatedSet)
	if err != nil {
		log.Warn("skipped: propensity fit: %v", err)
		s.metrics.DefinitionSkipped(name, time.Since(start))
		return definitionResult{skipped: []causal.SkippedEntry{{
			Definition: name,
			Reason:     causal.ReasonPropensityFit,
			Detail:     err.Error(),
		}}}, nil
	}
	tScores, cScores := propensity.Split(propensity.ScoreAll(scorer, vectors), treatedSet)
	pairs := matcher.Match(tScores, cScores, cfg.Caliper)
	if err := matching.Verify(pairs, cfg.Caliper); err != nil {
		return definitionResult{}, errors.WithDefinition(errors.Wrap(err, "matching produced an invalid pair set"), name)
	}

	index := covariate.Index(records)
	var res definitionResult
	for _, m := range cfg.Metrics {
		est, err := effect.Estimate(effect.Input{
			Definition:    name,
			Metric:        m,
			Records:       index,
			Treated:       treated,
			Control:       control,
			Pairs:         pairs,
			BiasThreshold: cfg.BiasThreshold,
		})
		if err != nil {
			return definitionResult{}, errors.WithDefinition(errors.Wrapf(err, "estimating %s", m), name)
		}
		res.estimates = append(res.estimates, est)
		if !est.ATTDefined {
			res.skipped = append(res.skipped, causal.SkippedEntry{
				Definition: name,
				Metric:     m,
				Reason:     causal.ReasonInsufficientMatches,
				Detail:     core.NewInsufficientMatchesError(len(pairs)).Error(),
			})
		}
		s.metrics.Estimate(string(m), string(est.Bias))
	}

	res.summary = &causal.DefinitionSummary{
		Definition:  name,
		Population:  len(records),
		Treated:     len(treated),
		Control:     len(control),
		Matched:     len(pairs),
		Fingerprint: matching.Fingerprint(pairs),
		SamplePairs: samplePairs(pairs, index, cfg.SamplePairs),
	}

	took := time.Since(start)
	s.metrics.DefinitionAnalysed(name, len(pairs), took)
	log.Info("%d agents (%d treated / %d control), %d matched pairs in %s",
		len(records), len(treated), len(control), len(pairs), took.Round(time.Millisecond))
	return res, nil
}

func samplePairs(pairs []causal.MatchedPair, index map[core.AgentID]causal.AgentRecord, n int) []causal.PairDetail {
	if n > len(pairs) {
		n = len(pairs)
	}
	out := make([]causal.PairDetail, 0, n)
	for _, p := range pairs[:n] {
		out = append(out, causal.PairDetail{Pair: p, Treated: index[p.Treated], Control: index[p.Control]})
	}
	return out
}

// sortByATT orders rows by matched ATT descending; rows without an ATT go last.
func sortByATT(rows []causal.EffectEstimate) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].ATTDefined != rows[j].ATTDefined {
			return rows[i].ATTDefined
		}
		return rows[i].MatchedATT > rows[j].MatchedATT
	})
}

// unavailable turns a source failure into a DataUnavailable error naming the
// definition and query.
func unavailable(definition, query string, err error) error {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) && appErr.Code == errors.CodeDataUnavailable {
		if appErr.Query == "" {
			cp := *appErr
			cp.Query = query
			return errors.WithDefinition(&cp, definition)
		}
		return errors.WithDefinition(err, definition)
	}
	return errors.DataUnavailable(definition, query, err)
}
