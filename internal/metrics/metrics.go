// Package metrics records run statistics of the effect engine in a Prometheus
// registry. Batch runs have no scrape endpoint, so the registry is written as a
// node-exporter textfile at the end of a run.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Option applies a configuration option to the Recorder.
type Option func(*Recorder)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(r *Recorder) {
		if namespace != "" {
			r.namespace = namespace
		}
	}
}

// WithRegistry uses reg instead of a fresh registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(r *Recorder) {
		if reg != nil {
			r.registry = reg
		}
	}
}

// WithHistogramBuckets sets custom buckets for the per-definition duration histogram.
func WithHistogramBuckets(buckets []float64) Option {
	return func(r *Recorder) {
		if len(buckets) > 0 {
			r.buckets = buckets
		}
	}
}

// Recorder holds the engine metrics. A nil *Recorder is valid and records nothing.
type Recorder struct {
	namespace string
	registry  *prometheus.Registry
	buckets   []float64

	definitions        *prometheus.CounterVec
	estimates          *prometheus.CounterVec
	fetchErrors        *prometheus.CounterVec
	matchedPairs       *prometheus.GaugeVec
	definitionDuration prometheus.Histogram
	lastSuccess        prometheus.Gauge
}

// NewRecorder creates a recorder with its own registry.
func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{
		namespace: "gocausal",
		registry:  prometheus.NewRegistry(),
		buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	}
	for _, opt := range opts {
		opt(r)
	}

	f := promauto.With(r.registry)
	r.definitions = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: "engine",
		Name:      "definitions_total",
		Help:      "Treatment definitions processed, by outcome (analysed or skipped).",
	}, []string{"outcome"})
	r.estimates = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: "engine",
		Name:      "estimates_total",
		Help:      "Effect estimates emitted, by outcome metric and bias flag.",
	}, []string{"metric", "bias"})
	r.fetchErrors = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: "source",
		Name:      "query_errors_total",
		Help:      "Failed rollup queries, by query name.",
	}, []string{"query"})
	r.matchedPairs = f.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: r.namespace,
		Subsystem: "engine",
		Name:      "matched_pairs",
		Help:      "Matched pairs of the last run, by treatment definition.",
	}, []string{"definition"})
	r.definitionDuration = f.NewHistogram(prometheus.HistogramOpts{
		Namespace: r.namespace,
		Subsystem: "engine",
		Name:      "definition_duration_seconds",
		Help:      "Wall time to fetch, match and estimate one treatment definition.",
		Buckets:   r.buckets,
	})
	r.lastSuccess = f.NewGauge(prometheus.GaugeOpts{
		Namespace: r.namespace,
		Subsystem: "engine",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix time of the last run that produced a report.",
	})
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// DefinitionAnalysed records a definition that produced rows.
func (r *Recorder) DefinitionAnalysed(definition string, pairs int, took time.Duration) {
	if r == nil {
		return
	}
	r.definitions.WithLabelValues("analysed").Inc()
	r.matchedPairs.WithLabelValues(definition).Set(float64(pairs))
	r.definitionDuration.Observe(took.Seconds())
}

// DefinitionSkipped records a definition dropped for insufficient sample.
func (r *Recorder) DefinitionSkipped(definition string, took time.Duration) {
	if r == nil {
		return
	}
	r.definitions.WithLabelValues("skipped").Inc()
	r.definitionDuration.Observe(took.Seconds())
}

// Estimate records one emitted estimate.
func (r *Recorder) Estimate(metric, bias string) {
	if r == nil {
		return
	}
	if bias == "" {
		bias = "undefined"
	}
	r.estimates.WithLabelValues(metric, bias).Inc()
}

// QueryFailed records a failed data source query.
func (r *Recorder) QueryFailed(query string) {
	if r == nil {
		return
	}
	r.fetchErrors.WithLabelValues(query).Inc()
}

// RunSucceeded stamps the last successful run.
func (r *Recorder) RunSucceeded(at time.Time) {
	if r == nil {
		return
	}
	r.lastSuccess.Set(float64(at.Unix()))
}

// WriteTextfile writes the registry in the text exposition format, atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
