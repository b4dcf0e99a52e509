package causal

import (
	"fmt"
	"strings"

	"gocausal/domain/core"
)

// OutcomeMetric names a binary business outcome counted per unit.
type OutcomeMetric string

const (
	MetricWon    OutcomeMetric = "won"
	MetricOnsite OutcomeMetric = "onsite"
)

var metricLabels = map[OutcomeMetric]string{
	MetricWon:    "Win rate",
	MetricOnsite: "Onsite rate",
}

// KnownMetrics returns every outcome metric the engine understands, in display order.
func KnownMetrics() []OutcomeMetric {
	return []OutcomeMetric{MetricWon, MetricOnsite}
}

// ParseMetric validates a metric name. Unknown names are configuration errors.
func ParseMetric(s string) (OutcomeMetric, error) {
	m := OutcomeMetric(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := metricLabels[m]; !ok {
		return "", fmt.Errorf("%w %q", core.ErrUnknownMetric, s)
	}
	return m, nil
}

// Valid reports whether m is a known metric.
func (m OutcomeMetric) Valid() bool {
	_, ok := metricLabels[m]
	return ok
}

// Label returns a human-readable name for report headers.
func (m OutcomeMetric) Label() string {
	if l, ok := metricLabels[m]; ok {
		return l
	}
	return string(m)
}

func (m OutcomeMetric) String() string { return string(m) }
