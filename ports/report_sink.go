package ports

import (
	"context"

	"gocausal/domain/causal"
)

// ReportSink receives finished reports.
type ReportSink interface {
	WriteReport(ctx context.Context, report *causal.Report) error
}
