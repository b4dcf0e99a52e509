package render

import (
	"context"
	"io"

	"gocausal/domain/causal"
	"gocausal/ports"
)

// Sink renders every report it receives to W.
type Sink struct {
	W      io.Writer
	Format Format
}

var _ ports.ReportSink = Sink{}

// WriteReport implements ports.ReportSink.
func (s Sink) WriteReport(ctx context.Context, report *causal.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return Render(s.W, report, s.Format)
}
