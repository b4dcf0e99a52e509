package excel

import (
	"context"
	"fmt"
	"strconv"

	"gocausal/domain/causal"
	"gocausal/ports"

	"github.com/xuri/excelize/v2"
)

// Report sheet names.
const (
	SheetEffects     = "effects"
	SheetSkipped     = "skipped"
	SheetConsistency = "consistency"
	SheetPairs       = "pairs"
)

type sheetWriter struct {
	f    *excelize.File
	bold int
}

func newSheetWriter() (*sheetWriter, error) {
	f := excelize.NewFile()
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	return &sheetWriter{f: f, bold: bold}, nil
}

// sheet writes header and rows into a new sheet; the first call renames the default sheet.
func (w *sheetWriter) sheet(name string, header []interface{}, rows [][]interface{}) error {
	if list := w.f.GetSheetList(); len(list) == 1 && list[0] == "Sheet1" {
		if err := w.f.SetSheetName("Sheet1", name); err != nil {
			return err
		}
	} else if _, err := w.f.NewSheet(name); err != nil {
		return err
	}

	if err := w.f.SetSheetRow(name, "A1", &header); err != nil {
		return err
	}
	if err := w.f.SetRowStyle(name, 1, 1, w.bold); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := row
		if err := w.f.SetSheetRow(name, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func (w *sheetWriter) save(path string) error {
	defer w.f.Close()
	w.f.SetActiveSheet(0)
	if err := w.f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}

func pct(v float64, defined bool) interface{} {
	if !defined {
		return ""
	}
	return v * 100
}

// WriteReport exports a report as an .xlsx workbook, effects in percent.
func WriteReport(path string, report *causal.Report) error {
	w, err := newSheetWriter()
	if err != nil {
		return err
	}

	effects := make([][]interface{}, 0, len(report.Rows))
	for _, r := range report.Rows {
		effects = append(effects, []interface{}{
			r.Definition, string(r.Metric),
			pct(r.NaiveATE, true), pct(r.MatchedATT, r.ATTDefined), pct(r.StratifiedATE, r.StratifiedDefined),
			string(r.Bias), r.MatchCount, r.SampleSizeTreated, r.SampleSizeControl,
		})
	}
	if err := w.sheet(SheetEffects, []interface{}{
		"definition", "metric", "naive_ate_pct", "matched_att_pct", "stratified_ate_pct",
		"bias", "matched_pairs", "treated", "control",
	}, effects); err != nil {
		w.f.Close()
		return fmt.Errorf("failed to write %s sheet: %w", SheetEffects, err)
	}

	skipped := make([][]interface{}, 0, len(report.Skipped))
	for _, s := range report.Skipped {
		skipped = append(skipped, []interface{}{s.Definition, string(s.Metric), s.Reason, s.Detail})
	}
	if err := w.sheet(SheetSkipped, []interface{}{"definition", "metric", "reason", "detail"}, skipped); err != nil {
		w.f.Close()
		return fmt.Errorf("failed to write %s sheet: %w", SheetSkipped, err)
	}

	var verdicts [][]interface{}
	for _, v := range report.Consistency {
		for _, m := range v.Methods {
			verdicts = append(verdicts, []interface{}{
				v.Definition, string(v.Metric), string(m.Method), m.Effect * 100, m.Sign.String(), strconv.FormatBool(v.Agree),
			})
		}
	}
	if err := w.sheet(SheetConsistency, []interface{}{"definition", "metric", "method", "effect_pct", "sign", "agree"}, verdicts); err != nil {
		w.f.Close()
		return fmt.Errorf("failed to write %s sheet: %w", SheetConsistency, err)
	}

	var pairs [][]interface{}
	for _, s := range report.Summaries {
		for _, p := range s.SamplePairs {
			pairs = append(pairs, []interface{}{
				s.Definition, p.Pair.Treated.String(), p.Pair.Control.String(), p.Pair.Distance,
				p.Treated.TotalUnits, p.Control.TotalUnits, p.Treated.AverageDuration, p.Control.AverageDuration,
			})
		}
	}
	if err := w.sheet(SheetPairs, []interface{}{
		"definition", "treated", "control", "distance",
		"treated_units", "control_units", "treated_duration", "control_duration",
	}, pairs); err != nil {
		w.f.Close()
		return fmt.Errorf("failed to write %s sheet: %w", SheetPairs, err)
	}

	return w.save(path)
}

// WriteTables exports tables in the layout DataReader reads.
func WriteTables(path string, t *Tables) error {
	w, err := newSheetWriter()
	if err != nil {
		return err
	}
	header := func(name string) []interface{} {
		cols := sheetHeaders[name]
		out := make([]interface{}, len(cols))
		for i, c := range cols {
			out[i] = c
		}
		return out
	}
	flag := func(b bool) int {
		if b {
			return 1
		}
		return 0
	}

	deals := make([][]interface{}, len(t.Deals))
	for i, d := range t.Deals {
		deals[i] = []interface{}{d.ID, d.AgentID, d.Outcome, flag(d.OnsiteCompleted), d.Segment}
	}
	calls := make([][]interface{}, len(t.Calls))
	for i, c := range t.Calls {
		calls[i] = []interface{}{c.ID, c.AgentID, c.DurationSeconds}
	}
	callTags := make([][]interface{}, len(t.CallTags))
	for i, ct := range t.CallTags {
		callTags[i] = []interface{}{ct.CallID, ct.TagCode, ct.Score}
	}
	transcripts := make([][]interface{}, len(t.Transcripts))
	for i, tr := range t.Transcripts {
		transcripts[i] = []interface{}{tr.ID, tr.DealID, tr.AgentID, tr.Content}
	}
	tags := make([][]interface{}, len(t.Tags))
	for i, tag := range t.Tags {
		tags[i] = []interface{}{tag.Code, tag.Name, flag(tag.Active)}
	}

	for _, s := range []struct {
		name string
		rows [][]interface{}
	}{
		{SheetDeals, deals},
		{SheetCalls, calls},
		{SheetCallTags, callTags},
		{SheetTranscripts, transcripts},
		{SheetTags, tags},
	} {
		if err := w.sheet(s.name, header(s.name), s.rows); err != nil {
			w.f.Close()
			return fmt.Errorf("failed to write %s sheet: %w", s.name, err)
		}
	}
	return w.save(path)
}

// ReportFile is a report sink writing one workbook per report.
type ReportFile struct {
	Path string
}

var _ ports.ReportSink = ReportFile{}

// WriteReport implements ports.ReportSink.
func (r ReportFile) WriteReport(ctx context.Context, report *causal.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return WriteReport(r.Path, report)
}
