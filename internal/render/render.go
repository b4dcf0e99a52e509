// Package render turns a report into terminal tables, Markdown, HTML or JSON.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gocausal/domain/causal"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Format is an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatJSON     Format = "json"
)

// Formats lists every supported format.
func Formats() []Format {
	return []Format{FormatTable, FormatMarkdown, FormatHTML, FormatJSON}
}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats() {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

// Render writes report to w in format f.
func Render(w io.Writer, report *causal.Report, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case FormatTable:
		_, err := io.WriteString(w, document(report, modeASCII))
		return err
	case FormatMarkdown:
		_, err := io.WriteString(w, document(report, modeMarkdown))
		return err
	case FormatHTML:
		_, err := w.Write(toHTML(report))
		return err
	}
	return fmt.Errorf("unknown output format %q", f)
}

// Percent formats a rate difference as signed percentage points.
func Percent(v float64) string {
	return fmt.Sprintf("%+.2f%%", v*100)
}

func percentIf(v float64, defined bool) string {
	if !defined {
		return "n/a"
	}
	return Percent(v)
}

func heading(m tableMode, title string) string {
	if m == modeMarkdown {
		return "## " + title + "\n\n"
	}
	return title + "\n"
}

func document(r *causal.Report, m tableMode) string {
	var sb strings.Builder
	if m == modeMarkdown {
		fmt.Fprintf(&sb, "# Treatment effects\n\nRun `%s`, generated %s. Caliper %.2f, bias threshold %s, %s propensity, %s matching.\n\n",
			r.RunID, r.GeneratedAt.Format("2006-01-02 15:04:05"), r.Config.Caliper, Percent(r.Config.BiasThreshold),
			r.Config.PropensityModel, r.Config.Matcher)
	} else {
		fmt.Fprintf(&sb, "Run %s  caliper=%.2f  bias>%s  model=%s  matcher=%s\n\n",
			r.RunID, r.Config.Caliper, Percent(r.Config.BiasThreshold), r.Config.PropensityModel, r.Config.Matcher)
	}

	sb.WriteString(heading(m, "Effects"))
	sb.WriteString(effectsTable(r, m))
	sb.WriteString("\n\n")

	if len(r.Consistency) > 0 {
		sb.WriteString(heading(m, "Method consistency"))
		sb.WriteString(consistencyTable(r, m))
		sb.WriteString("\n\n")
	}
	if len(r.Skipped) > 0 {
		sb.WriteString(heading(m, "Skipped"))
		sb.WriteString(skippedTable(r, m))
		sb.WriteString("\n\n")
	}
	if pairs := pairsTable(r, m); pairs != "" {
		sb.WriteString(heading(m, "Sample matched pairs"))
		sb.WriteString(pairs)
		sb.WriteString("\n")
	}
	return sb.String()
}

func effectsTable(r *causal.Report, m tableMode) string {
	t := newTable(m)
	t.header("Definition", "Metric", "Naive ATE", "Matched ATT", "Stratified ATE", "Bias", "Pairs", "Treated", "Control")
	t.alignRight(3, 4, 5, 7, 8, 9)
	for _, e := range r.Rows {
		bias := string(e.Bias)
		if bias == "" {
			bias = "-"
		}
		t.row(e.Definition, e.Metric.Label(), Percent(e.NaiveATE), percentIf(e.MatchedATT, e.ATTDefined),
			percentIf(e.StratifiedATE, e.StratifiedDefined), bias, e.MatchCount, e.SampleSizeTreated, e.SampleSizeControl)
	}
	return t.String()
}

func consistencyTable(r *causal.Report, m tableMode) string {
	t := newTable(m)
	t.header("Definition", "Metric", "Naive", "Matched", "Stratified", "Agree")
	for _, v := range r.Consistency {
		signs := map[causal.Method]string{}
		for _, ms := range v.Methods {
			signs[ms.Method] = ms.Sign.String()
		}
		cell := func(method causal.Method) string {
			if s, ok := signs[method]; ok {
				return s
			}
			return "n/a"
		}
		agree := "no"
		if v.Agree {
			agree = "yes"
		}
		t.row(v.Definition, v.Metric.Label(), cell(causal.MethodNaive), cell(causal.MethodMatched), cell(causal.MethodStratified), agree)
	}
	return t.String()
}

func skippedTable(r *causal.Report, m tableMode) string {
	t := newTable(m)
	t.header("Definition", "Metric", "Reason", "Detail")
	for _, s := range r.Skipped {
		metric := "all"
		if s.Metric != "" {
			metric = s.Metric.Label()
		}
		t.row(s.Definition, metric, s.Reason, s.Detail)
	}
	return t.String()
}

func pairsTable(r *causal.Report, m tableMode) string {
	t := newTable(m)
	t.header("Definition", "Treated", "Control", "Distance", "Units T/C", "Duration T/C", "Fingerprint")
	t.alignRight(4)
	rows := 0
	for _, s := range r.Summaries {
		for _, p := range s.SamplePairs {
			t.row(s.Definition, p.Pair.Treated, p.Pair.Control, fmt.Sprintf("%.4f", p.Pair.Distance),
				fmt.Sprintf("%d/%d", p.Treated.TotalUnits, p.Control.TotalUnits),
				fmt.Sprintf("%.0fs/%.0fs", p.Treated.AverageDuration, p.Control.AverageDuration),
				s.Fingerprint.Short())
			rows++
		}
	}
	if rows == 0 {
		return ""
	}
	return t.String()
}

func toHTML(r *causal.Report) []byte {
	md := document(r, modeMarkdown)
	p := parser.NewWithExtensions(parser.CommonExtensions)
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.CompletePage,
		Title: "Treatment effects " + r.RunID.String(),
	})
	return markdown.ToHTML([]byte(md), p, renderer)
}
