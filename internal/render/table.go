package render

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// tableMode controls how a table renders.
type tableMode int

const (
	modeASCII    tableMode = iota // Fixed-width terminal tables
	modeMarkdown                  // GitHub-flavoured Markdown tables
)

// tableBuilder wraps a go-pretty writer; build once, render in the mode set at creation.
type tableBuilder struct {
	writer table.Writer
	mode   tableMode
}

func newTable(m tableMode) *tableBuilder {
	w := table.NewWriter()
	if m == modeASCII {
		w.SetStyle(table.StyleLight)
	}
	return &tableBuilder{writer: w, mode: m}
}

func (b *tableBuilder) header(cols ...string) {
	row := make(table.Row, len(cols))
	for i, c := range cols {
		row[i] = c
	}
	b.writer.AppendHeader(row)
}

func (b *tableBuilder) row(vals ...any) {
	row := make(table.Row, len(vals))
	copy(row, vals)
	b.writer.AppendRow(row)
}

// alignRight right-aligns the given 1-based columns.
func (b *tableBuilder) alignRight(cols ...int) {
	cfgs := make([]table.ColumnConfig, len(cols))
	for i, c := range cols {
		cfgs[i] = table.ColumnConfig{Number: c, Align: text.AlignRight}
	}
	b.writer.SetColumnConfigs(cfgs)
}

func (b *tableBuilder) String() string {
	if b.mode == modeMarkdown {
		return b.writer.RenderMarkdown()
	}
	return b.writer.Render()
}
