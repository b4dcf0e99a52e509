package excel

// RawRowData represents a row of raw sheet data as string key-value pairs
type RawRowData map[string]string

// SheetData represents one sheet (or CSV file) of a workbook
type SheetData struct {
	Headers []string     // Column headers
	Rows    []RawRowData // Data rows
}

// Deal is a row of the deals sheet.
type Deal struct {
	ID              string
	AgentID         string
	Outcome         string
	OnsiteCompleted bool
	Segment         string // leak area
}

// Call is a row of the calls sheet.
type Call struct {
	ID              string
	AgentID         string
	DurationSeconds float64
}

// CallTag is a row of the call_tags sheet.
type CallTag struct {
	CallID  string
	TagCode string
	Score   float64
}

// Transcript is a row of the transcripts sheet.
// Each row is one evidence unit for keyword definitions; a deal may have several.
type Transcript struct {
	ID      string
	DealID  string
	AgentID string
	Content string
}

// Tag is a row of the tags sheet.
type Tag struct {
	Code   string
	Name   string
	Active bool
}

// Tables is the typed content of a call-center workbook.
type Tables struct {
	Deals       []Deal
	Calls       []Call
	CallTags    []CallTag
	Transcripts []Transcript
	Tags        []Tag
}
