package excel

// Sheet names, also used as CSV file stems when reading a directory.
const (
	SheetDeals       = "deals"
	SheetCalls       = "calls"
	SheetCallTags    = "call_tags"
	SheetTranscripts = "transcripts"
	SheetTags        = "tags"
)

// Column headers per sheet. Headers are matched case-insensitively.
var sheetHeaders = map[string][]string{
	SheetDeals:       {"id", "agent_id", "outcome", "is_onsite_completed", "leak_area"},
	SheetCalls:       {"id", "agent_id", "duration"},
	SheetCallTags:    {"call_id", "tag_id", "score"},
	SheetTranscripts: {"id", "deal_id", "agent_id", "content"},
	SheetTags:        {"code", "name", "active"},
}

// optionalColumns may be missing from a sheet. A missing transcript id is
// replaced by the row's position in the sheet.
var optionalColumns = map[string]map[string]bool{
	SheetTranscripts: {"id": true},
}

// requiredSheets must be present in every workbook; the others may be omitted.
var requiredSheets = []string{SheetDeals}

// optionalSheets are read when present.
var optionalSheets = []string{SheetCalls, SheetCallTags, SheetTranscripts, SheetTags}
