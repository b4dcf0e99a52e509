package excel

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// DataReader reads a call-center workbook: an .xlsx file with one sheet per
// table, or a directory holding one CSV file per table.
type DataReader struct {
	path     string
	fileType string // "xlsx" or "csv"
}

// NewDataReader creates a reader; a directory path selects CSV mode.
func NewDataReader(path string) *DataReader {
	fileType := "xlsx"
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		fileType = "csv"
	}
	return &DataReader{path: path, fileType: fileType}
}

// ReadTables reads and types every known sheet.
func (r *DataReader) ReadTables() (*Tables, error) {
	log.Printf("[DataReader] Starting to read %s source: %s", r.fileType, r.path)

	if _, err := os.Stat(r.path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s source not found: %s", strings.ToUpper(r.fileType), r.path)
	}

	var (
		sheets map[string]*SheetData
		err    error
	)
	switch r.fileType {
	case "csv":
		sheets, err = r.readCSVDir()
	case "xlsx":
		sheets, err = r.readWorkbook()
	default:
		return nil, fmt.Errorf("unsupported file type: %s", r.fileType)
	}
	if err != nil {
		return nil, err
	}
	for _, name := range requiredSheets {
		if sheets[name] == nil {
			return nil, fmt.Errorf("required sheet %q is missing", name)
		}
	}
	return parseTables(sheets)
}

func (r *DataReader) readWorkbook() (map[string]*SheetData, error) {
	startTime := time.Now()
	f, err := excelize.OpenFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	present := make(map[string]string)
	for _, s := range f.GetSheetList() {
		present[strings.ToLower(strings.TrimSpace(s))] = s
	}

	sheets := make(map[string]*SheetData)
	for _, name := range append(append([]string{}, requiredSheets...), optionalSheets...) {
		actual, ok := present[name]
		if !ok {
			continue
		}
		rows, err := f.GetRows(actual)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", actual, err)
		}
		sheets[name] = processRows(rows)
	}
	log.Printf("[DataReader] Workbook read in %.2fms (%d sheets)", float64(time.Since(startTime).Nanoseconds())/1e6, len(sheets))
	return sheets, nil
}

func (r *DataReader) readCSVDir() (map[string]*SheetData, error) {
	sheets := make(map[string]*SheetData)
	for _, name := range append(append([]string{}, requiredSheets...), optionalSheets...) {
		path := filepath.Join(r.path, name+".csv")
		file, err := os.Open(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to open CSV file: %w", err)
		}
		rows, err := csv.NewReader(file).ReadAll()
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV file %s: %w", path, err)
		}
		sheets[name] = processRows(rows)
	}
	log.Printf("[DataReader] CSV directory read (%d tables)", len(sheets))
	return sheets, nil
}

// processRows converts raw string rows into SheetData; headers are lower-cased.
func processRows(rows [][]string) *SheetData {
	if len(rows) == 0 {
		return &SheetData{}
	}
	headers := make([]string, len(rows[0]))
	for i, header := range rows[0] {
		headers[i] = strings.ToLower(strings.TrimSpace(header))
	}

	dataRows := make([]RawRowData, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rowData := make(RawRowData, len(headers))
		empty := true
		for j, cell := range row {
			if j < len(headers) {
				rowData[headers[j]] = strings.TrimSpace(cell)
				if rowData[headers[j]] != "" {
					empty = false
				}
			}
		}
		if !empty {
			dataRows = append(dataRows, rowData)
		}
	}
	return &SheetData{Headers: headers, Rows: dataRows}
}

func checkHeaders(name string, sheet *SheetData) error {
	have := make(map[string]bool, len(sheet.Headers))
	for _, h := range sheet.Headers {
		have[h] = true
	}
	for _, want := range sheetHeaders[name] {
		if !have[want] && !optionalColumns[name][want] {
			return fmt.Errorf("sheet %s: missing column %q", name, want)
		}
	}
	return nil
}

func parseTables(sheets map[string]*SheetData) (*Tables, error) {
	for name, sheet := range sheets {
		if err := checkHeaders(name, sheet); err != nil {
			return nil, err
		}
	}

	t := &Tables{}
	for i, row := range rowsOf(sheets, SheetDeals) {
		if row["agent_id"] == "" {
			continue
		}
		t.Deals = append(t.Deals, Deal{
			ID:              orIndex(row["id"], i),
			AgentID:         row["agent_id"],
			Outcome:         strings.ToLower(row["outcome"]),
			OnsiteCompleted: parseFlag(row["is_onsite_completed"]),
			Segment:         row["leak_area"],
		})
	}
	for i, row := range rowsOf(sheets, SheetCalls) {
		d, err := parseNumber(row["duration"])
		if err != nil {
			return nil, fmt.Errorf("sheet %s row %d: duration: %w", SheetCalls, i+2, err)
		}
		t.Calls = append(t.Calls, Call{ID: orIndex(row["id"], i), AgentID: row["agent_id"], DurationSeconds: d})
	}
	for i, row := range rowsOf(sheets, SheetCallTags) {
		s, err := parseNumber(row["score"])
		if err != nil {
			return nil, fmt.Errorf("sheet %s row %d: score: %w", SheetCallTags, i+2, err)
		}
		t.CallTags = append(t.CallTags, CallTag{CallID: row["call_id"], TagCode: row["tag_id"], Score: s})
	}
	for i, row := range rowsOf(sheets, SheetTranscripts) {
		t.Transcripts = append(t.Transcripts, Transcript{
			ID:      orIndex(row["id"], i),
			DealID:  row["deal_id"],
			AgentID: row["agent_id"],
			Content: row["content"],
		})
	}
	for _, row := range rowsOf(sheets, SheetTags) {
		active := row["active"] == "" || parseFlag(row["active"])
		t.Tags = append(t.Tags, Tag{Code: row["code"], Name: row["name"], Active: active})
	}
	return t, nil
}

func rowsOf(sheets map[string]*SheetData, name string) []RawRowData {
	if s := sheets[name]; s != nil {
		return s.Rows
	}
	return nil
}

func orIndex(id string, i int) string {
	if id != "" {
		return id
	}
	return strconv.Itoa(i + 1)
}

func parseFlag(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "t":
		return true
	}
	return false
}

func parseNumber(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
