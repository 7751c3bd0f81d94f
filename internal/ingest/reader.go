// Package ingest reads tabular prospect files (CSV/XLSX) into raw rows
// and normalizes them into pipeline-admissible companies.
package ingest

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// MaxFileBytes is the default upload ceiling (10 MB).
const MaxFileBytes = 10 << 20

// sniffWindow is how many leading bytes are inspected for markup disguised
// as a spreadsheet ("XLS" files that are really HTML tables).
const sniffWindow = 400

// RawRow is one parsed row keyed by source column name.
type RawRow map[string]string

// Dataset is the parsed content of a source file.
type Dataset struct {
	Headers []string
	Rows    []RawRow
}

// ReadFile parses a CSV or XLSX file by extension. Files over maxBytes
// (0 means MaxFileBytes) are rejected before parsing.
func ReadFile(path string, maxBytes int64) (*Dataset, error) {
	if maxBytes <= 0 {
		maxBytes = MaxFileBytes
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: stat file")
	}
	if info.Size() > maxBytes {
		return nil, eris.Errorf("ingest: file exceeds %d MB limit", maxBytes>>20)
	}

	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return readXLSX(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open file")
	}
	defer f.Close()

	return ReadCSV(f)
}

// ReadCSV parses delimiter-sniffed CSV content. The byte-order mark is
// stripped, and content that sniffs as HTML is rejected before parsing.
func ReadCSV(r io.Reader) (*Dataset, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read content")
	}

	text := strings.TrimPrefix(string(raw), "\ufeff")
	if text == "" {
		return nil, eris.New("ingest: empty file")
	}

	if looksLikeMarkup(text) {
		return nil, eris.New("ingest: file content is HTML, not CSV (export as plain CSV)")
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = detectDelimiter(text)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "ingest: parse csv")
	}
	if len(records) < 2 {
		return nil, eris.New("ingest: file has no data rows")
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.Trim(strings.TrimSpace(h), `"'`)
	}

	return &Dataset{Headers: headers, Rows: recordsToRows(headers, records[1:])}, nil
}

// detectDelimiter picks the delimiter from the first line: semicolon and
// tab take priority over the comma default.
func detectDelimiter(text string) rune {
	firstLine, _, _ := strings.Cut(text, "\n")
	switch {
	case strings.ContainsRune(firstLine, ';'):
		return ';'
	case strings.ContainsRune(firstLine, '\t'):
		return '\t'
	default:
		return ','
	}
}

func looksLikeMarkup(text string) bool {
	head := strings.ToLower(text)
	if len(head) > sniffWindow {
		head = head[:sniffWindow]
	}
	for _, tag := range []string{"<html", "<head", "<meta", "<table"} {
		if strings.Contains(head, tag) {
			return true
		}
	}
	return false
}

func recordsToRows(headers []string, records [][]string) []RawRow {
	rows := make([]RawRow, 0, len(records))
	for _, rec := range records {
		empty := true
		row := make(RawRow, len(headers))
		for i, h := range headers {
			if h == "" || i >= len(rec) {
				continue
			}
			val := strings.TrimSpace(rec[i])
			row[h] = val
			if val != "" {
				empty = false
			}
		}
		if !empty {
			rows = append(rows, row)
		}
	}
	return rows
}
