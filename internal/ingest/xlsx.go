package ingest

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// readXLSX parses the first sheet of an XLSX workbook into a Dataset.
// The first row is the header row.
func readXLSX(path string) (*Dataset, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("ingest: workbook has no sheets")
	}

	sheet := f.Sheets[0]
	if len(sheet.Rows) < 2 {
		return nil, eris.New("ingest: file has no data rows")
	}

	headers := rowStrings(sheet.Rows[0])
	for i, h := range headers {
		headers[i] = strings.Trim(strings.TrimSpace(h), `"'`)
	}

	records := make([][]string, 0, len(sheet.Rows)-1)
	for _, row := range sheet.Rows[1:] {
		records = append(records, rowStrings(row))
	}

	return &Dataset{Headers: headers, Rows: recordsToRows(headers, records)}, nil
}

func rowStrings(row *xlsx.Row) []string {
	out := make([]string, len(row.Cells))
	for i, cell := range row.Cells {
		out[i] = cell.String()
	}
	return out
}
