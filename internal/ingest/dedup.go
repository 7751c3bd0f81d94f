package ingest

import (
	"strings"

	"github.com/leadscope/prospect-cli/internal/mapping"
	"github.com/leadscope/prospect-cli/internal/model"
)

// TaxIDColumn finds the source column carrying the tax ID, preferring the
// confirmed mapping and falling back to a header-name scan.
func TaxIDColumn(headers []string, mappings []mapping.ColumnMapping) string {
	if col := NewResolver(mappings).TaxIDColumn(); col != "" {
		return col
	}
	for _, h := range headers {
		lower := strings.ToLower(h)
		if strings.Contains(lower, "cnpj") || strings.Contains(lower, "documento") {
			return h
		}
	}
	return ""
}

// Deduplicate removes rows whose tax ID repeats an earlier row's, keyed by
// the digits-only value. The first occurrence wins. Rows without a parsable
// 14-digit tax ID are kept; the admission filter handles them later.
func Deduplicate(rows []RawRow, taxIDColumn string) (kept []RawRow, removed int) {
	if taxIDColumn == "" {
		return rows, 0
	}

	seen := make(map[string]bool, len(rows))
	kept = make([]RawRow, 0, len(rows))
	for _, row := range rows {
		digits := digitsOnly(row[taxIDColumn])
		if len(digits) != model.TaxIDLength {
			kept = append(kept, row)
			continue
		}
		if seen[digits] {
			removed++
			continue
		}
		seen[digits] = true
		kept = append(kept, row)
	}
	return kept, removed
}
