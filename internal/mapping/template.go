package mapping

import "time"

// templateFuzzyFloor is the minimum fuzzy confidence for the second-pass
// field match when applying a template.
const templateFuzzyFloor = 60

// Template is a saved set of column mappings reusable across uploads.
type Template struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Mappings     []ColumnMapping `json:"mappings"`
	CustomFields []string        `json:"custom_fields,omitempty"`
	LastUsedAt   *time.Time      `json:"last_used_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ApplyTemplate resolves the current mappings against a saved template.
// Pass 1 matches by exact csvColumn (case-insensitive); pass 2 falls back
// to a fuzzy field match with confidence >= 60. Unresolved mappings are
// left untouched and counted as pending review.
func ApplyTemplate(current []ColumnMapping, tpl Template) (updated []ColumnMapping, matched, pending int) {
	updated = make([]ColumnMapping, len(current))
	copy(updated, current)

	for i, cm := range updated {
		tm := findByColumn(tpl.Mappings, cm.CSVColumn)

		if tm == nil || tm.SystemField == "" || tm.SystemField == FieldSkip {
			if field, conf, _ := MapColumn(cm.CSVColumn); field != "" && conf >= templateFuzzyFloor {
				tm = findByField(tpl.Mappings, field)
			}
		}

		if tm != nil && tm.SystemField != "" && tm.SystemField != FieldSkip {
			matched++
			updated[i].SystemField = tm.SystemField
			updated[i].Status = StatusMapped
			updated[i].Confidence = 100
			updated[i].Alternatives = nil
			continue
		}
		pending++
	}

	return updated, matched, pending
}

func findByColumn(mappings []ColumnMapping, column string) *ColumnMapping {
	for i := range mappings {
		if equalFold(mappings[i].CSVColumn, column) {
			return &mappings[i]
		}
	}
	return nil
}

func findByField(mappings []ColumnMapping, field string) *ColumnMapping {
	for i := range mappings {
		if mappings[i].SystemField == field {
			return &mappings[i]
		}
	}
	return nil
}

func equalFold(a, b string) bool {
	return normalizeHeader(a) == normalizeHeader(b)
}
