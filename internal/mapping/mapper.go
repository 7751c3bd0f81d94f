// Package mapping resolves raw spreadsheet headers to canonical field
// names using exact and fuzzy matching with per-column confidence.
package mapping

import (
	"sort"
	"strings"
	"unicode"

	"github.com/agext/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FieldSkip is the sentinel a column is set to when the operator marks it
// "do not map". It locks the column's status regardless of confidence.
const FieldSkip = "__skip__"

// Status classifies how confidently a column was mapped.
type Status string

const (
	StatusMapped   Status = "mapped"
	StatusReview   Status = "review"
	StatusUnmapped Status = "unmapped"
)

// Confidence bands for the status rule.
const (
	mappedFloor = 80
	reviewFloor = 40
)

// maxAlternatives caps the runner-up candidates retained per column.
const maxAlternatives = 3

// Alternative is a runner-up field candidate for a column.
type Alternative struct {
	Field      string `json:"field"`
	Confidence int    `json:"confidence"`
}

// ColumnMapping is the resolution of one source column.
type ColumnMapping struct {
	CSVColumn    string        `json:"csv_column"`
	SystemField  string        `json:"system_field,omitempty"`
	Status       Status        `json:"status"`
	Confidence   int           `json:"confidence"`
	Alternatives []Alternative `json:"alternatives,omitempty"`
}

// Skipped reports whether the operator locked this column to "do not map".
func (m ColumnMapping) Skipped() bool {
	return m.SystemField == FieldSkip
}

var headerNormalizer = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// normalizeHeader lowercases, strips diacritics and punctuation, and
// collapses whitespace so that "Razão Social" and "razao social" compare equal.
func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if out, _, err := transform.String(headerNormalizer, s); err == nil {
		s = out
	}

	var b strings.Builder
	b.Grow(len(s))
	lastSpace := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			lastSpace = true
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// similarity scores two labels on a 0..100 scale. Exact normalized matches
// score 100, containment scores proportionally to the length ratio (capped
// at 90), everything else falls back to Levenshtein distance.
func similarity(a, b string) int {
	s1 := normalizeHeader(a)
	s2 := normalizeHeader(b)

	if s1 == s2 {
		return 100
	}
	if s1 == "" || s2 == "" {
		return 0
	}

	if strings.Contains(s1, s2) || strings.Contains(s2, s1) {
		shorter, longer := len(s1), len(s2)
		if shorter > longer {
			shorter, longer = longer, shorter
		}
		return int(float64(shorter)/float64(longer)*90 + 0.5)
	}

	dist := levenshtein.Distance(s1, s2, nil)
	maxLen := len(s1)
	if len(s2) > maxLen {
		maxLen = len(s2)
	}
	ratio := float64(maxLen-dist) / float64(maxLen)
	if ratio < 0 {
		ratio = 0
	}
	return int(ratio*100 + 0.5)
}

// MapColumn resolves a single header to its best field candidate plus
// runners-up. Pure computation: no state is touched.
func MapColumn(header string) (field string, confidence int, alternatives []Alternative) {
	if direct, ok := directMapping[normalizeHeader(header)]; ok {
		if direct == FieldSkip {
			// Locked skip, same shape SetMapping produces.
			return FieldSkip, 0, nil
		}
		return direct, 100, nil
	}

	var best Alternative
	var candidates []Alternative

	for _, f := range SystemFields() {
		for _, synonym := range fieldSynonyms[f] {
			conf := similarity(header, synonym)
			switch {
			case conf > best.Confidence:
				if best.Field != "" && best.Confidence > reviewFloor {
					candidates = append(candidates, best)
				}
				best = Alternative{Field: f, Confidence: conf}
			case conf > reviewFloor && conf < best.Confidence:
				candidates = append(candidates, Alternative{Field: f, Confidence: conf})
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})

	// Drop duplicates of the winning field and cap the list.
	deduped := candidates[:0]
	seen := map[string]bool{best.Field: true}
	for _, c := range candidates {
		if seen[c.Field] {
			continue
		}
		seen[c.Field] = true
		deduped = append(deduped, c)
		if len(deduped) == maxAlternatives {
			break
		}
	}

	return best.Field, best.Confidence, deduped
}

// MapColumns resolves every header in order. Running it twice on the same
// headers yields identical results.
func MapColumns(headers []string) []ColumnMapping {
	mappings := make([]ColumnMapping, 0, len(headers))
	for _, h := range headers {
		field, conf, alts := MapColumn(h)
		mappings = append(mappings, ColumnMapping{
			CSVColumn:    h,
			SystemField:  field,
			Status:       statusFor(conf, field),
			Confidence:   conf,
			Alternatives: alts,
		})
	}
	return mappings
}

func statusFor(confidence int, field string) Status {
	switch {
	case field == "" || field == FieldSkip:
		return StatusUnmapped
	case confidence >= mappedFloor:
		return StatusMapped
	case confidence >= reviewFloor:
		return StatusReview
	default:
		return StatusUnmapped
	}
}

// SetMapping applies an explicit operator override to the mapping at index.
// Setting FieldSkip locks the column to unmapped; any other non-empty field
// locks it to mapped with full confidence.
func SetMapping(mappings []ColumnMapping, index int, field string) {
	if index < 0 || index >= len(mappings) {
		return
	}
	m := &mappings[index]
	m.SystemField = field
	m.Alternatives = nil
	switch field {
	case "", FieldSkip:
		m.Status = StatusUnmapped
		m.Confidence = 0
	default:
		m.Status = StatusMapped
		m.Confidence = 100
	}
}

// FieldLabel renders a canonical field key as a human-readable label.
func FieldLabel(field string) string {
	words := strings.Split(field, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func sortStrings(s []string) {
	sort.Strings(s)
}
