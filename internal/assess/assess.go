// Package assess inspects a mapped dataset before analysis starts and
// predicts how well the batch will run.
package assess

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/leadscope/prospect-cli/internal/ingest"
	"github.com/leadscope/prospect-cli/internal/mapping"
	"github.com/leadscope/prospect-cli/internal/model"
)

// Quality bands for the pre-analysis score.
const (
	QualityGoodFloor = 80
	QualityFairFloor = 60
)

// Rough per-item wall time used for the ETA shown before the run starts.
const estimatedSecondsPerItem = 8.0

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]{2,}$`)

// Report summarizes dataset health ahead of a batch run.
type Report struct {
	Total         int
	ValidIDs      int
	InvalidIDs    int
	ValidEmails   int
	ValidPhones   int
	ValidWebsites int
	Duplicates    int
	QualityScore  int
	Estimated     time.Duration
	SuccessRate   int
}

// Band returns "good", "fair" or "poor" for the quality score.
func (r Report) Band() string {
	switch {
	case r.QualityScore >= QualityGoodFloor:
		return "good"
	case r.QualityScore >= QualityFairFloor:
		return "fair"
	default:
		return "poor"
	}
}

// Evaluate scores the dataset after dedup. Quality is the share of rows
// carrying a valid 14-digit tax ID; contact fields only feed the report.
func Evaluate(rows []ingest.RawRow, mappings []mapping.ColumnMapping, duplicates int, concurrency int) Report {
	rep := Report{Total: len(rows), Duplicates: duplicates}
	if rep.Total == 0 {
		return rep
	}

	cols := columnsByField(mappings)
	for _, row := range rows {
		if validTaxID(row[cols[model.FieldTaxID]]) {
			rep.ValidIDs++
		} else {
			rep.InvalidIDs++
		}
		if emailPattern.MatchString(strings.TrimSpace(row[cols[model.FieldEmail]])) {
			rep.ValidEmails++
		}
		if validPhone(row[cols[model.FieldPhone]]) {
			rep.ValidPhones++
		}
		if validWebsite(row[cols[model.FieldWebsite]]) {
			rep.ValidWebsites++
		}
	}

	rep.QualityScore = int(math.Round(100 * float64(rep.ValidIDs) / float64(rep.Total)))
	rep.SuccessRate = rep.QualityScore

	if concurrency < 1 {
		concurrency = 1
	}
	waves := math.Ceil(float64(rep.ValidIDs) / float64(concurrency))
	rep.Estimated = time.Duration(waves*estimatedSecondsPerItem) * time.Second
	return rep
}

func columnsByField(mappings []mapping.ColumnMapping) map[string]string {
	cols := make(map[string]string, len(mappings))
	for _, m := range mappings {
		if m.Skipped() || m.Status == mapping.StatusUnmapped {
			continue
		}
		if _, taken := cols[m.SystemField]; !taken {
			cols[m.SystemField] = m.CSVColumn
		}
	}
	return cols
}

func validTaxID(raw string) bool {
	digits := 0
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits == model.TaxIDLength
}

func validPhone(raw string) bool {
	digits := 0
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= 10 && digits <= 13
}

func validWebsite(raw string) bool {
	s := strings.TrimSpace(strings.ToLower(raw))
	if s == "" {
		return false
	}
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	return strings.Contains(s, ".") && !strings.ContainsAny(s, " ")
}
