// Package report aggregates batch results for display and export.
package report

import (
	"sort"
	"strings"
	"time"

	"github.com/leadscope/prospect-cli/internal/model"
)

// Summary rolls a batch's results up into headline numbers.
type Summary struct {
	Total    int `json:"total"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
	Errored  int `json:"errored"`

	Hot  int `json:"hot"`
	Warm int `json:"warm"`
	Cold int `json:"cold"`

	ExistingCustomers int `json:"existing_customers"`
	Degraded          int `json:"degraded"`

	AverageScore int           `json:"average_score"`
	Elapsed      time.Duration `json:"elapsed"`
}

// Summarize computes headline numbers over a batch's results. Temperature
// buckets count approved items only.
func Summarize(results []model.AnalysisResult) Summary {
	var s Summary
	s.Total = len(results)

	scoreSum := 0
	scored := 0
	for _, r := range results {
		switch r.Outcome {
		case model.OutcomeApproved:
			s.Approved++
			scoreSum += r.ICPScore
			scored++
			switch r.Temperature {
			case model.TemperatureHot:
				s.Hot++
			case model.TemperatureWarm:
				s.Warm++
			case model.TemperatureCold:
				s.Cold++
			}
		case model.OutcomeRejected:
			s.Rejected++
		default:
			s.Errored++
		}
		if r.ExistingCustomer {
			s.ExistingCustomers++
		}
		if r.DegradedAnalysis {
			s.Degraded++
		}
		s.Elapsed += time.Duration(r.ElapsedMillis) * time.Millisecond
	}
	if scored > 0 {
		s.AverageScore = scoreSum / scored
	}
	return s
}

// Filter narrows results for display and export. Search matches the
// legal name or tax ID, case-insensitive.
type Filter struct {
	Outcome     model.Outcome
	Temperature model.Temperature
	MinScore    int
	Search      string
}

// Apply returns the matching results in submission order.
func (f Filter) Apply(results []model.AnalysisResult) []model.AnalysisResult {
	out := make([]model.AnalysisResult, 0, len(results))
	for _, r := range results {
		if f.Outcome != "" && r.Outcome != f.Outcome {
			continue
		}
		if f.Temperature != "" && r.Temperature != f.Temperature {
			continue
		}
		if f.MinScore > 0 && r.ICPScore < f.MinScore {
			continue
		}
		if f.Search != "" && !matchesSearch(r, f.Search) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RowIndex < out[j].RowIndex })
	return out
}

func matchesSearch(r model.AnalysisResult, q string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	return strings.Contains(strings.ToLower(r.LegalName), q) ||
		strings.Contains(r.TaxID, q)
}
