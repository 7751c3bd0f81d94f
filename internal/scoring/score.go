// Package scoring computes the fit score for a company against the ideal
// customer profile criteria.
package scoring

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/leadscope/prospect-cli/internal/model"
)

// Result carries the score, its temperature band and the per-dimension
// breakdown with human-readable reasons.
type Result struct {
	Score       int
	Temperature model.Temperature
	Breakdown   model.ScoreBreakdown
	Reasons     []string
}

// Score evaluates a company's fields against the criteria. Each dimension
// earns its full weight or nothing; the total is normalized to 0..100 so
// custom weight sets that do not sum to 100 still produce a comparable
// score. The same fields and criteria always produce the same result.
func Score(fields map[string]string, criteria model.ICPCriteria) Result {
	var res Result
	total := criteria.Weights.Total()
	if total <= 0 {
		res.Temperature = model.TemperatureForScore(0)
		return res
	}

	earned := 0
	if ok, why := matchLocation(fields, criteria); ok {
		res.Breakdown.Location = criteria.Weights.Location
		earned += criteria.Weights.Location
		res.Reasons = append(res.Reasons, why)
	}
	if ok, why := matchSize(fields, criteria); ok {
		res.Breakdown.Size = criteria.Weights.Size
		earned += criteria.Weights.Size
		res.Reasons = append(res.Reasons, why)
	}
	if ok, why := matchIndustry(fields, criteria); ok {
		res.Breakdown.Industry = criteria.Weights.Industry
		earned += criteria.Weights.Industry
		res.Reasons = append(res.Reasons, why)
	}
	if ok, why := matchStatus(fields, criteria); ok {
		res.Breakdown.Status = criteria.Weights.Status
		earned += criteria.Weights.Status
		res.Reasons = append(res.Reasons, why)
	}
	if ok, why := matchTechnology(fields, criteria); ok {
		res.Breakdown.Technology = criteria.Weights.Technology
		earned += criteria.Weights.Technology
		res.Reasons = append(res.Reasons, why)
	}

	res.Score = int(math.Round(100 * float64(earned) / float64(total)))
	if res.Score < 0 {
		res.Score = 0
	}
	if res.Score > 100 {
		res.Score = 100
	}
	res.Temperature = model.TemperatureForScore(res.Score)
	return res
}

func matchLocation(fields map[string]string, c model.ICPCriteria) (bool, string) {
	state := strings.TrimSpace(fields[model.FieldState])
	if containsFold(c.PriorityStates, state) {
		return true, fmt.Sprintf("state %s is a priority market", strings.ToUpper(state))
	}
	city := strings.TrimSpace(fields[model.FieldCity])
	if containsFold(c.PriorityCities, city) {
		return true, fmt.Sprintf("city %s is a priority market", city)
	}
	return false, ""
}

func matchSize(fields map[string]string, c model.ICPCriteria) (bool, string) {
	size := strings.TrimSpace(fields[model.FieldSize])
	if containsFold(c.PrioritySizes, size) {
		return true, fmt.Sprintf("company size %q fits the target profile", size)
	}
	if c.MinHeadcount > 0 {
		if n, ok := parseCount(fields[model.FieldEmployees]); ok && n >= c.MinHeadcount {
			return true, fmt.Sprintf("headcount %d meets the minimum of %d", n, c.MinHeadcount)
		}
	}
	if c.MinRevenue > 0 {
		if v, ok := parseMoney(fields[model.FieldRevenue]); ok && v >= c.MinRevenue {
			return true, "estimated revenue meets the minimum"
		}
	}
	return false, ""
}

func matchIndustry(fields map[string]string, c model.ICPCriteria) (bool, string) {
	code := digits(fields[model.FieldIndustryCode])
	if code == "" {
		return false, ""
	}
	for _, want := range c.PriorityCNAEs {
		w := digits(want)
		if w == "" {
			continue
		}
		if code == w || strings.HasPrefix(code, w) {
			return true, fmt.Sprintf("activity code %s matches priority segment %s", code, w)
		}
	}
	return false, ""
}

func matchStatus(fields map[string]string, c model.ICPCriteria) (bool, string) {
	status := strings.TrimSpace(fields[model.FieldRegistryState])
	if containsFold(c.ValidStatuses, status) {
		return true, fmt.Sprintf("registry status %q is acceptable", status)
	}
	return false, ""
}

func matchTechnology(fields map[string]string, c model.ICPCriteria) (bool, string) {
	stack := strings.ToLower(strings.Join([]string{
		fields[model.FieldTechStack],
		fields[model.FieldERP],
		fields[model.FieldCRM],
	}, " "))
	if strings.TrimSpace(stack) == "" {
		return false, ""
	}
	if len(c.TechTargets) == 0 {
		return true, "technology footprint reported"
	}
	for _, t := range c.TechTargets {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" && strings.Contains(stack, t) {
			return true, fmt.Sprintf("uses target technology %q", t)
		}
	}
	return false, ""
}

func containsFold(haystack []string, needle string) bool {
	if needle == "" {
		return false
	}
	for _, h := range haystack {
		if strings.EqualFold(strings.TrimSpace(h), needle) {
			return true
		}
	}
	return false
}

func parseCount(raw string) (int, bool) {
	d := digits(raw)
	if d == "" {
		return 0, false
	}
	n, err := strconv.Atoi(d)
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseMoney reads values like "R$ 1.200.000,50" or "1200000.50".
func parseMoney(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	s = b.String()
	if s == "" {
		return 0, false
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func digits(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
