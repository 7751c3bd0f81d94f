package ingest

import (
	"strings"

	"github.com/leadscope/prospect-cli/internal/mapping"
	"github.com/leadscope/prospect-cli/internal/model"
)

// trivialNames are values that disqualify a name field: leftover yes/no
// answers and not-applicable markers from badly exported sheets.
var trivialNames = map[string]bool{
	"sim": true,
	"não": true,
	"nao": true,
	"n/a": true,
	"na":  true,
}

// minNameLength is the shortest acceptable company name.
const minNameLength = 3

// Resolver routes raw column values to canonical fields using the
// operator-confirmed mappings.
type Resolver struct {
	fieldByColumn map[string]string
}

// NewResolver builds a Resolver from the confirmed mappings, ignoring
// skipped and unmapped columns.
func NewResolver(mappings []mapping.ColumnMapping) *Resolver {
	byColumn := make(map[string]string, len(mappings))
	for _, m := range mappings {
		if m.SystemField == "" || m.Skipped() {
			continue
		}
		byColumn[m.CSVColumn] = m.SystemField
	}
	return &Resolver{fieldByColumn: byColumn}
}

// HasTaxIDMapping reports whether any column routes to the tax ID field.
// Processing cannot start without one.
func (r *Resolver) HasTaxIDMapping() bool {
	for _, f := range r.fieldByColumn {
		if f == model.FieldTaxID {
			return true
		}
	}
	return false
}

// TaxIDColumn returns the source column mapped to the tax ID field, or "".
func (r *Resolver) TaxIDColumn() string {
	for col, f := range r.fieldByColumn {
		if f == model.FieldTaxID {
			return col
		}
	}
	return ""
}

// Resolve transforms one raw row into a Company. The second return value
// is false when the row fails the admission filter (tax ID not exactly 14
// digits, or no usable name).
func (r *Resolver) Resolve(row RawRow, rowIndex int) (model.Company, bool) {
	c := model.Company{
		RowIndex: rowIndex,
		Fields:   make(map[string]string),
		Extra:    make(map[string]string),
	}

	for col, value := range row {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}

		field, ok := r.fieldByColumn[col]
		if !ok {
			c.Extra[col] = value
			continue
		}

		switch field {
		case model.FieldTaxID:
			digits := digitsOnly(value)
			if digits != "" {
				c.TaxID = digits
				c.Fields[field] = digits
			}
		case model.FieldLegalName, model.FieldCompanyName, model.FieldTradeName:
			if !usableName(value) {
				continue
			}
			c.Fields[field] = value
			if field == model.FieldTradeName {
				c.TradeName = value
			} else if c.LegalName == "" {
				c.LegalName = value
			}
		case model.FieldWebsite, model.FieldDomain:
			c.Fields[field] = value
			c.Website = value
			if d := domainOf(value); d != "" {
				c.Domain = d
			}
		case model.FieldEmail:
			c.Fields[field] = value
			c.Email = value
		case model.FieldPhone:
			c.Fields[field] = value
			c.Phone = value
		default:
			c.Fields[field] = value
		}
	}

	admitted := len(c.TaxID) == model.TaxIDLength && (c.LegalName != "" || c.TradeName != "")
	return c, admitted
}

// NormalizeResult is the outcome of normalizing a full dataset.
// Dropped + len(Admitted) always equals the input row count.
type NormalizeResult struct {
	Admitted []model.Company
	Dropped  int
	Total    int
}

// Normalize resolves every raw row, partitioning into admitted companies
// and a dropped count. Dropped rows are counted, never silently discarded.
func Normalize(rows []RawRow, mappings []mapping.ColumnMapping) NormalizeResult {
	resolver := NewResolver(mappings)
	res := NormalizeResult{Total: len(rows)}
	for i, row := range rows {
		company, ok := resolver.Resolve(row, i)
		if !ok {
			res.Dropped++
			continue
		}
		res.Admitted = append(res.Admitted, company)
	}
	return res
}

func usableName(s string) bool {
	if len(s) < minNameLength {
		return false
	}
	return !trivialNames[strings.ToLower(s)]
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// domainOf strips scheme and trailing slash from a website value, keeping
// only values that look like a bare domain.
func domainOf(website string) string {
	d := strings.TrimPrefix(website, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimSuffix(d, "/")
	d = strings.TrimPrefix(d, "www.")
	if d == "" || strings.EqualFold(d, "n/a") || !strings.Contains(d, ".") {
		return ""
	}
	return d
}
