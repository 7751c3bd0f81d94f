// Package model holds the shared domain types for the prospect
// qualification pipeline.
package model

import "time"

// Temperature is the three-bucket classification derived from the ICP score.
type Temperature string

const (
	TemperatureHot  Temperature = "hot"
	TemperatureWarm Temperature = "warm"
	TemperatureCold Temperature = "cold"
)

// Temperature bucket boundaries. These are a fixed contract shared by the
// scorer and the report aggregator.
const (
	HotScoreFloor  = 70
	WarmScoreFloor = 40
)

// TemperatureForScore maps an ICP score to its temperature bucket.
func TemperatureForScore(score int) Temperature {
	switch {
	case score >= HotScoreFloor:
		return TemperatureHot
	case score >= WarmScoreFloor:
		return TemperatureWarm
	default:
		return TemperatureCold
	}
}

// TaxIDLength is the number of digits in a valid national company tax ID (CNPJ).
const TaxIDLength = 14

// Company is a normalized, admitted row from the source spreadsheet.
// Immutable once admitted to the pipeline.
type Company struct {
	TaxID     string `json:"tax_id"`
	LegalName string `json:"legal_name"`
	TradeName string `json:"trade_name,omitempty"`
	Website   string `json:"website,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Domain    string `json:"domain,omitempty"`

	// RowIndex is the zero-based position in the original file, used to
	// restore submission order in reports.
	RowIndex int `json:"row_index"`

	// Fields holds every mapped canonical field, keyed by field key.
	Fields map[string]string `json:"fields,omitempty"`

	// Extra retains custom or unmapped columns the operator chose to keep.
	Extra map[string]string `json:"extra,omitempty"`
}

// Name returns the best available display name for the company.
func (c Company) Name() string {
	if c.LegalName != "" {
		return c.LegalName
	}
	return c.TradeName
}

// Outcome is the terminal classification of a processed item.
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeRejected Outcome = "rejected"
	OutcomeError    Outcome = "error"
)

// RecordStatus is the persisted status of an analysis or quarantine record.
// Values match the wire format of the quarantine store.
type RecordStatus string

const (
	StatusPending   RecordStatus = "pendente"
	StatusDiscarded RecordStatus = "descartado"
	StatusError     RecordStatus = "erro"
)

// Evidence is a single finding supporting an analysis decision.
type Evidence struct {
	Source      string `json:"source"`
	Description string `json:"description"`
}

// ScoreBreakdown holds the per-dimension sub-scores of an ICP score.
type ScoreBreakdown struct {
	Location   int `json:"location"`
	Size       int `json:"size"`
	Industry   int `json:"industry"`
	Status     int `json:"status"`
	Technology int `json:"technology"`
}

// AnalysisResult is the terminal outcome of one company's run through the
// batch engine. Immutable once appended.
type AnalysisResult struct {
	RowIndex         int             `json:"row_index"`
	TaxID            string          `json:"tax_id"`
	LegalName        string          `json:"legal_name"`
	Outcome          Outcome         `json:"outcome"`
	ICPScore         int             `json:"icp_score,omitempty"`
	Temperature      Temperature     `json:"temperature,omitempty"`
	Breakdown        *ScoreBreakdown `json:"breakdown,omitempty"`
	Reasons          []string        `json:"reasons,omitempty"`
	RejectReason     string          `json:"reject_reason,omitempty"`
	ErrorMessage     string          `json:"error_message,omitempty"`
	FailedStep       string          `json:"failed_step,omitempty"`
	ExistingCustomer bool            `json:"existing_customer,omitempty"`
	Evidence         []Evidence      `json:"evidence,omitempty"`
	PlatformsChecked int             `json:"platforms_checked,omitempty"`
	DegradedAnalysis bool            `json:"degraded_analysis,omitempty"`
	ElapsedMillis    int64           `json:"elapsed_ms,omitempty"`
}

// QuarantineRecord is the persisted shape of a scored prospect awaiting
// human review, keyed by tax ID.
type QuarantineRecord struct {
	TaxID        string       `json:"tax_id"`
	LegalName    string       `json:"legal_name"`
	ICPScore     int          `json:"icp_score"`
	Temperature  Temperature  `json:"temperature"`
	Status       RecordStatus `json:"status"`
	RejectReason string       `json:"reject_reason,omitempty"`
	Evidence     []Evidence   `json:"evidence,omitempty"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// AnalysisRecord is the audit-trail row written for every analysis attempt,
// regardless of outcome.
type AnalysisRecord struct {
	ID          string            `json:"id"`
	TaxID       string            `json:"tax_id"`
	LegalName   string            `json:"legal_name"`
	Origin      string            `json:"origin"`
	Status      RecordStatus      `json:"status"`
	RawFields   map[string]string `json:"raw_fields,omitempty"`
	ICPScore    int               `json:"icp_score,omitempty"`
	Temperature Temperature       `json:"temperature,omitempty"`
	Breakdown   *ScoreBreakdown   `json:"breakdown,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	Error       string            `json:"error,omitempty"`
	AnalyzedAt  *time.Time        `json:"analyzed_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}
