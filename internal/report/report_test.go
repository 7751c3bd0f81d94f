package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadscope/prospect-cli/internal/model"
)

func sampleResults() []model.AnalysisResult {
	return []model.AnalysisResult{
		{RowIndex: 2, TaxID: "33333333000133", LegalName: "Gama", Outcome: model.OutcomeApproved, ICPScore: 45, Temperature: model.TemperatureWarm, ElapsedMillis: 900},
		{RowIndex: 0, TaxID: "11111111000111", LegalName: "Acme", Outcome: model.OutcomeApproved, ICPScore: 85, Temperature: model.TemperatureHot, ElapsedMillis: 1200},
		{RowIndex: 1, TaxID: "22222222000122", LegalName: "Beta", Outcome: model.OutcomeRejected, RejectReason: "already an active customer", ExistingCustomer: true},
		{RowIndex: 3, TaxID: "44444444000144", LegalName: "Delta", Outcome: model.OutcomeError, ErrorMessage: "disk full", DegradedAnalysis: true},
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleResults())

	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.Approved)
	assert.Equal(t, 1, s.Rejected)
	assert.Equal(t, 1, s.Errored)
	assert.Equal(t, 1, s.Hot)
	assert.Equal(t, 1, s.Warm)
	assert.Zero(t, s.Cold)
	assert.Equal(t, 1, s.ExistingCustomers)
	assert.Equal(t, 1, s.Degraded)
	assert.Equal(t, 65, s.AverageScore)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	assert.Zero(t, s.Total)
	assert.Zero(t, s.AverageScore)
}

func TestFilterRestoresSubmissionOrder(t *testing.T) {
	out := Filter{}.Apply(sampleResults())
	require.Len(t, out, 4)
	for i := range out {
		assert.Equal(t, i, out[i].RowIndex)
	}
}

func TestFilterByOutcomeAndScore(t *testing.T) {
	approved := Filter{Outcome: model.OutcomeApproved}.Apply(sampleResults())
	assert.Len(t, approved, 2)

	hot := Filter{Temperature: model.TemperatureHot}.Apply(sampleResults())
	require.Len(t, hot, 1)
	assert.Equal(t, "Acme", hot[0].LegalName)

	strong := Filter{MinScore: 50}.Apply(sampleResults())
	require.Len(t, strong, 1)
	assert.Equal(t, 85, strong[0].ICPScore)
}

func TestFilterBySearch(t *testing.T) {
	byName := Filter{Search: "acm"}.Apply(sampleResults())
	require.Len(t, byName, 1)
	assert.Equal(t, "Acme", byName[0].LegalName)

	byTaxID := Filter{Search: "22222222"}.Apply(sampleResults())
	require.Len(t, byTaxID, 1)
	assert.Equal(t, "Beta", byTaxID[0].LegalName)

	assert.Empty(t, Filter{Search: "zulu"}.Apply(sampleResults()))
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleResults()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[0], "cnpj;razao_social")
	// Rows come out in submission order.
	assert.Contains(t, lines[1], "Acme")
	assert.Contains(t, lines[2], "Beta")
	assert.Contains(t, lines[3], "Gama")
	assert.Contains(t, lines[4], "Delta")
	assert.Contains(t, lines[2], "sim")
}
