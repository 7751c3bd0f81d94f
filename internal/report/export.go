package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/leadscope/prospect-cli/internal/model"
)

var exportHeader = []string{
	"row", "cnpj", "razao_social", "outcome", "icp_score", "temperatura",
	"motivos", "descarte", "erro", "cliente_existente", "analise_basica",
}

// WriteCSV exports results as semicolon-delimited CSV in submission order.
func WriteCSV(w io.Writer, results []model.AnalysisResult) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'

	if err := cw.Write(exportHeader); err != nil {
		return eris.Wrap(err, "report: write csv header")
	}

	ordered := Filter{}.Apply(results)
	for _, r := range ordered {
		record := []string{
			strconv.Itoa(r.RowIndex + 1),
			r.TaxID,
			r.LegalName,
			string(r.Outcome),
			strconv.Itoa(r.ICPScore),
			string(r.Temperature),
			strings.Join(r.Reasons, " | "),
			r.RejectReason,
			r.ErrorMessage,
			boolMark(r.ExistingCustomer),
			boolMark(r.DegradedAnalysis),
		}
		if err := cw.Write(record); err != nil {
			return eris.Wrap(err, "report: write csv row")
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "report: flush csv")
}

func boolMark(b bool) string {
	if b {
		return "sim"
	}
	return ""
}
