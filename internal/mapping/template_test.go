package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadscope/prospect-cli/internal/model"
)

func templateFixture() Template {
	return Template{
		Name: "planilha padrao",
		Mappings: []ColumnMapping{
			{CSVColumn: "Documento", SystemField: model.FieldTaxID, Status: StatusMapped, Confidence: 100},
			{CSVColumn: "Empresa", SystemField: model.FieldLegalName, Status: StatusMapped, Confidence: 100},
			{CSVColumn: "Status Cadastral", SystemField: model.FieldRegistryState, Status: StatusMapped, Confidence: 100},
			{CSVColumn: "Ignorar", SystemField: FieldSkip, Status: StatusUnmapped},
		},
	}
}

func TestApplyTemplateExactColumnMatch(t *testing.T) {
	current := MapColumns([]string{"documento", "Empresa"})

	updated, matched, pending := ApplyTemplate(current, templateFixture())
	require.Len(t, updated, 2)
	assert.Equal(t, 2, matched)
	assert.Zero(t, pending)

	assert.Equal(t, model.FieldTaxID, updated[0].SystemField)
	assert.Equal(t, StatusMapped, updated[0].Status)
	assert.Equal(t, 100, updated[0].Confidence)
	assert.Equal(t, model.FieldLegalName, updated[1].SystemField)
}

func TestApplyTemplateFuzzySecondPass(t *testing.T) {
	// "Situação Cadastral" is not a column the template saw, but it maps
	// confidently to a field the template carries.
	current := MapColumns([]string{"Situação Cadastral"})

	updated, matched, pending := ApplyTemplate(current, templateFixture())
	require.Len(t, updated, 1)

	assert.Equal(t, 1, matched)
	assert.Zero(t, pending)
	assert.Equal(t, model.FieldRegistryState, updated[0].SystemField)
	assert.Equal(t, StatusMapped, updated[0].Status)
}

func TestApplyTemplateUnresolvedStaysPending(t *testing.T) {
	current := MapColumns([]string{"coluna desconhecida xyz"})

	updated, matched, pending := ApplyTemplate(current, templateFixture())
	assert.Zero(t, matched)
	assert.Equal(t, 1, pending)
	assert.Equal(t, current[0].SystemField, updated[0].SystemField)
}

func TestApplyTemplateDoesNotMutateInput(t *testing.T) {
	current := MapColumns([]string{"Documento"})
	before := current[0]

	ApplyTemplate(current, templateFixture())
	assert.Equal(t, before, current[0])
}
