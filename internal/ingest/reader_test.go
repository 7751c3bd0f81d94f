package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSVCommaDelimited(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader("CNPJ,Empresa\n11222333000181,Acme Ltda\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"CNPJ", "Empresa"}, ds.Headers)
	require.Len(t, ds.Rows, 1)
	assert.Equal(t, "Acme Ltda", ds.Rows[0]["Empresa"])
}

func TestReadCSVSniffsSemicolon(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader("CNPJ;Empresa\n11222333000181;Acme, Filial Ltda\n"))
	require.NoError(t, err)

	require.Len(t, ds.Rows, 1)
	assert.Equal(t, "Acme, Filial Ltda", ds.Rows[0]["Empresa"])
}

func TestReadCSVSniffsTab(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader("CNPJ\tEmpresa\n11222333000181\tAcme\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"CNPJ", "Empresa"}, ds.Headers)
}

func TestReadCSVStripsBOM(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader("\uFEFFCNPJ,Empresa\n11222333000181,Acme\n"))
	require.NoError(t, err)
	assert.Equal(t, "CNPJ", ds.Headers[0])
}

func TestReadCSVRejectsHTML(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("<html><table><tr><td>CNPJ</td></tr></table></html>"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTML")
}

func TestReadCSVEmptyFile(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	assert.Error(t, err)
}

func TestReadCSVHeaderOnly(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("CNPJ,Empresa\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no data rows")
}

func TestReadCSVSkipsBlankRows(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader("CNPJ,Empresa\n11222333000181,Acme\n,\n22333444000192,Beta\n"))
	require.NoError(t, err)
	assert.Len(t, ds.Rows, 2)
}

func TestReadCSVTrimsQuotedHeaders(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader("\"CNPJ\",'Empresa'\n11222333000181,Acme\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"CNPJ", "Empresa"}, ds.Headers)
}

func TestReadCSVRaggedRows(t *testing.T) {
	ds, err := ReadCSV(strings.NewReader("CNPJ,Empresa,Cidade\n11222333000181,Acme\n"))
	require.NoError(t, err)
	require.Len(t, ds.Rows, 1)
	assert.Equal(t, "", ds.Rows[0]["Cidade"])
}
