package scoring

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCriteriaEmptyPathReturnsDefaults(t *testing.T) {
	criteria, err := LoadCriteria("")
	require.NoError(t, err)
	assert.Equal(t, 100, criteria.Weights.Total())
	assert.Equal(t, []string{"ATIVA"}, criteria.ValidStatuses)
}

func TestLoadCriteriaFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "icp.yaml")
	content := `
priority_states: [SP, MG]
priority_cnaes: ["6201-5"]
tech_targets: [SAP]
min_headcount: 25
weights:
  location: 10
  size: 40
  industry: 25
  status: 10
  technology: 15
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	criteria, err := LoadCriteria(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"SP", "MG"}, criteria.PriorityStates)
	assert.Equal(t, 25, criteria.MinHeadcount)
	assert.Equal(t, 40, criteria.Weights.Size)
	assert.Equal(t, []string{"ATIVA"}, criteria.ValidStatuses)
}

func TestLoadCriteriaMissingWeightsFallBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "icp.yaml")
	require.NoError(t, os.WriteFile(path, []byte("priority_states: [SP]\n"), 0o644))

	criteria, err := LoadCriteria(path)
	require.NoError(t, err)
	assert.Equal(t, 100, criteria.Weights.Total())
}

func TestLoadCriteriaMissingFile(t *testing.T) {
	_, err := LoadCriteria(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
