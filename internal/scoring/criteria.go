package scoring

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/leadscope/prospect-cli/internal/model"
)

// LoadCriteria reads an ICP criteria file in YAML. Missing weight fields
// fall back to the defaults so a partial file still scores sensibly.
func LoadCriteria(path string) (model.ICPCriteria, error) {
	criteria := model.DefaultCriteria()
	if path == "" {
		return criteria, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return criteria, eris.Wrapf(err, "scoring: read criteria file %s", path)
	}
	if err := yaml.Unmarshal(data, &criteria); err != nil {
		return criteria, eris.Wrapf(err, "scoring: parse criteria file %s", path)
	}

	if criteria.Weights.Total() <= 0 {
		criteria.Weights = model.DefaultWeights()
	}
	if len(criteria.ValidStatuses) == 0 {
		criteria.ValidStatuses = model.DefaultCriteria().ValidStatuses
	}
	return criteria, nil
}
