package assess

import (
	_ "embed"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/safeplate/safescan/internal/model"
)

//go:embed seed/risk_records.yaml
var seedRiskRecords []byte

// LoadRecords parses ingredient risk records from YAML.
func LoadRecords(data []byte) ([]model.IngredientRiskRecord, error) {
	var wrapper struct {
		Records []model.IngredientRiskRecord `yaml:"records"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "assess: parse risk records")
	}
	for i, r := range wrapper.Records {
		if r.RestrictionID == "" {
			return nil, eris.Errorf("assess: risk record %d has no restriction_id", i)
		}
		if len(r.MatchTerms) == 0 {
			return nil, eris.Errorf("assess: risk record %d (%s) has no match terms", i, r.RestrictionID)
		}
	}
	return wrapper.Records, nil
}

// SeedRecords returns the curated records shipped with the binary.
func SeedRecords() ([]model.IngredientRiskRecord, error) {
	return LoadRecords(seedRiskRecords)
}
