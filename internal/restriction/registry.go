// Package restriction resolves a subject's enabled restrictions against
// the canonical restriction registry.
package restriction

import (
	_ "embed"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/safeplate/safescan/internal/model"
)

//go:embed seed/restrictions.yaml
var seedRestrictions []byte

// Registry is an indexed collection of restriction definitions.
type Registry struct {
	Definitions []model.DietaryRestriction
	byID        map[string]*model.DietaryRestriction
}

// NewRegistry creates a Registry with indexed lookups.
func NewRegistry(defs []model.DietaryRestriction) *Registry {
	r := &Registry{
		Definitions: defs,
		byID:        make(map[string]*model.DietaryRestriction, len(defs)),
	}
	for i := range r.Definitions {
		d := &r.Definitions[i]
		r.byID[d.ID] = d
	}
	return r
}

// ByID returns the definition for the given restriction ID, or nil.
func (r *Registry) ByID(id string) *model.DietaryRestriction {
	return r.byID[id]
}

// LoadRegistry parses restriction definitions from YAML.
func LoadRegistry(data []byte) (*Registry, error) {
	var wrapper struct {
		Restrictions []model.DietaryRestriction `yaml:"restrictions"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "restriction: parse registry")
	}
	for i, d := range wrapper.Restrictions {
		if d.ID == "" {
			return nil, eris.Errorf("restriction: definition %d has no id", i)
		}
	}
	return NewRegistry(wrapper.Restrictions), nil
}

// SeedRegistry returns the registry shipped with the binary.
func SeedRegistry() (*Registry, error) {
	return LoadRegistry(seedRestrictions)
}
