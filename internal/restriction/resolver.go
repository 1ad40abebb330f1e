package restriction

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/safeplate/safescan/internal/model"
)

// Source supplies a subject's configured restriction bindings. The store
// implements this; tests use in-memory fakes.
type Source interface {
	ListSubjectRestrictions(ctx context.Context, subjectID string) ([]model.SubjectRestriction, error)
}

// Resolver assembles a subject's active restriction set, enriched with
// registry definitions.
type Resolver struct {
	source   Source
	registry *Registry
}

// NewResolver creates a Resolver over the given source and registry.
func NewResolver(source Source, registry *Registry) *Resolver {
	return &Resolver{source: source, registry: registry}
}

// Resolve returns the subject's active restrictions. An empty result is a
// valid state, not an error. Bindings whose restriction ID is unknown to
// the registry are passed through with an empty Definition so the
// assessment engine can log and skip them.
func (r *Resolver) Resolve(ctx context.Context, subjectID string) ([]model.ActiveRestriction, error) {
	bindings, err := r.source.ListSubjectRestrictions(ctx, subjectID)
	if err != nil {
		return nil, eris.Wrapf(err, "restriction: list for subject %s", subjectID)
	}

	active := make([]model.ActiveRestriction, 0, len(bindings))
	for _, b := range bindings {
		if !b.Active {
			continue
		}
		enriched := model.ActiveRestriction{SubjectRestriction: b}
		if def := r.registry.ByID(b.RestrictionID); def != nil {
			enriched.Definition = *def
		} else {
			zap.L().Warn("restriction: binding references unknown restriction",
				zap.String("subject_id", subjectID),
				zap.String("restriction_id", b.RestrictionID),
			)
		}
		active = append(active, enriched)
	}
	return active, nil
}
