// Package assess turns a product's ingredient data and a subject's active
// restriction set into a deterministic, auditable safety verdict.
package assess

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/safeplate/safescan/internal/model"
)

// Engine computes safety assessments. It is a pure computation over its
// loaded risk records: safe to share across sessions and subjects, no
// shared mutable state.
type Engine struct {
	byRestriction map[string][]model.IngredientRiskRecord
	lower         cases.Caser
	nowFunc       func() time.Time
	newID         func() string
}

// NewEngine creates an Engine over the given curated risk records.
func NewEngine(records []model.IngredientRiskRecord) *Engine {
	byRestriction := make(map[string][]model.IngredientRiskRecord)
	for _, r := range records {
		byRestriction[r.RestrictionID] = append(byRestriction[r.RestrictionID], r)
	}
	return &Engine{
		byRestriction: byRestriction,
		lower:         cases.Lower(language.Und),
		nowFunc:       time.Now,
		newID:         func() string { return uuid.New().String() },
	}
}

// Assess computes the verdict for one (product, subject) pair. The result
// is a fresh immutable value; identical inputs yield identical risk
// factors and overall level (only ID and ComputedAt differ).
//
// No active restrictions always yields safe with no risk factors: there is
// nothing to check against, which is distinct from "restrictions exist but
// nothing matched".
func (e *Engine) Assess(product *model.Product, restrictions []model.ActiveRestriction) *model.SafetyAssessment {
	a := &model.SafetyAssessment{
		ID:           e.newID(),
		ProductID:    product.ID,
		OverallLevel: model.RiskSafe,
		RiskFactors:  []model.RiskFactor{},
		ComputedAt:   e.nowFunc().UTC(),
	}
	if len(restrictions) > 0 {
		a.SubjectID = restrictions[0].SubjectID
	}

	textTokens := tokenizeIngredients(product.IngredientsText)
	mentions := unionMentions(textTokens, product.DeclaredAllergens, e.fold)

	a.ConfidenceScore = confidenceScore(product.DataQualityScore, product.VerificationCount, len(textTokens))

	if len(restrictions) == 0 {
		a.SafeCount = len(mentions)
		return a
	}

	if len(mentions) == 0 {
		// No ingredient data at all. Never report safe on absence of
		// evidence: low-confidence caution instead.
		a.OverallLevel = model.RiskCaution
		if a.ConfidenceScore > lowConfidenceCeiling {
			a.ConfidenceScore = lowConfidenceCeiling
		}
		return a
	}

	for _, mention := range mentions {
		folded := e.fold(mention)
		matched := false

		for _, r := range restrictions {
			if r.Definition.ID == "" {
				// Resolver passed through a restriction the registry does
				// not recognize; skip it but keep assessing the rest.
				zap.L().Warn("assess: skipping unknown restriction",
					zap.String("restriction_id", r.RestrictionID),
					zap.String("subject_id", r.SubjectID),
				)
				continue
			}

			level, viaCC, ok := e.resolveMatch(folded, r)
			if !ok || level == model.RiskSafe {
				continue
			}
			matched = true
			a.RiskFactors = append(a.RiskFactors, model.RiskFactor{
				Ingredient:                mention,
				RestrictionID:             r.RestrictionID,
				Level:                     level,
				Severity:                  r.Severity,
				ViaCrossContaminationOnly: viaCC,
			})
		}

		if !matched {
			a.SafeCount++
		}
	}

	for _, f := range a.RiskFactors {
		a.OverallLevel = model.MaxRiskLevel(a.OverallLevel, f.Level)
		switch f.Level {
		case model.RiskDanger:
			a.DangerCount++
		case model.RiskWarning, model.RiskCaution:
			// Warning buckets with caution for the two public counters;
			// the full breakdown stays in RiskFactors.
			a.CautionCount++
		case model.RiskSafe:
		}
	}

	if len(a.RiskFactors) == 0 && a.ConfidenceScore < safeConfidenceThreshold {
		// Nothing matched, but the source data is too thin to call safe.
		a.OverallLevel = model.RiskCaution
	}

	return a
}

// resolveMatch finds the risk record that best describes one (mention,
// restriction) pair, applying the cross-contamination downgrade: a
// "may contain" record contributes one step lower for subjects who are
// not cross-contamination sensitive.
//
// When several records match the same mention, the longest matched term
// wins: an advisory mention like "may contain peanuts" also contains the
// bare direct term "peanut", and only the advisory record describes it.
// Ties fall to the higher post-downgrade level.
func (e *Engine) resolveMatch(foldedMention string, r model.ActiveRestriction) (model.RiskLevel, bool, bool) {
	best := model.RiskSafe
	bestLen := 0
	viaCC := false
	found := false

	for _, rec := range e.byRestriction[r.RestrictionID] {
		matchLen := e.longestMatch(foldedMention, rec.MatchTerms)
		if matchLen == 0 {
			continue
		}
		level := rec.Level
		if rec.CrossContaminationOnly && !r.CrossContaminationSensitive {
			level = level.Downgrade()
		}
		if !found || matchLen > bestLen || (matchLen == bestLen && level > best) {
			best = level
			bestLen = matchLen
			viaCC = rec.CrossContaminationOnly
			found = true
		}
	}
	return best, viaCC, found
}

// longestMatch returns the length of the longest term contained in the
// mention, or 0 when none match.
func (e *Engine) longestMatch(foldedMention string, terms []string) int {
	best := 0
	for _, term := range terms {
		folded := e.fold(term)
		if folded == "" {
			continue
		}
		if strings.Contains(foldedMention, folded) && len(folded) > best {
			best = len(folded)
		}
	}
	return best
}

func (e *Engine) fold(s string) string {
	return e.lower.String(strings.TrimSpace(s))
}
