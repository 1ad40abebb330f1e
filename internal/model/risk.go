package model

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// RiskLevel classifies how dangerous a product (or a single ingredient
// match) is for a subject. Levels are strictly ordered:
// safe < caution < warning < danger.
type RiskLevel int

const (
	RiskSafe RiskLevel = iota
	RiskCaution
	RiskWarning
	RiskDanger
)

func (l RiskLevel) String() string {
	switch l {
	case RiskSafe:
		return "safe"
	case RiskCaution:
		return "caution"
	case RiskWarning:
		return "warning"
	case RiskDanger:
		return "danger"
	default:
		return "unknown"
	}
}

// ParseRiskLevel converts the wire/seed representation into a RiskLevel.
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch s {
	case "safe":
		return RiskSafe, nil
	case "caution":
		return RiskCaution, nil
	case "warning":
		return RiskWarning, nil
	case "danger":
		return RiskDanger, nil
	default:
		return RiskSafe, eris.Errorf("model: unknown risk level %q", s)
	}
}

// Downgrade steps the level down by exactly one: danger becomes warning,
// warning becomes caution, caution becomes safe. Safe stays safe.
func (l RiskLevel) Downgrade() RiskLevel {
	switch l {
	case RiskDanger:
		return RiskWarning
	case RiskWarning:
		return RiskCaution
	case RiskCaution:
		return RiskSafe
	case RiskSafe:
		return RiskSafe
	default:
		return l
	}
}

// MaxRiskLevel returns the more severe of two levels.
func MaxRiskLevel(a, b RiskLevel) RiskLevel {
	if b > a {
		return b
	}
	return a
}

func (l RiskLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *RiskLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return eris.Wrap(err, "model: unmarshal risk level")
	}
	parsed, err := ParseRiskLevel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// UnmarshalYAML lets seed files spell levels as plain strings.
func (l *RiskLevel) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return eris.Wrap(err, "model: unmarshal risk level yaml")
	}
	parsed, err := ParseRiskLevel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Severity is how seriously a subject reacts to a restriction violation.
// Ordered mild < moderate < severe < life_threatening. Severity never
// overrides a computed ingredient RiskLevel; it is carried on risk factors
// so the presentation layer can emphasize life-threatening restrictions.
type Severity int

const (
	SeverityMild Severity = iota
	SeverityModerate
	SeveritySevere
	SeverityLifeThreatening
)

func (s Severity) String() string {
	switch s {
	case SeverityMild:
		return "mild"
	case SeverityModerate:
		return "moderate"
	case SeveritySevere:
		return "severe"
	case SeverityLifeThreatening:
		return "life_threatening"
	default:
		return "unknown"
	}
}

// ParseSeverity converts the wire/seed representation into a Severity.
func ParseSeverity(s string) (Severity, error) {
	switch s {
	case "mild":
		return SeverityMild, nil
	case "moderate":
		return SeverityModerate, nil
	case "severe":
		return SeveritySevere, nil
	case "life_threatening":
		return SeverityLifeThreatening, nil
	default:
		return SeverityMild, eris.Errorf("model: unknown severity %q", s)
	}
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return eris.Wrap(err, "model: unmarshal severity")
	}
	parsed, err := ParseSeverity(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// UnmarshalYAML lets seed files spell severities as plain strings.
func (s *Severity) UnmarshalYAML(unmarshal func(any) error) error {
	var str string
	if err := unmarshal(&str); err != nil {
		return eris.Wrap(err, "model: unmarshal severity yaml")
	}
	parsed, err := ParseSeverity(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// IngredientRiskRecord maps ingredient match terms to a risk level for one
// restriction. Curated reference data, read-only at assessment time.
type IngredientRiskRecord struct {
	MatchTerms             []string  `json:"match_terms" yaml:"match_terms"`
	RestrictionID          string    `json:"restriction_id" yaml:"restriction_id"`
	Level                  RiskLevel `json:"level" yaml:"level"`
	CrossContaminationOnly bool      `json:"cross_contamination_only" yaml:"cross_contamination_only"`
}

// RiskFactor is one ingredient-to-restriction match contributing to a
// verdict. Severity is the subject's configured severity for the matched
// restriction, retained for UI emphasis only.
type RiskFactor struct {
	Ingredient                string    `json:"ingredient"`
	RestrictionID             string    `json:"restriction_id"`
	Level                     RiskLevel `json:"level"`
	Severity                  Severity  `json:"severity"`
	ViaCrossContaminationOnly bool      `json:"via_cross_contamination_only"`
}

// SafetyAssessment is the immutable verdict for one (product, subject)
// pair. A new scan of the same product produces a new assessment.
type SafetyAssessment struct {
	ID              string       `json:"id"`
	SubjectID       string       `json:"subject_id"`
	ProductID       string       `json:"product_id"`
	OverallLevel    RiskLevel    `json:"overall_level"`
	RiskFactors     []RiskFactor `json:"risk_factors"`
	SafeCount       int          `json:"safe_count"`
	CautionCount    int          `json:"caution_count"`
	DangerCount     int          `json:"danger_count"`
	ConfidenceScore int          `json:"confidence_score"`
	ComputedAt      time.Time    `json:"computed_at"`
}

// Blocking reports whether this verdict must lock the scan session until
// the user explicitly acknowledges it.
func (a *SafetyAssessment) Blocking() bool {
	switch a.OverallLevel {
	case RiskWarning, RiskDanger:
		return true
	case RiskSafe, RiskCaution:
		return false
	default:
		return true
	}
}
