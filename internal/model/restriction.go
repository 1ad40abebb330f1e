package model

// RestrictionCategory groups restriction definitions by why they exist.
type RestrictionCategory string

const (
	CategoryAllergy     RestrictionCategory = "allergy"
	CategoryIntolerance RestrictionCategory = "intolerance"
	CategoryMedical     RestrictionCategory = "medical"
	CategoryLifestyle   RestrictionCategory = "lifestyle"
	CategoryReligious   RestrictionCategory = "religious"
	CategoryPreference  RestrictionCategory = "preference"
)

// DietaryRestriction is a canonical restriction definition from the
// reference registry.
type DietaryRestriction struct {
	ID                     string              `json:"id" yaml:"id"`
	Name                   string              `json:"name" yaml:"name"`
	Category               RestrictionCategory `json:"category" yaml:"category"`
	CommonNames            []string            `json:"common_names" yaml:"common_names"`
	CrossContaminationRisk bool                `json:"cross_contamination_risk" yaml:"cross_contamination_risk"`
	DefaultSeverity        Severity            `json:"default_severity" yaml:"default_severity"`
}

// SubjectRestriction binds a subject (the user or a family member) to a
// restriction. Only active entries participate in assessment.
type SubjectRestriction struct {
	SubjectID                   string   `json:"subject_id"`
	RestrictionID               string   `json:"restriction_id"`
	Severity                    Severity `json:"severity"`
	DoctorVerified              bool     `json:"doctor_verified"`
	CrossContaminationSensitive bool     `json:"cross_contamination_sensitive"`
	Active                      bool     `json:"active"`
}

// ActiveRestriction is a subject binding enriched with its registry
// definition, as produced by the restriction resolver.
type ActiveRestriction struct {
	SubjectRestriction
	Definition DietaryRestriction `json:"definition"`
}
