package model

import (
	"encoding/json"
	"testing"
)

func TestRiskLevel_Ordering(t *testing.T) {
	if !(RiskSafe < RiskCaution && RiskCaution < RiskWarning && RiskWarning < RiskDanger) {
		t.Fatal("risk levels must be strictly ordered safe < caution < warning < danger")
	}
}

func TestRiskLevel_Downgrade(t *testing.T) {
	tests := []struct {
		in, want RiskLevel
	}{
		{RiskDanger, RiskWarning},
		{RiskWarning, RiskCaution},
		{RiskCaution, RiskSafe},
		{RiskSafe, RiskSafe},
	}
	for _, tt := range tests {
		if got := tt.in.Downgrade(); got != tt.want {
			t.Errorf("Downgrade(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestMaxRiskLevel(t *testing.T) {
	if got := MaxRiskLevel(RiskCaution, RiskDanger); got != RiskDanger {
		t.Errorf("MaxRiskLevel(caution, danger) = %s", got)
	}
	if got := MaxRiskLevel(RiskWarning, RiskSafe); got != RiskWarning {
		t.Errorf("MaxRiskLevel(warning, safe) = %s", got)
	}
}

func TestRiskLevel_JSONRoundTrip(t *testing.T) {
	for _, l := range []RiskLevel{RiskSafe, RiskCaution, RiskWarning, RiskDanger} {
		data, err := json.Marshal(l)
		if err != nil {
			t.Fatalf("marshal %s: %v", l, err)
		}
		var back RiskLevel
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if back != l {
			t.Errorf("round trip %s came back as %s", l, back)
		}
	}
}

func TestParseRiskLevel_Unknown(t *testing.T) {
	if _, err := ParseRiskLevel("fatal"); err == nil {
		t.Error("expected error for unknown risk level")
	}
}

func TestSeverity_Ordering(t *testing.T) {
	if !(SeverityMild < SeverityModerate && SeverityModerate < SeveritySevere && SeveritySevere < SeverityLifeThreatening) {
		t.Fatal("severities must be strictly ordered mild < moderate < severe < life_threatening")
	}
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		in      string
		want    Severity
		wantErr bool
	}{
		{"mild", SeverityMild, false},
		{"moderate", SeverityModerate, false},
		{"severe", SeveritySevere, false},
		{"life_threatening", SeverityLifeThreatening, false},
		{"deadly", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseSeverity(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseSeverity(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseSeverity(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSeverity(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestSafetyAssessment_Blocking(t *testing.T) {
	tests := []struct {
		level RiskLevel
		want  bool
	}{
		{RiskSafe, false},
		{RiskCaution, false},
		{RiskWarning, true},
		{RiskDanger, true},
	}
	for _, tt := range tests {
		a := &SafetyAssessment{OverallLevel: tt.level}
		if got := a.Blocking(); got != tt.want {
			t.Errorf("Blocking() with %s = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestSymbology_Numeric(t *testing.T) {
	numeric := []Symbology{SymbologyUPCA, SymbologyUPCE, SymbologyEAN13, SymbologyEAN8}
	for _, s := range numeric {
		if !s.Numeric() {
			t.Errorf("%s should be numeric", s)
		}
	}
	other := []Symbology{SymbologyCode128, SymbologyQR, SymbologyPDF417, SymbologyCodabar}
	for _, s := range other {
		if s.Numeric() {
			t.Errorf("%s should not be numeric", s)
		}
	}
}
