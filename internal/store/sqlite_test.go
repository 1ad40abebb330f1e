package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safeplate/safescan/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLiteStore_ProductRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	verified := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	p := model.Product{
		ID:                "p-1",
		Barcode:           "012000005107",
		Name:              "Cola Classic",
		Brand:             "TestBrand",
		IngredientsText:   "water, sugar, caffeine",
		DeclaredAllergens: []string{"peanuts"},
		DataQualityScore:  85,
		VerificationCount: 12,
		LastVerifiedAt:    &verified,
	}
	require.NoError(t, s.UpsertProduct(ctx, p))

	got, err := s.GetProductByBarcode(ctx, "012000005107")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Cola Classic", got.Name)
	assert.Equal(t, []string{"peanuts"}, got.DeclaredAllergens)
	assert.Equal(t, 85, got.DataQualityScore)
	require.NotNil(t, got.LastVerifiedAt)
	assert.Equal(t, verified, got.LastVerifiedAt.UTC())
}

func TestSQLiteStore_GetProduct_Miss(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetProductByBarcode(context.Background(), "00000000")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteStore_UpsertProduct_Replaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := model.Product{ID: "p-1", Barcode: "40111111", Name: "Old Name", VerificationCount: 1}
	require.NoError(t, s.UpsertProduct(ctx, p))

	p.Name = "New Name"
	p.VerificationCount = 2
	require.NoError(t, s.UpsertProduct(ctx, p))

	got, err := s.GetProductByBarcode(ctx, "40111111")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "New Name", got.Name)
	assert.Equal(t, 2, got.VerificationCount)
}

func TestSQLiteStore_SubjectRestrictions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertSubjectRestriction(ctx, model.SubjectRestriction{
		SubjectID:                   "alex",
		RestrictionID:               "peanuts",
		Severity:                    model.SeverityLifeThreatening,
		DoctorVerified:              true,
		CrossContaminationSensitive: true,
		Active:                      true,
	}))
	require.NoError(t, s.UpsertSubjectRestriction(ctx, model.SubjectRestriction{
		SubjectID:     "alex",
		RestrictionID: "milk",
		Severity:      model.SeverityMild,
		Active:        false,
	}))

	got, err := s.ListSubjectRestrictions(ctx, "alex")
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Ordered by restriction_id.
	assert.Equal(t, "milk", got[0].RestrictionID)
	assert.False(t, got[0].Active)
	assert.Equal(t, "peanuts", got[1].RestrictionID)
	assert.Equal(t, model.SeverityLifeThreatening, got[1].Severity)
	assert.True(t, got[1].CrossContaminationSensitive)
}

func TestSQLiteStore_UpsertSubjectRestriction_Deactivate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sr := model.SubjectRestriction{SubjectID: "alex", RestrictionID: "soy", Severity: model.SeverityModerate, Active: true}
	require.NoError(t, s.UpsertSubjectRestriction(ctx, sr))

	sr.Active = false
	require.NoError(t, s.UpsertSubjectRestriction(ctx, sr))

	got, err := s.ListSubjectRestrictions(ctx, "alex")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.False(t, got[0].Active)
}

func TestSQLiteStore_ListSubjects(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, subject := range []string{"alex", "sam", "alex"} {
		require.NoError(t, s.UpsertSubjectRestriction(ctx, model.SubjectRestriction{
			SubjectID: subject, RestrictionID: "peanuts-" + subject, Severity: model.SeverityMild, Active: true,
		}))
	}

	subjects, err := s.ListSubjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alex", "sam"}, subjects)
}

func TestSQLiteStore_ScanLogRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := ScanRecord{
		SubjectID:       "alex",
		Barcode:         "012000005107",
		Symbology:       model.SymbologyUPCA,
		ProductID:       "p-1",
		ProductName:     "Cola Classic",
		OverallLevel:    model.RiskDanger,
		ConfidenceScore: 87,
		RiskFactors: []model.RiskFactor{
			{Ingredient: "peanuts", RestrictionID: "peanuts", Level: model.RiskDanger, Severity: model.SeverityLifeThreatening},
		},
		ScannedAt: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.AppendScan(ctx, rec))

	got, err := s.ListScans(ctx, ScanFilter{SubjectID: "alex"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].ID)
	assert.Equal(t, model.RiskDanger, got[0].OverallLevel)
	assert.Equal(t, model.SymbologyUPCA, got[0].Symbology)
	require.Len(t, got[0].RiskFactors, 1)
	assert.Equal(t, "peanuts", got[0].RiskFactors[0].Ingredient)
	assert.Equal(t, model.SeverityLifeThreatening, got[0].RiskFactors[0].Severity)
}

func TestSQLiteStore_ListScans_Filters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	levels := []model.RiskLevel{model.RiskSafe, model.RiskCaution, model.RiskDanger}
	for i, level := range levels {
		require.NoError(t, s.AppendScan(ctx, ScanRecord{
			SubjectID:    "alex",
			Barcode:      "40111111",
			Symbology:    model.SymbologyEAN8,
			OverallLevel: level,
			ScannedAt:    base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, s.AppendScan(ctx, ScanRecord{
		SubjectID: "sam", Barcode: "40222222", Symbology: model.SymbologyEAN8,
		OverallLevel: model.RiskSafe, ScannedAt: base,
	}))

	// Newest first.
	all, err := s.ListScans(ctx, ScanFilter{SubjectID: "alex"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, model.RiskDanger, all[0].OverallLevel)

	danger := model.RiskDanger
	filtered, err := s.ListScans(ctx, ScanFilter{SubjectID: "alex", Level: &danger})
	require.NoError(t, err)
	require.Len(t, filtered, 1)

	since, err := s.ListScans(ctx, ScanFilter{SubjectID: "alex", Since: base.Add(90 * time.Second)})
	require.NoError(t, err)
	assert.Len(t, since, 1)

	limited, err := s.ListScans(ctx, ScanFilter{SubjectID: "alex", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestSQLiteStore_ClearScans(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, subject := range []string{"alex", "alex", "sam"} {
		require.NoError(t, s.AppendScan(ctx, ScanRecord{
			SubjectID: subject, Barcode: "40111111", Symbology: model.SymbologyEAN8,
			OverallLevel: model.RiskSafe, ScannedAt: time.Now().UTC(),
		}))
	}

	n, err := s.ClearScans(ctx, "alex")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	remaining, err := s.ListScans(ctx, ScanFilter{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "sam", remaining[0].SubjectID)

	n, err = s.ClearScans(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLiteStore_MigrateIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.Migrate(context.Background()))
}
