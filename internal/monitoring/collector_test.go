package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safeplate/safescan/internal/model"
	"github.com/safeplate/safescan/internal/store"
)

type fakeScanLog struct {
	recs []store.ScanRecord
	err  error
}

func (f *fakeScanLog) ListScans(_ context.Context, _ store.ScanFilter) ([]store.ScanRecord, error) {
	return f.recs, f.err
}

func TestCollector_Collect(t *testing.T) {
	now := time.Now().UTC()
	log := &fakeScanLog{recs: []store.ScanRecord{
		{SubjectID: "alex", Barcode: "40111111", OverallLevel: model.RiskSafe, ConfidenceScore: 90, ScannedAt: now},
		{SubjectID: "alex", Barcode: "40222222", OverallLevel: model.RiskCaution, ConfidenceScore: 40, ScannedAt: now},
		{SubjectID: "sam", Barcode: "40111111", OverallLevel: model.RiskWarning, ConfidenceScore: 70, ScannedAt: now},
		{SubjectID: "sam", Barcode: "40333333", OverallLevel: model.RiskDanger, ConfidenceScore: 80, ScannedAt: now},
	}}

	snap, err := NewCollector(log).Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 4, snap.ScansTotal)
	assert.Equal(t, 1, snap.SafeCount)
	assert.Equal(t, 1, snap.CautionCount)
	assert.Equal(t, 1, snap.WarningCount)
	assert.Equal(t, 1, snap.DangerCount)
	assert.Equal(t, 2, snap.SubjectsSeen)
	assert.Equal(t, 3, snap.UniqueBarcode)
	assert.InDelta(t, 0.5, snap.BlockingRate, 0.001)
	assert.InDelta(t, 70.0, snap.AvgConfidence, 0.001)
	assert.Equal(t, 24, snap.LookbackHours)
}

func TestCollector_Collect_Empty(t *testing.T) {
	snap, err := NewCollector(&fakeScanLog{}).Collect(context.Background(), 24)
	require.NoError(t, err)
	assert.Zero(t, snap.ScansTotal)
	assert.Zero(t, snap.BlockingRate)
	assert.Zero(t, snap.AvgConfidence)
}

func TestCollector_Collect_StoreError(t *testing.T) {
	_, err := NewCollector(&fakeScanLog{err: errors.New("db down")}).Collect(context.Background(), 24)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}
