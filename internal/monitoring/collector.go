// Package monitoring summarizes scan log activity into point-in-time
// snapshots for the stats command and the metrics endpoint.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/safeplate/safescan/internal/model"
	"github.com/safeplate/safescan/internal/store"
)

// MetricsSnapshot holds a point-in-time view of scan activity.
type MetricsSnapshot struct {
	// Scan metrics (within lookback window).
	ScansTotal    int `json:"scans_total"`
	SafeCount     int `json:"safe_count"`
	CautionCount  int `json:"caution_count"`
	WarningCount  int `json:"warning_count"`
	DangerCount   int `json:"danger_count"`
	SubjectsSeen  int `json:"subjects_seen"`
	UniqueBarcode int `json:"unique_barcodes"`

	// BlockingRate is the share of scans that locked the session
	// (warning or danger verdicts).
	BlockingRate  float64 `json:"blocking_rate"`
	AvgConfidence float64 `json:"avg_confidence"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// ScanLogQuerier abstracts the store methods the collector needs.
type ScanLogQuerier interface {
	ListScans(ctx context.Context, filter store.ScanFilter) ([]store.ScanRecord, error)
}

// Collector gathers metrics from the scan log.
type Collector struct {
	log ScanLogQuerier
}

// NewCollector creates a new metrics collector.
func NewCollector(log ScanLogQuerier) *Collector {
	return &Collector{log: log}
}

// Collect gathers a snapshot of scan metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}

	cutoff := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)

	scans, err := c.log.ListScans(ctx, store.ScanFilter{
		Since: cutoff,
		Limit: 10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list scans")
	}

	snap.ScansTotal = len(scans)
	subjects := map[string]struct{}{}
	barcodes := map[string]struct{}{}
	var totalConfidence, blocking int

	for _, rec := range scans {
		subjects[rec.SubjectID] = struct{}{}
		barcodes[rec.Barcode] = struct{}{}
		totalConfidence += rec.ConfidenceScore

		switch rec.OverallLevel {
		case model.RiskSafe:
			snap.SafeCount++
		case model.RiskCaution:
			snap.CautionCount++
		case model.RiskWarning:
			snap.WarningCount++
			blocking++
		case model.RiskDanger:
			snap.DangerCount++
			blocking++
		}
	}

	snap.SubjectsSeen = len(subjects)
	snap.UniqueBarcode = len(barcodes)
	if snap.ScansTotal > 0 {
		snap.BlockingRate = float64(blocking) / float64(snap.ScansTotal)
		snap.AvgConfidence = float64(totalConfidence) / float64(snap.ScansTotal)
	}

	return snap, nil
}
