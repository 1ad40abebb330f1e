package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/safeplate/safescan/internal/model"
)

// ScanRecord is one entry in the persistent scan log. It captures what was
// scanned, for whom, and the verdict at the time of the scan; later edits to
// the product or the subject's restrictions never rewrite it.
type ScanRecord struct {
	ID              string             `json:"id"`
	SubjectID       string             `json:"subject_id"`
	Barcode         string             `json:"barcode"`
	Symbology       model.Symbology    `json:"symbology"`
	ProductID       string             `json:"product_id"`
	ProductName     string             `json:"product_name"`
	OverallLevel    model.RiskLevel    `json:"overall_level"`
	ConfidenceScore int                `json:"confidence_score"`
	RiskFactors     []model.RiskFactor `json:"risk_factors,omitempty"`
	ScannedAt       time.Time          `json:"scanned_at"`
}

// ScanFilter specifies criteria for listing scan log entries.
type ScanFilter struct {
	SubjectID string           `json:"subject_id,omitempty"`
	Level     *model.RiskLevel `json:"level,omitempty"`
	Since     time.Time        `json:"since,omitempty"`
	Limit     int              `json:"limit,omitempty"`
	Offset    int              `json:"offset,omitempty"`
}

// Pool is the subset of pgxpool.Pool the postgres store uses. pgxmock
// satisfies it too, which keeps the postgres tests hermetic.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store defines the persistence interface for the scan pipeline.
type Store interface {
	// Product cache
	UpsertProduct(ctx context.Context, p model.Product) error
	GetProductByBarcode(ctx context.Context, barcode string) (*model.Product, error)

	// Subject restrictions
	UpsertSubjectRestriction(ctx context.Context, sr model.SubjectRestriction) error
	ListSubjectRestrictions(ctx context.Context, subjectID string) ([]model.SubjectRestriction, error)
	ListSubjects(ctx context.Context) ([]string, error)

	// Scan log
	AppendScan(ctx context.Context, rec ScanRecord) error
	ListScans(ctx context.Context, filter ScanFilter) ([]ScanRecord, error)
	ClearScans(ctx context.Context, subjectID string) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
