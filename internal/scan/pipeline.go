// Package scan runs one barcode through the full safety pipeline:
// normalize, catalog lookup, restriction resolution, assessment, and
// recording. The session controller drives it for interactive scanning;
// the CLI calls it directly for one-shot scans.
package scan

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/safeplate/safescan/internal/assess"
	"github.com/safeplate/safescan/internal/barcode"
	"github.com/safeplate/safescan/internal/catalog"
	"github.com/safeplate/safescan/internal/history"
	"github.com/safeplate/safescan/internal/model"
	"github.com/safeplate/safescan/internal/store"
)

// Restrictions resolves a subject's active restriction set.
type Restrictions interface {
	Resolve(ctx context.Context, subjectID string) ([]model.ActiveRestriction, error)
}

// Log persists scan records. A nil Log disables persistence.
type Log interface {
	AppendScan(ctx context.Context, rec store.ScanRecord) error
}

// Outcome is the result of processing one reading.
type Outcome struct {
	Reading    model.BarcodeReading    `json:"reading"`
	Product    *model.Product          `json:"product"`
	Found      bool                    `json:"found"`
	Assessment *model.SafetyAssessment `json:"assessment"`
}

// Pipeline wires the pipeline stages together.
type Pipeline struct {
	catalog      catalog.Client
	restrictions Restrictions
	engine       *assess.Engine
	log          Log
	recent       *history.Cache
	nowFunc      func() time.Time
}

// New creates a Pipeline. log may be nil when persistence is not wanted.
func New(cat catalog.Client, restrictions Restrictions, engine *assess.Engine, log Log, recent *history.Cache) *Pipeline {
	return &Pipeline{
		catalog:      cat,
		restrictions: restrictions,
		engine:       engine,
		log:          log,
		recent:       recent,
		nowFunc:      time.Now,
	}
}

// Process runs one raw decode through the pipeline. Normalization failures
// return barcode.ErrInvalidFormat; callers must not retry those. A product
// the catalog does not know yields a conservative low-confidence verdict
// rather than an error: not-found is an answer.
func (p *Pipeline) Process(ctx context.Context, subjectID, symbol string, sym model.Symbology) (*Outcome, error) {
	canonical, err := barcode.Normalize(symbol, sym)
	if err != nil {
		return nil, err
	}

	reading := model.BarcodeReading{
		Symbol:     symbol,
		Canonical:  canonical,
		Symbology:  sym,
		CapturedAt: p.nowFunc().UTC(),
	}

	var (
		product *model.Product
		found   bool
		active  []model.ActiveRestriction
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		prod, err := p.catalog.FindByBarcode(gctx, canonical)
		if errors.Is(err, catalog.ErrNotFound) {
			// Assess against an empty product so the engine produces its
			// low-confidence caution verdict instead of us failing here.
			product = &model.Product{ID: canonical, Barcode: canonical}
			return nil
		}
		if err != nil {
			return err
		}
		product = prod
		found = true
		return nil
	})
	g.Go(func() error {
		var err error
		active, err = p.restrictions.Resolve(gctx, subjectID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	assessment := p.engine.Assess(product, active)
	if assessment.SubjectID == "" {
		assessment.SubjectID = subjectID
	}

	if p.recent != nil {
		p.recent.Record(*product)
	}
	if p.log != nil {
		rec := store.ScanRecord{
			ID:              assessment.ID,
			SubjectID:       subjectID,
			Barcode:         canonical,
			Symbology:       sym,
			ProductID:       product.ID,
			ProductName:     product.Name,
			OverallLevel:    assessment.OverallLevel,
			ConfidenceScore: assessment.ConfidenceScore,
			RiskFactors:     assessment.RiskFactors,
			ScannedAt:       assessment.ComputedAt,
		}
		if err := p.log.AppendScan(ctx, rec); err != nil {
			// The verdict still stands; losing one log row is not a reason
			// to block the scan.
			zap.L().Warn("scan: append scan log failed",
				zap.String("barcode", canonical),
				zap.Error(err),
			)
		}
	}

	zap.L().Info("scan: assessed",
		zap.String("subject_id", subjectID),
		zap.String("barcode", canonical),
		zap.String("verdict", assessment.OverallLevel.String()),
		zap.Int("confidence", assessment.ConfidenceScore),
		zap.Bool("found", found),
	)

	return &Outcome{
		Reading:    reading,
		Product:    product,
		Found:      found,
		Assessment: assessment,
	}, nil
}
