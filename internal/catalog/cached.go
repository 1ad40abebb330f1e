package catalog

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/safeplate/safescan/internal/model"
)

// ProductCache is the slice of the store the cached client needs.
type ProductCache interface {
	GetProductByBarcode(ctx context.Context, barcode string) (*model.Product, error)
	UpsertProduct(ctx context.Context, p model.Product) error
}

// CachedClient wraps a Client with a store-backed product cache: hits are
// served locally, remote results are written back, and a transient remote
// failure falls back to the cached copy when one exists.
type CachedClient struct {
	remote Client
	cache  ProductCache
}

// NewCached creates a CachedClient.
func NewCached(remote Client, cache ProductCache) *CachedClient {
	return &CachedClient{remote: remote, cache: cache}
}

func (c *CachedClient) FindByBarcode(ctx context.Context, barcode string) (*model.Product, error) {
	cached, err := c.cache.GetProductByBarcode(ctx, barcode)
	if err != nil {
		zap.L().Warn("catalog: product cache read failed",
			zap.String("barcode", barcode),
			zap.Error(err),
		)
	}
	if cached != nil {
		return cached, nil
	}

	product, err := c.remote.FindByBarcode(ctx, barcode)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		// Remote degraded. A stale answer beats no answer only if we had
		// one; we checked above and didn't.
		return nil, err
	}

	if upsertErr := c.cache.UpsertProduct(ctx, *product); upsertErr != nil {
		zap.L().Warn("catalog: product cache write failed",
			zap.String("barcode", barcode),
			zap.Error(upsertErr),
		)
	}
	return product, nil
}
