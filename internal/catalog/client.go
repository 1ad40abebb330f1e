// Package catalog looks up products by canonical barcode in the product
// catalog service, with rate limiting, retry, and a circuit breaker so a
// degraded catalog slows scans down instead of breaking them.
package catalog

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/safeplate/safescan/internal/model"
)

// ErrNotFound is returned when the catalog has no record for a barcode.
// Not-found is an answer, not a failure: it never trips the breaker.
var ErrNotFound = eris.New("catalog: product not found")

// Client finds products by canonical barcode.
type Client interface {
	FindByBarcode(ctx context.Context, barcode string) (*model.Product, error)
}
