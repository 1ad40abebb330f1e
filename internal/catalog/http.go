package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/safeplate/safescan/internal/model"
	"github.com/safeplate/safescan/internal/resilience"
)

// Option configures the HTTP catalog client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.client = hc
	}
}

// WithRateLimit sets the requests-per-second limit toward the catalog.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), int(math.Max(1, rps)))
	}
}

// WithRetry overrides the retry configuration.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

// WithBreaker overrides the circuit breaker.
func WithBreaker(b *resilience.Breaker) Option {
	return func(c *httpClient) {
		c.breaker = b
	}
}

type httpClient struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
	breaker *resilience.Breaker
}

// NewHTTP creates a catalog Client talking to an Open Food Facts
// compatible product API.
func NewHTTP(baseURL string, opts ...Option) Client {
	c := &httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(10, 10),
		retry:   resilience.DefaultRetryConfig(),
		breaker: resilience.NewBreaker(5, 15*time.Second),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// productResponse is the catalog wire format.
type productResponse struct {
	Status  int `json:"status"`
	Product struct {
		Code            string   `json:"code"`
		ProductName     string   `json:"product_name"`
		Brands          string   `json:"brands"`
		IngredientsText string   `json:"ingredients_text"`
		AllergensTags   []string `json:"allergens_tags"`
		Completeness    float64  `json:"completeness"`
		UniqueScans     int      `json:"unique_scans_n"`
		LastModifiedT   int64    `json:"last_modified_t"`
	} `json:"product"`
}

func (c *httpClient) FindByBarcode(ctx context.Context, barcode string) (*model.Product, error) {
	if err := c.breaker.Allow(); err != nil {
		return nil, err
	}

	product, err := resilience.Retry(ctx, c.retry, func(ctx context.Context) (*model.Product, error) {
		return c.fetch(ctx, barcode)
	})
	c.breaker.Record(err)
	if err != nil {
		return nil, err
	}
	return product, nil
}

func (c *httpClient) fetch(ctx context.Context, barcode string) (*model.Product, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "catalog: rate limiter wait")
	}

	url := fmt.Sprintf("%s/api/v2/product/%s.json", c.baseURL, barcode)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, resilience.MarkTransient(eris.Wrap(err, "catalog: request failed"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, eris.Wrapf(ErrNotFound, "barcode %s", barcode)
	case resilience.RetryableStatus(resp.StatusCode):
		return nil, resilience.MarkTransient(
			eris.Errorf("catalog: http %d for barcode %s", resp.StatusCode, barcode),
			resp.StatusCode,
		)
	case resp.StatusCode != http.StatusOK:
		return nil, eris.Errorf("catalog: unexpected status %d for barcode %s", resp.StatusCode, barcode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.MarkTransient(eris.Wrap(err, "catalog: read body"), 0)
	}

	var pr productResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, eris.Wrap(err, "catalog: decode response")
	}
	if pr.Status == 0 {
		return nil, eris.Wrapf(ErrNotFound, "barcode %s", barcode)
	}

	p := &model.Product{
		ID:                pr.Product.Code,
		Barcode:           barcode,
		Name:              pr.Product.ProductName,
		Brand:             pr.Product.Brands,
		IngredientsText:   pr.Product.IngredientsText,
		DeclaredAllergens: stripTagPrefixes(pr.Product.AllergensTags),
		DataQualityScore:  int(math.Round(pr.Product.Completeness * 100)),
		VerificationCount: pr.Product.UniqueScans,
	}
	if p.ID == "" {
		p.ID = barcode
	}
	if pr.Product.LastModifiedT > 0 {
		t := time.Unix(pr.Product.LastModifiedT, 0).UTC()
		p.LastVerifiedAt = &t
	}

	zap.L().Debug("catalog: product found",
		zap.String("barcode", barcode),
		zap.String("name", p.Name),
		zap.Int("data_quality", p.DataQualityScore),
	)
	return p, nil
}

// stripTagPrefixes removes language prefixes from allergen tags, turning
// "en:peanuts" into "peanuts".
func stripTagPrefixes(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if i := strings.IndexByte(tag, ':'); i >= 0 {
			tag = tag[i+1:]
		}
		tag = strings.ReplaceAll(tag, "-", " ")
		if tag != "" {
			out = append(out, tag)
		}
	}
	return out
}
