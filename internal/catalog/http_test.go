package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/safeplate/safescan/internal/model"
	"github.com/safeplate/safescan/internal/resilience"
)

const productJSON = `{
	"status": 1,
	"product": {
		"code": "012000005107",
		"product_name": "Cola Classic",
		"brands": "TestBrand",
		"ingredients_text": "water, high fructose corn syrup, caramel color, caffeine",
		"allergens_tags": ["en:peanuts", "en:tree-nuts"],
		"completeness": 0.85,
		"unique_scans_n": 12,
		"last_modified_t": 1700000000
	}
}`

func testClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTP(srv.URL,
		WithHTTPClient(srv.Client()),
		WithRateLimit(1000),
		WithRetry(resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}),
	)
}

func TestHTTPClient_FindByBarcode(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/product/012000005107.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, productJSON)
	})

	p, err := c.FindByBarcode(context.Background(), "012000005107")
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "Cola Classic" {
		t.Errorf("name = %q", p.Name)
	}
	if p.DataQualityScore != 85 {
		t.Errorf("data quality = %d, want 85", p.DataQualityScore)
	}
	if p.VerificationCount != 12 {
		t.Errorf("verification count = %d, want 12", p.VerificationCount)
	}
	if len(p.DeclaredAllergens) != 2 || p.DeclaredAllergens[0] != "peanuts" || p.DeclaredAllergens[1] != "tree nuts" {
		t.Errorf("allergens = %v", p.DeclaredAllergens)
	}
	if p.LastVerifiedAt == nil {
		t.Error("expected last verified timestamp")
	}
}

func TestHTTPClient_NotFoundStatus(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status": 0}`)
	})

	_, err := c.FindByBarcode(context.Background(), "00000000")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestHTTPClient_NotFound404(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := c.FindByBarcode(context.Background(), "00000000")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestHTTPClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, productJSON)
	})

	p, err := c.FindByBarcode(context.Background(), "012000005107")
	if err != nil {
		t.Fatal(err)
	}
	if p == nil || calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestHTTPClient_BreakerOpensOnRepeatedFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewHTTP(srv.URL,
		WithHTTPClient(srv.Client()),
		WithRateLimit(1000),
		WithRetry(resilience.RetryConfig{MaxAttempts: 1, InitialBackoff: time.Millisecond}),
		WithBreaker(resilience.NewBreaker(2, time.Hour)),
	)

	for i := 0; i < 2; i++ {
		if _, err := c.FindByBarcode(context.Background(), "012000005107"); err == nil {
			t.Fatal("expected failure")
		}
	}

	_, err := c.FindByBarcode(context.Background(), "012000005107")
	if !errors.Is(err, resilience.ErrBreakerOpen) {
		t.Errorf("expected ErrBreakerOpen, got %v", err)
	}
}

type fakeCache struct {
	products map[string]model.Product
	getErr   error
	upserts  int
}

func (f *fakeCache) GetProductByBarcode(_ context.Context, barcode string) (*model.Product, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if p, ok := f.products[barcode]; ok {
		return &p, nil
	}
	return nil, nil
}

func (f *fakeCache) UpsertProduct(_ context.Context, p model.Product) error {
	if f.products == nil {
		f.products = map[string]model.Product{}
	}
	f.products[p.Barcode] = p
	f.upserts++
	return nil
}

type staticClient struct {
	product *model.Product
	err     error
	calls   int
}

func (s *staticClient) FindByBarcode(_ context.Context, _ string) (*model.Product, error) {
	s.calls++
	return s.product, s.err
}

func TestCachedClient_ServesFromCache(t *testing.T) {
	remote := &staticClient{err: errors.New("should not be called")}
	cache := &fakeCache{products: map[string]model.Product{
		"012000005107": {ID: "012000005107", Barcode: "012000005107", Name: "Cached Cola"},
	}}
	c := NewCached(remote, cache)

	p, err := c.FindByBarcode(context.Background(), "012000005107")
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "Cached Cola" {
		t.Errorf("name = %q", p.Name)
	}
	if remote.calls != 0 {
		t.Errorf("remote called %d times, want 0", remote.calls)
	}
}

func TestCachedClient_WritesBackOnMiss(t *testing.T) {
	remote := &staticClient{product: &model.Product{ID: "p1", Barcode: "40000000", Name: "Fresh"}}
	cache := &fakeCache{}
	c := NewCached(remote, cache)

	p, err := c.FindByBarcode(context.Background(), "40000000")
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "Fresh" {
		t.Errorf("name = %q", p.Name)
	}
	if cache.upserts != 1 {
		t.Errorf("upserts = %d, want 1", cache.upserts)
	}
}

func TestCachedClient_NotFoundPassesThrough(t *testing.T) {
	remote := &staticClient{err: ErrNotFound}
	c := NewCached(remote, &fakeCache{})

	_, err := c.FindByBarcode(context.Background(), "00000000")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
