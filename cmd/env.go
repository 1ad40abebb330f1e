package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/rotisserie/eris"

	"github.com/safeplate/safescan/internal/assess"
	"github.com/safeplate/safescan/internal/catalog"
	"github.com/safeplate/safescan/internal/history"
	"github.com/safeplate/safescan/internal/model"
	"github.com/safeplate/safescan/internal/monitoring"
	"github.com/safeplate/safescan/internal/resilience"
	"github.com/safeplate/safescan/internal/restriction"
	"github.com/safeplate/safescan/internal/scan"
	"github.com/safeplate/safescan/internal/store"
)

// env bundles the wired subsystems a command needs.
type env struct {
	Store     store.Store
	Engine    *assess.Engine
	Registry  *restriction.Registry
	Resolver  *restriction.Resolver
	Catalog   catalog.Client
	Recent    *history.Cache
	Pipeline  *scan.Pipeline
	Collector *monitoring.Collector
}

func (e *env) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "safescan.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// loadRiskRecords returns the curated ingredient risk records, preferring
// an operator-supplied file over the embedded seed.
func loadRiskRecords() ([]model.IngredientRiskRecord, error) {
	if path := cfg.Assess.RiskRecordsPath; path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "read risk records %s", path)
		}
		return assess.LoadRecords(data)
	}
	return assess.SeedRecords()
}

// initEnv validates config for the given mode and wires the pipeline.
func initEnv(ctx context.Context, mode string) (*env, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	registry, err := restriction.SeedRegistry()
	if err != nil {
		st.Close()
		return nil, err
	}

	records, err := loadRiskRecords()
	if err != nil {
		st.Close()
		return nil, err
	}

	remote := catalog.NewHTTP(cfg.Catalog.BaseURL,
		catalog.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Catalog.TimeoutSecs) * time.Second}),
		catalog.WithRateLimit(cfg.Catalog.RateLimit),
		catalog.WithRetry(resilience.RetryConfig{
			MaxAttempts:    cfg.Catalog.MaxRetries,
			InitialBackoff: 200 * time.Millisecond,
			MaxBackoff:     2 * time.Second,
		}),
		catalog.WithBreaker(resilience.NewBreaker(
			cfg.Catalog.BreakerThreshold,
			time.Duration(cfg.Catalog.BreakerResetSecs)*time.Second,
		)),
	)
	cached := catalog.NewCached(remote, st)

	engine := assess.NewEngine(records)
	resolver := restriction.NewResolver(st, registry)
	recent := history.New(cfg.History.Capacity)

	return &env{
		Store:     st,
		Engine:    engine,
		Registry:  registry,
		Resolver:  resolver,
		Catalog:   cached,
		Recent:    recent,
		Pipeline:  scan.New(cached, resolver, engine, st, recent),
		Collector: monitoring.NewCollector(st),
	}, nil
}
