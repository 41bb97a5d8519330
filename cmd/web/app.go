package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"sales-dashboard/internal/cache"
	"sales-dashboard/internal/config"
	"sales-dashboard/internal/ingest"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/services"
	"sales-dashboard/internal/store"
	"sales-dashboard/internal/ui/templates"
)

const (
	renderTimeout = 10 * time.Second
	cacheMaxAge   = "no-cache"
)

// app holds the long-lived components shared by the serve and import
// commands.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	store   *store.Store
	cache   cache.PageCache
	sales   *services.Sales
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	st, err := store.Open(ctx, cfg.Database, logger, store.WithTracing(cfg.Telemetry.DBTracing))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	loader, err := newLoader(ctx, cfg.Data, logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: observability.NewMetrics(),
		store:   st,
		cache:   newCache(ctx, cfg.Cache, logger),
	}

	opts := []services.Option{
		services.WithLoader(loader, cfg.Data.Source),
		services.WithMetrics(a.metrics),
	}
	if _, isNoop := a.cache.(cache.Noop); !isNoop {
		opts = append(opts, services.WithCache(a.cache, cfg.Cache.Prefix))
	}
	a.sales = services.NewSales(st, logger, cfg.Query.MaxPageSize, opts...)

	return a, nil
}

func newLoader(ctx context.Context, cfg config.DataConfig, logger *slog.Logger) (*ingest.Loader, error) {
	var opts []ingest.LoaderOption
	if ingest.IsS3(cfg.Source) {
		client, err := ingest.NewS3Client(ctx, cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		opts = append(opts, ingest.WithS3(client))
	}
	return ingest.NewLoader(ingest.Options{BatchSize: cfg.BatchSize, Workers: cfg.Workers}, logger, opts...), nil
}

// newCache connects to Redis when caching is enabled. An unreachable Redis
// degrades to no caching rather than failing startup.
func newCache(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) cache.PageCache {
	if !cfg.Enabled {
		return cache.Noop{}
	}
	c, err := cache.NewRedis(ctx, cfg, logger)
	if err != nil {
		logger.Warn("result cache disabled", "addr", cfg.Addr, "error", err)
		return cache.Noop{}
	}
	logger.Info("result cache enabled", "addr", cfg.Addr, "ttl", cfg.TTL)
	return c
}

func (a *app) close() error {
	return errors.Join(a.cache.Close(), a.store.Close())
}

// dashboardHandler renders the page shell with the current filter options.
func (a *app) dashboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
		defer cancel()

		facets, err := a.sales.Facets(ctx)
		if err != nil {
			a.logger.Warn("dashboard rendered without filter options", "error", err)
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", cacheMaxAge)
		if err := templates.Dashboard(facets).Render(ctx, w); err != nil {
			http.Error(w, "render error", http.StatusInternalServerError)
		}
	}
}
