package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"sales-dashboard/internal/cache"
	"sales-dashboard/internal/config"
	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/query"
	"sales-dashboard/internal/store"
)

// Store is the record store as seen by the service.
type Store interface {
	Query(ctx context.Context, f query.FilterSpec, s query.Sort, w query.Window) (store.QueryResult, error)
	Facets(ctx context.Context) (models.Facets, error)
	Dataset(ctx context.Context) (models.Dataset, error)
	Replace(ctx context.Context, records []models.SalesRecord, source string) (models.Dataset, error)
	Ping(ctx context.Context) error
}

type Loader interface {
	Load(ctx context.Context, source string) ([]models.SalesRecord, error)
}

// Stats is the admin view of the running service.
type Stats struct {
	Dataset      models.Dataset `json:"dataset"`
	CacheEnabled bool           `json:"cache_enabled"`
	MaxPageSize  int            `json:"max_page_size"`
}

type Sales struct {
	store       Store
	loader      Loader
	source      string
	cache       cache.PageCache
	cacheOn     bool
	cachePrefix string
	metrics     *observability.Metrics
	logger      *slog.Logger
	now         func() time.Time
	maxPageSize int

	reloadMu sync.Mutex
}

type Option func(*Sales)

// WithCache enables result caching under keys starting with prefix.
func WithCache(c cache.PageCache, prefix string) Option {
	return func(s *Sales) {
		s.cache = c
		s.cacheOn = true
		s.cachePrefix = prefix
	}
}

// WithLoader makes Reload read records from source.
func WithLoader(l Loader, source string) Option {
	return func(s *Sales) {
		s.loader = l
		s.source = source
	}
}

func WithMetrics(m *observability.Metrics) Option {
	return func(s *Sales) {
		s.metrics = m
	}
}

// WithClock replaces the wall clock used to resolve relative date presets.
func WithClock(now func() time.Time) Option {
	return func(s *Sales) {
		s.now = now
	}
}

func NewSales(st Store, logger *slog.Logger, maxPageSize int, opts ...Option) *Sales {
	if logger == nil {
		logger = slog.Default()
	}
	if maxPageSize <= 0 {
		maxPageSize = query.DefaultMaxPageSize
	}
	s := &Sales{
		store:       st,
		cache:       cache.Noop{},
		logger:      logger,
		now:         time.Now,
		maxPageSize: maxPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = observability.NewMetrics()
	}
	return s
}

// Query answers one listing request. Malformed parameters never fail; only
// the store can.
func (s *Sales) Query(ctx context.Context, values url.Values) (models.PageResult, error) {
	req := query.Build(values, s.now(), s.maxPageSize)

	ctx, span := observability.StartSpan(ctx, "sales.query",
		attribute.String("sort.field", req.Sort.Field),
		attribute.String("sort.direction", string(req.Sort.Direction)),
		attribute.Int("page", req.Window.Page),
		attribute.Int("page_size", req.Window.PageSize),
	)
	defer span.End()

	key := s.cacheKey(ctx, req)
	if key != "" {
		if page, ok := s.cached(ctx, key); ok {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return page, nil
		}
	}

	start := time.Now()
	res, err := s.store.Query(ctx, req.Filter, req.Sort, req.Window)
	if err != nil {
		s.metrics.QueryDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		observability.SpanError(span, err)
		return models.PageResult{}, storeError(err, "failed to query sales")
	}
	s.metrics.QueryDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())

	page := models.NewPageResult(
		res.Records,
		res.Summary,
		req.Window.Page,
		req.Window.PageSize,
		query.TotalPages(res.Summary.Total, req.Window.PageSize),
	)
	span.SetAttributes(attribute.Int64("total", page.Total))

	if key != "" {
		if err := s.cache.Set(ctx, key, page); err != nil {
			s.metrics.CacheRequests.WithLabelValues("error").Inc()
			s.logger.Warn("failed to cache page", "error", err)
		}
	}
	return page, nil
}

// cacheKey returns "" when caching is off or the dataset version cannot be
// read; either way the request goes straight to the store.
func (s *Sales) cacheKey(ctx context.Context, req query.Request) string {
	if !s.cacheOn {
		return ""
	}
	ds, err := s.store.Dataset(ctx)
	if err != nil {
		s.logger.Warn("skipping cache, dataset version unavailable", "error", err)
		return ""
	}
	return cache.Key(s.cachePrefix, ds.Version, req.Fingerprint())
}

func (s *Sales) cached(ctx context.Context, key string) (models.PageResult, bool) {
	page, ok, err := s.cache.Get(ctx, key)
	switch {
	case err != nil:
		s.metrics.CacheRequests.WithLabelValues("error").Inc()
		s.logger.Warn("cache lookup failed", "error", err)
		return models.PageResult{}, false
	case !ok:
		s.metrics.CacheRequests.WithLabelValues("miss").Inc()
		return models.PageResult{}, false
	default:
		s.metrics.CacheRequests.WithLabelValues("hit").Inc()
		return page, true
	}
}

func (s *Sales) Facets(ctx context.Context) (models.Facets, error) {
	ctx, span := observability.StartSpan(ctx, "sales.facets")
	defer span.End()

	f, err := s.store.Facets(ctx)
	if err != nil {
		observability.SpanError(span, err)
		return models.Facets{}, storeError(err, "failed to list filter options")
	}
	return f, nil
}

func (s *Sales) Stats(ctx context.Context) (Stats, error) {
	ds, err := s.store.Dataset(ctx)
	if err != nil {
		return Stats{}, storeError(err, "failed to read dataset")
	}
	return Stats{
		Dataset:      ds,
		CacheEnabled: s.cacheOn,
		MaxPageSize:  s.maxPageSize,
	}, nil
}

func (s *Sales) Health(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return storeError(err, "sales store unreachable")
	}
	return nil
}

// Reload reads the configured source and swaps it in as the new dataset.
// Concurrent calls run one at a time.
func (s *Sales) Reload(ctx context.Context) (models.Dataset, error) {
	if s.loader == nil || s.source == "" {
		return models.Dataset{}, errors.BadRequest("no data source configured")
	}

	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	ctx, span := observability.StartSpan(ctx, "sales.reload", attribute.String("source", s.source))
	defer span.End()

	records, err := s.loader.Load(ctx, s.source)
	if err != nil {
		s.metrics.Reloads.WithLabelValues("error").Inc()
		observability.SpanError(span, err)
		return models.Dataset{}, errors.InternalWrap(err, "failed to load sales data")
	}

	ds, err := s.store.Replace(ctx, records, s.source)
	if err != nil {
		s.metrics.Reloads.WithLabelValues("error").Inc()
		observability.SpanError(span, err)
		return models.Dataset{}, storeError(err, "failed to store sales data")
	}

	s.metrics.Reloads.WithLabelValues("ok").Inc()
	s.metrics.Records.Set(float64(ds.RecordCount))
	return ds, nil
}

// Bootstrap performs the startup load. With the "empty" policy a failed load
// leaves whatever the store already holds and the service keeps running.
func (s *Sales) Bootstrap(ctx context.Context, onLoadError string) error {
	ds, err := s.Reload(ctx)
	if err == nil {
		s.logger.Info("startup load complete", "version", ds.Version, "records", ds.RecordCount)
		return nil
	}
	if onLoadError != config.OnLoadErrorEmpty {
		return fmt.Errorf("startup load: %w", err)
	}

	s.logger.Warn("startup load failed, serving existing or empty dataset", "source", s.source, "error", err)
	if ds, dsErr := s.store.Dataset(ctx); dsErr == nil {
		s.metrics.Records.Set(float64(ds.RecordCount))
	}
	return nil
}

func storeError(err error, message string) error {
	if stderrors.Is(err, store.ErrUnavailable) {
		return errors.ServiceUnavailableWrap(err, "sales store unavailable")
	}
	return errors.InternalWrap(err, message)
}
