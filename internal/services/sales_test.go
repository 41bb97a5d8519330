package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-dashboard/internal/config"
	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/store"
)

var fixedNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), config.DatabaseConfig{
		Driver:       store.DriverSQLite,
		DSN:          ":memory:",
		QueryTimeout: 5 * time.Second,
		LogLevel:     "silent",
	}, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func day(s string) *time.Time {
	d, _ := time.Parse(models.DateLayout, s)
	return &d
}

func records(n int) []models.SalesRecord {
	out := make([]models.SalesRecord, n)
	for i := range out {
		out[i] = models.SalesRecord{
			TransactionID:  fmt.Sprintf("T%03d", i),
			Date:           day("2024-06-10"),
			CustomerName:   "Customer",
			Age:            20 + i,
			CustomerRegion: "North",
			Quantity:       1,
			TotalAmount:    decimal.NewFromInt(10),
		}
	}
	return out
}

type fakeLoader struct {
	mu      sync.Mutex
	records []models.SalesRecord
	err     error
	calls   int
}

func (f *fakeLoader) Load(context.Context, string) ([]models.SalesRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.records, f.err
}

type memCache struct {
	mu    sync.Mutex
	pages map[string]models.PageResult
	err   error
}

func newMemCache() *memCache {
	return &memCache{pages: make(map[string]models.PageResult)}
}

func (c *memCache) Get(_ context.Context, key string) (models.PageResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return models.PageResult{}, false, c.err
	}
	p, ok := c.pages[key]
	return p, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, page models.PageResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.pages[key] = page
	return nil
}

func (c *memCache) Close() error { return nil }

func TestSales_QueryPagination(t *testing.T) {
	st := newStore(t)
	svc := NewSales(st, quietLogger(), 100,
		WithLoader(&fakeLoader{records: records(25)}, "sales.csv"),
		WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, svc.Bootstrap(context.Background(), config.OnLoadErrorFail))

	tests := []struct {
		page    string
		wantLen int
	}{
		{"1", 10},
		{"3", 5},
		{"4", 0},
	}
	for _, tt := range tests {
		t.Run("page "+tt.page, func(t *testing.T) {
			res, err := svc.Query(context.Background(), url.Values{"page": {tt.page}, "pageSize": {"10"}})
			require.NoError(t, err)
			assert.Len(t, res.Data, tt.wantLen)
			assert.NotNil(t, res.Data)
			assert.Equal(t, int64(25), res.Total)
			assert.Equal(t, int64(3), res.TotalPages)
			assert.Equal(t, 250.0, res.TotalAmount)
		})
	}
}

func TestSales_QueryDefaults(t *testing.T) {
	st := newStore(t)
	svc := NewSales(st, quietLogger(), 100, WithLoader(&fakeLoader{records: records(12)}, "sales.csv"))
	_, err := svc.Reload(context.Background())
	require.NoError(t, err)

	res, err := svc.Query(context.Background(), url.Values{"page": {"zero"}, "pageSize": {"-3"}, "sortBy": {"nonsense"}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, 10, res.PageSize)
	assert.Len(t, res.Data, 10)
}

func TestSales_QueryEchoesCappedPageSize(t *testing.T) {
	st := newStore(t)
	svc := NewSales(st, quietLogger(), 5, WithLoader(&fakeLoader{records: records(12)}, "sales.csv"))
	_, err := svc.Reload(context.Background())
	require.NoError(t, err)

	res, err := svc.Query(context.Background(), url.Values{"pageSize": {"50"}})
	require.NoError(t, err)
	assert.Equal(t, 5, res.PageSize)
	assert.Equal(t, int64(3), res.TotalPages)
	assert.Len(t, res.Data, 5)
}

func TestSales_RelativePresetUsesClock(t *testing.T) {
	st := newStore(t)
	recs := records(2)
	recs[1].Date = day("2024-01-01")
	svc := NewSales(st, quietLogger(), 100,
		WithLoader(&fakeLoader{records: recs}, "sales.csv"),
		WithClock(func() time.Time { return fixedNow }))
	_, err := svc.Reload(context.Background())
	require.NoError(t, err)

	res, err := svc.Query(context.Background(), url.Values{"dateRange": {"last7days"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Total)
}

func TestSales_CacheHitAndVersioning(t *testing.T) {
	st := newStore(t)
	mc := newMemCache()
	metrics := observability.NewMetrics()
	loader := &fakeLoader{records: records(3)}
	svc := NewSales(st, quietLogger(), 100,
		WithLoader(loader, "sales.csv"),
		WithCache(mc, "test:"),
		WithMetrics(metrics))
	ctx := context.Background()

	_, err := svc.Reload(ctx)
	require.NoError(t, err)

	first, err := svc.Query(ctx, url.Values{})
	require.NoError(t, err)
	second, err := svc.Query(ctx, url.Values{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, mc.pages, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheRequests.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheRequests.WithLabelValues("miss")))

	loader.records = records(5)
	_, err = svc.Reload(ctx)
	require.NoError(t, err)

	third, err := svc.Query(ctx, url.Values{})
	require.NoError(t, err)
	assert.Equal(t, int64(5), third.Total)
	assert.Len(t, mc.pages, 2)
	assert.Equal(t, 5.0, testutil.ToFloat64(metrics.Records))
}

func TestSales_CacheFailureDoesNotFailQuery(t *testing.T) {
	st := newStore(t)
	mc := newMemCache()
	mc.err = stderrors.New("connection refused")
	metrics := observability.NewMetrics()
	svc := NewSales(st, quietLogger(), 100,
		WithLoader(&fakeLoader{records: records(3)}, "sales.csv"),
		WithCache(mc, "test:"),
		WithMetrics(metrics))

	_, err := svc.Reload(context.Background())
	require.NoError(t, err)

	res, err := svc.Query(context.Background(), url.Values{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Total)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.CacheRequests.WithLabelValues("error")))
}

func TestSales_StoreUnavailable(t *testing.T) {
	st := newStore(t)
	svc := NewSales(st, quietLogger(), 100)
	require.NoError(t, st.Close())

	_, err := svc.Query(context.Background(), url.Values{})
	require.Error(t, err)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusServiceUnavailable, appErr.StatusCode)
	assert.ErrorIs(t, err, store.ErrUnavailable)

	assert.Error(t, svc.Health(context.Background()))
}

func TestSales_Bootstrap(t *testing.T) {
	failing := &fakeLoader{err: stderrors.New("open data.csv: no such file")}

	t.Run("fail policy", func(t *testing.T) {
		svc := NewSales(newStore(t), quietLogger(), 100, WithLoader(failing, "data.csv"))
		assert.Error(t, svc.Bootstrap(context.Background(), config.OnLoadErrorFail))
	})

	t.Run("empty policy", func(t *testing.T) {
		svc := NewSales(newStore(t), quietLogger(), 100, WithLoader(failing, "data.csv"))
		require.NoError(t, svc.Bootstrap(context.Background(), config.OnLoadErrorEmpty))

		res, err := svc.Query(context.Background(), url.Values{})
		require.NoError(t, err)
		assert.Empty(t, res.Data)
		assert.Equal(t, int64(0), res.Total)
		assert.Equal(t, int64(0), res.TotalPages)
	})
}

func TestSales_ReloadWithoutSource(t *testing.T) {
	svc := NewSales(newStore(t), quietLogger(), 100)
	_, err := svc.Reload(context.Background())

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusBadRequest, appErr.StatusCode)
}

func TestSales_FacetsAndStats(t *testing.T) {
	svc := NewSales(newStore(t), quietLogger(), 250,
		WithLoader(&fakeLoader{records: records(4)}, "sales.csv"))
	_, err := svc.Reload(context.Background())
	require.NoError(t, err)

	f, err := svc.Facets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"North"}, f.Regions)
	assert.Equal(t, 20, f.MinAge)
	assert.Equal(t, 23, f.MaxAge)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.Dataset.RecordCount)
	assert.Equal(t, "sales.csv", stats.Dataset.Source)
	assert.Equal(t, 250, stats.MaxPageSize)
	assert.False(t, stats.CacheEnabled)
}
