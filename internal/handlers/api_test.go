package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"sales-dashboard/internal/config"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/services"
	"sales-dashboard/internal/store"
)

type staticLoader struct {
	records []models.SalesRecord
	err     error
}

func (l staticLoader) Load(context.Context, string) ([]models.SalesRecord, error) {
	return l.records, l.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRecords() []models.SalesRecord {
	day := func(s string) *time.Time {
		d, _ := time.Parse(models.DateLayout, s)
		return &d
	}
	return []models.SalesRecord{
		{
			TransactionID:  "T001",
			Date:           day("2023-01-15"),
			CustomerID:     "C001",
			CustomerName:   "Neha Yadav",
			Gender:         "Female",
			Age:            28,
			CustomerRegion: "North",
			Category:       "Electronics",
			Tags:           []string{"gadgets"},
			Quantity:       1,
			TotalAmount:    decimal.RequireFromString("999.5"),
			Discount:       decimal.RequireFromString("10"),
			PaymentMethod:  "UPI",
		},
		{
			TransactionID:  "T002",
			Date:           day("2023-02-10"),
			CustomerID:     "C002",
			CustomerName:   "Arjun Mehta",
			Gender:         "Male",
			Age:            41,
			CustomerRegion: "South",
			Category:       "Clothing",
			Quantity:       2,
			TotalAmount:    decimal.RequireFromString("60"),
			PaymentMethod:  "Cash",
		},
		{
			TransactionID:  "T003",
			Date:           day("2023-03-01"),
			CustomerID:     "C003",
			CustomerName:   "Priya Shah",
			Gender:         "Female",
			Age:            35,
			CustomerRegion: "North",
			Category:       "Home",
			Quantity:       3,
			TotalAmount:    decimal.RequireFromString("30"),
			PaymentMethod:  "Card",
		},
	}
}

// newTestSales returns a service over an in-memory store loaded with
// testRecords, plus the store so tests can break it.
func newTestSales(t *testing.T) (*services.Sales, *store.Store) {
	t.Helper()
	st, err := store.Open(context.Background(), config.DatabaseConfig{
		Driver:       store.DriverSQLite,
		DSN:          ":memory:",
		QueryTimeout: 5 * time.Second,
		LogLevel:     "silent",
	}, testLogger())
	if err != nil {
		t.Fatalf("store.Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	sales := services.NewSales(st, testLogger(), 100,
		services.WithLoader(staticLoader{records: testRecords()}, "sales.csv"))
	if _, err := sales.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() failed: %v", err)
	}
	return sales, st
}

func TestNewAPIHandlers(t *testing.T) {
	sales, _ := newTestSales(t)
	logger := testLogger()
	handlers := NewAPIHandlers(sales, logger)

	if handlers == nil {
		t.Fatal("NewAPIHandlers() returned nil")
	}
	if handlers.sales != sales {
		t.Error("NewAPIHandlers() should set sales field")
	}
}

func TestAPIHandlers_HandleSales(t *testing.T) {
	sales, _ := newTestSales(t)
	handlers := NewAPIHandlers(sales, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/sales?regions=north&sortBy=Customer_Name&sortOrder=asc&pageSize=1", nil)
	w := httptest.NewRecorder()

	handlers.HandleSales(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected content-type 'application/json', got %q", ct)
	}

	var page models.PageResult
	if err := json.NewDecoder(w.Body).Decode(&page); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}

	if page.Total != 2 {
		t.Errorf("expected total 2, got %d", page.Total)
	}
	if page.TotalPages != 2 {
		t.Errorf("expected 2 pages, got %d", page.TotalPages)
	}
	if len(page.Data) != 1 || page.Data[0].CustomerName != "Neha Yadav" {
		t.Errorf("expected Neha Yadav first, got %+v", page.Data)
	}
	if page.TotalUnits != 4 {
		t.Errorf("expected 4 units over the filtered set, got %d", page.TotalUnits)
	}
	if page.TotalAmount != 1029.5 {
		t.Errorf("expected total amount 1029.5, got %v", page.TotalAmount)
	}
}

func TestAPIHandlers_HandleSales_ResponseShape(t *testing.T) {
	sales, _ := newTestSales(t)
	handlers := NewAPIHandlers(sales, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/sales?search=arj", nil)
	w := httptest.NewRecorder()
	handlers.HandleSales(w, req)

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	for _, key := range []string{"data", "page", "pageSize", "total", "totalPages", "totalUnits",
		"totalAmount", "totalDiscount", "numSalesForAmount", "numSalesForDiscount"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("expected %q in response", key)
		}
	}
	if _, ok := raw["success"]; ok {
		t.Error("listing response must not be wrapped")
	}

	var rows []map[string]any
	if err := json.Unmarshal(raw["data"], &rows); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one match for prefix search, got %d", len(rows))
	}
	for _, key := range []string{"Transaction_ID", "Customer_Name", "Total_Sales", "Tags", "Date"} {
		if _, ok := rows[0][key]; !ok {
			t.Errorf("expected record field %q", key)
		}
	}
}

func TestAPIHandlers_HandleSales_EmptyPage(t *testing.T) {
	sales, _ := newTestSales(t)
	handlers := NewAPIHandlers(sales, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/sales?ageMin=50&ageMax=20", nil)
	w := httptest.NewRecorder()
	handlers.HandleSales(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	if string(raw["data"]) != "[]" {
		t.Errorf("expected empty data array, got %s", raw["data"])
	}
}

func TestAPIHandlers_StoreUnavailable(t *testing.T) {
	sales, st := newTestSales(t)
	handlers := NewAPIHandlers(sales, testLogger())
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		path    string
		handler http.HandlerFunc
	}{
		{"sales", "/api/sales", handlers.HandleSales},
		{"facets", "/api/sales/facets", handlers.HandleFacets},
		{"health", "/health", handlers.HandleHealth},
		{"stats", "/admin/stats", handlers.HandleStats},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.handler(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if w.Code != http.StatusServiceUnavailable {
				t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
			}
			var response struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
				Success bool `json:"success"`
			}
			if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
				t.Fatalf("failed to decode JSON: %v", err)
			}
			if response.Success || response.Error.Code != "SERVICE_UNAVAILABLE" {
				t.Errorf("unexpected error body: %+v", response)
			}
		})
	}
}

func TestAPIHandlers_HandleFacets(t *testing.T) {
	sales, _ := newTestSales(t)
	handlers := NewAPIHandlers(sales, testLogger())

	w := httptest.NewRecorder()
	handlers.HandleFacets(w, httptest.NewRequest(http.MethodGet, "/api/sales/facets", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if cc := w.Header().Get("Cache-Control"); cc != "public, max-age=300" {
		t.Errorf("expected cache-control 'public, max-age=300', got %q", cc)
	}

	var response struct {
		Data    models.Facets `json:"data"`
		Success bool          `json:"success"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	if !response.Success {
		t.Error("expected success=true in response")
	}
	if got := response.Data.Regions; len(got) != 2 || got[0] != "North" || got[1] != "South" {
		t.Errorf("unexpected regions %v", got)
	}
	if got := response.Data.PaymentMethods; len(got) != 3 {
		t.Errorf("expected 3 payment methods, got %v", got)
	}
}

func TestAPIHandlers_HandleHealth(t *testing.T) {
	sales, _ := newTestSales(t)
	handlers := NewAPIHandlers(sales, testLogger())

	w := httptest.NewRecorder()
	handlers.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var response map[string]any
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	data, ok := response["data"].(map[string]any)
	if !ok {
		t.Fatal("expected data object in response")
	}
	if data["status"] != "healthy" {
		t.Errorf("expected status 'healthy', got %v", data["status"])
	}
	if _, err := time.Parse(time.RFC3339, data["timestamp"].(string)); err != nil {
		t.Errorf("timestamp should be RFC3339: %v", err)
	}
}

func TestAPIHandlers_StatsAndReload(t *testing.T) {
	sales, _ := newTestSales(t)
	handlers := NewAPIHandlers(sales, testLogger())

	w := httptest.NewRecorder()
	handlers.HandleReload(w, httptest.NewRequest(http.MethodPost, "/admin/reload", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("reload: expected status %d, got %d", http.StatusOK, w.Code)
	}

	w = httptest.NewRecorder()
	handlers.HandleStats(w, httptest.NewRequest(http.MethodGet, "/admin/stats", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("stats: expected status %d, got %d", http.StatusOK, w.Code)
	}

	var response struct {
		Data services.Stats `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	if response.Data.Dataset.Version != 2 {
		t.Errorf("expected version 2 after reload, got %d", response.Data.Dataset.Version)
	}
	if response.Data.Dataset.RecordCount != 3 {
		t.Errorf("expected 3 records, got %d", response.Data.Dataset.RecordCount)
	}
}

func TestAPIHandlers_ReloadFailure(t *testing.T) {
	sales, st := newTestSales(t)
	broken := services.NewSales(st, testLogger(), 100,
		services.WithLoader(staticLoader{err: errors.New("no such file")}, "missing.csv"))
	handlers := NewAPIHandlers(broken, testLogger())

	w := httptest.NewRecorder()
	handlers.HandleReload(w, httptest.NewRequest(http.MethodPost, "/admin/reload", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}

	// The earlier dataset stays in place.
	page, err := sales.Query(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 3 {
		t.Errorf("expected previous dataset to survive, got total %d", page.Total)
	}
}
