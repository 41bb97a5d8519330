package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/services"
)

type APIHandlers struct {
	sales  *services.Sales
	logger *slog.Logger
}

func NewAPIHandlers(sales *services.Sales, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		sales:  sales,
		logger: logger,
	}
}

// HandleSales serves one page of the filtered, sorted listing. The body is
// the bare page envelope, not wrapped in a success object.
func (h *APIHandlers) HandleSales(w http.ResponseWriter, r *http.Request) {
	page, err := h.sales.Query(r.Context(), r.URL.Query())
	if err != nil {
		errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
		return
	}

	w.Header().Set("Cache-Control", "no-cache")
	errors.WriteJSON(w, http.StatusOK, page)
}

func (h *APIHandlers) HandleFacets(w http.ResponseWriter, r *http.Request) {
	facets, err := h.sales.Facets(r.Context())
	if err != nil {
		errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
		return
	}

	headers := map[string]string{
		"Cache-Control": "public, max-age=300",
	}

	errors.WriteSuccessWithHeaders(w, facets, headers)
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.sales.Health(r.Context()); err != nil {
		errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
		return
	}

	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	}

	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.sales.Stats(r.Context())
	if err != nil {
		errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
		return
	}

	errors.WriteSuccess(w, stats)
}

func (h *APIHandlers) HandleReload(w http.ResponseWriter, r *http.Request) {
	ds, err := h.sales.Reload(r.Context())
	if err != nil {
		errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
		return
	}

	h.logger.Info("dataset reloaded", "version", ds.Version, "records", ds.RecordCount)
	errors.WriteSuccess(w, ds)
}
