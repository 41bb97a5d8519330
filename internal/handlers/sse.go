package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/starfederation/datastar-go/datastar"

	"sales-dashboard/internal/query"
	"sales-dashboard/internal/services"
	"sales-dashboard/internal/ui/templates"
)

// dashboardSignals mirrors the signal names the dashboard page binds.
type dashboardSignals struct {
	Search    string `json:"search"`
	Region    string `json:"region"`
	Gender    string `json:"gender"`
	Category  string `json:"category"`
	Payment   string `json:"payment"`
	Tag       string `json:"tag"`
	AgeRange  string `json:"ageRange"`
	DateRange string `json:"dateRange"`
	SortBy    string `json:"sortBy"`
	SortOrder string `json:"sortOrder"`
	Page      int    `json:"page"`
	PageSize  int    `json:"pageSize"`
}

// values translates the signals into the listing query parameters so the
// page and the JSON API go through the same compiler.
func (s dashboardSignals) values() url.Values {
	v := url.Values{}
	set := func(key, value string) {
		if value = strings.TrimSpace(value); value != "" {
			v.Set(key, value)
		}
	}
	set(query.ParamSearch, s.Search)
	set(query.ParamRegions, s.Region)
	set(query.ParamGenders, s.Gender)
	set(query.ParamCategories, s.Category)
	set(query.ParamPaymentMethods, s.Payment)
	set(query.ParamTags, s.Tag)
	set(query.ParamAgeRange, s.AgeRange)
	set(query.ParamDateRange, s.DateRange)
	set(query.ParamSortBy, s.SortBy)
	set(query.ParamSortOrder, s.SortOrder)
	if s.Page > 0 {
		v.Set(query.ParamPage, strconv.Itoa(s.Page))
	}
	if s.PageSize > 0 {
		v.Set(query.ParamPageSize, strconv.Itoa(s.PageSize))
	}
	return v
}

type SSEHandlers struct {
	sales  *services.Sales
	logger *slog.Logger
}

func NewSSEHandlers(sales *services.Sales, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		sales:  sales,
		logger: logger,
	}
}

func renderComponent(ctx context.Context, c templ.Component) (string, error) {
	var buf strings.Builder
	err := c.Render(ctx, &buf)
	return buf.String(), err
}

// HandleSales answers a dashboard refresh: it reads the current signals,
// runs the listing and patches the summary, table and pager in place.
func (h *SSEHandlers) HandleSales(w http.ResponseWriter, r *http.Request) {
	var signals dashboardSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		h.logger.Warn("read dashboard signals", "error", err)
	}

	page, err := h.sales.Query(r.Context(), signals.values())

	sse := datastar.NewSSE(w, r)
	if err != nil {
		h.logger.Error("query sales for dashboard", "error", err)
		if patchErr := sse.PatchElements(`<section id="sales-table"><p class="error">Sales data is unavailable right now.</p></section>`); patchErr != nil {
			h.logger.Error("patch error state", "error", patchErr)
		}
		return
	}

	for _, c := range []templ.Component{
		templates.Summary(page),
		templates.SalesTable(page),
		templates.Pager(page),
	} {
		html, err := renderComponent(r.Context(), c)
		if err != nil {
			h.logger.Error("render dashboard fragment", "error", err)
			return
		}
		if err := sse.PatchElements(html); err != nil {
			h.logger.Error("patch dashboard fragment", "error", err)
			return
		}
	}

	// Out-of-range paging signals fall back to defaults; keep the client in step.
	jsonData, err := json.Marshal(map[string]int{"page": page.Page, "pageSize": page.PageSize})
	if err != nil {
		h.logger.Error("marshal page signals", "error", err)
		return
	}
	if err := sse.PatchSignals(jsonData); err != nil {
		h.logger.Error("patch page signals", "error", err)
	}
}
