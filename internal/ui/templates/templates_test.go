package templates

import (
	"context"
	"strings"
	"testing"

	"github.com/a-h/templ"

	"sales-dashboard/internal/models"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var b strings.Builder
	if err := c.Render(context.Background(), &b); err != nil {
		t.Fatalf("Render() failed: %v", err)
	}
	return b.String()
}

func TestDashboard(t *testing.T) {
	html := render(t, Dashboard(models.Facets{
		Regions: []string{"North", "South"},
		Tags:    []string{"<script>"},
	}))

	for _, want := range []string{
		`<!DOCTYPE html>`,
		datastarScript,
		`data-bind:region`,
		`data-bind:age-range`,
		`<option value="North">North</option>`,
		`&lt;script&gt;`,
		`id="summary"`,
		`id="sales-table"`,
		`id="pager"`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("expected dashboard to contain %q", want)
		}
	}
	if strings.Contains(html, `<option value="<script>">`) {
		t.Error("facet values must be escaped")
	}
}

func TestSalesTable(t *testing.T) {
	date := "2023-05-01"
	html := render(t, SalesTable(models.PageResult{Data: []models.SaleView{{
		TransactionID: "T1",
		Date:          &date,
		CustomerName:  "Neha & Co",
		Quantity:      3,
		TotalSales:    1001.5,
	}}}))

	for _, want := range []string{"<th>Transaction ID</th>", "T1", "2023-05-01", "Neha &amp; Co", "<td>03</td>", "₹1001.5"} {
		if !strings.Contains(html, want) {
			t.Errorf("expected table to contain %q", want)
		}
	}

	empty := render(t, SalesTable(models.PageResult{Data: []models.SaleView{}}))
	if !strings.Contains(empty, "No sales match") {
		t.Errorf("expected empty-state message, got %q", empty)
	}
}

func TestSummary(t *testing.T) {
	html := render(t, Summary(models.PageResult{TotalUnits: 7, TotalAmount: 150.75, NumSalesForAmount: 2, TotalDiscount: 0}))
	for _, want := range []string{"Total units sold", "<strong>7</strong>", "₹150.75", "(2 SRs)", "₹0"} {
		if !strings.Contains(html, want) {
			t.Errorf("expected summary to contain %q", want)
		}
	}
}

func TestPager(t *testing.T) {
	html := render(t, Pager(models.PageResult{Page: 3, TotalPages: 10, Total: 95}))
	for _, want := range []string{"$page = 2", "$page = 4", `aria-current="page"`, "95 results"} {
		if !strings.Contains(html, want) {
			t.Errorf("expected pager to contain %q", want)
		}
	}

	single := render(t, Pager(models.PageResult{Page: 1, TotalPages: 1, Total: 4}))
	if strings.Contains(single, "<button") {
		t.Error("a single page needs no buttons")
	}
}

func TestPageSpan(t *testing.T) {
	tests := []struct {
		current, total      int64
		wantFirst, wantLast int64
	}{
		{1, 10, 1, 5},
		{5, 10, 3, 7},
		{10, 10, 6, 10},
		{2, 3, 1, 3},
		{9, 4, 1, 4},
	}
	for _, tt := range tests {
		first, last := pageSpan(tt.current, tt.total, 5)
		if first != tt.wantFirst || last != tt.wantLast {
			t.Errorf("pageSpan(%d, %d) = %d..%d, want %d..%d", tt.current, tt.total, first, last, tt.wantFirst, tt.wantLast)
		}
	}
}

func TestAttributeExpressionsAreEscaped(t *testing.T) {
	page := render(t, Dashboard(models.Facets{}))
	if !strings.Contains(page, `data-signals="{&#34;search&#34;:&#34;&#34;`) {
		t.Error("expected initial signals to be attribute-escaped")
	}
	if !strings.Contains(page, `data-init="@get(&#39;/sse/sales&#39;)"`) {
		t.Error("expected fetch action on data-init")
	}

	pager := render(t, Pager(models.PageResult{Page: 1, TotalPages: 2, Total: 12}))
	if !strings.Contains(pager, `data-on:click="$page = 2; @get(&#39;/sse/sales&#39;)">Next</button>`) {
		t.Errorf("unexpected next button: %s", pager)
	}
}
