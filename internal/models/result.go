package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Summary holds the aggregates over every record that matched a filter,
// independent of the requested page.
type Summary struct {
	Total               int64
	TotalUnits          int64
	TotalAmount         decimal.Decimal
	TotalDiscount       decimal.Decimal
	NumSalesForAmount   int64
	NumSalesForDiscount int64
}

// PageResult is the response envelope of the sales listing.
type PageResult struct {
	Data                []SaleView `json:"data"`
	Page                int        `json:"page"`
	PageSize            int        `json:"pageSize"`
	Total               int64      `json:"total"`
	TotalPages          int64      `json:"totalPages"`
	TotalUnits          int64      `json:"totalUnits"`
	TotalAmount         float64    `json:"totalAmount"`
	TotalDiscount       float64    `json:"totalDiscount"`
	NumSalesForAmount   int64      `json:"numSalesForAmount"`
	NumSalesForDiscount int64      `json:"numSalesForDiscount"`
}

// NewPageResult flattens the summary into the envelope. Data is never nil so
// an empty page encodes as [].
func NewPageResult(records []SalesRecord, summary Summary, page, pageSize int, totalPages int64) PageResult {
	data := make([]SaleView, 0, len(records))
	for _, r := range records {
		data = append(data, NewSaleView(r))
	}

	return PageResult{
		Data:                data,
		Page:                page,
		PageSize:            pageSize,
		Total:               summary.Total,
		TotalPages:          totalPages,
		TotalUnits:          summary.TotalUnits,
		TotalAmount:         summary.TotalAmount.InexactFloat64(),
		TotalDiscount:       summary.TotalDiscount.InexactFloat64(),
		NumSalesForAmount:   summary.NumSalesForAmount,
		NumSalesForDiscount: summary.NumSalesForDiscount,
	}
}

// Facets lists the distinct values the dashboard offers as filter options.
type Facets struct {
	Regions        []string `json:"regions"`
	Genders        []string `json:"genders"`
	Categories     []string `json:"categories"`
	Tags           []string `json:"tags"`
	PaymentMethods []string `json:"paymentMethods"`
	MinAge         int      `json:"minAge"`
	MaxAge         int      `json:"maxAge"`
	FirstDate      *string  `json:"firstDate"`
	LastDate       *string  `json:"lastDate"`
}

// Dataset describes the currently loaded snapshot.
type Dataset struct {
	Version     int64     `json:"version"`
	RecordCount int64     `json:"record_count"`
	Source      string    `json:"source"`
	LoadedAt    time.Time `json:"loaded_at"`
}
