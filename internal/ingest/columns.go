package ingest

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"sales-dashboard/internal/models"
)

// Column names as they appear in source headers, after normalization.
const (
	colTransactionID  = "transaction id"
	colDate           = "date"
	colCustomerID     = "customer id"
	colCustomerName   = "customer name"
	colPhoneNumber    = "phone number"
	colGender         = "gender"
	colAge            = "age"
	colCustomerRegion = "customer region"
	colCustomerType   = "customer type"
	colProductID      = "product id"
	colProductName    = "product name"
	colBrand          = "brand"
	colCategory       = "product category"
	colTags           = "tags"
	colQuantity       = "quantity"
	colUnitPrice      = "unit price"
	colDiscount       = "discount"
	colTotalAmount    = "total amount"
	colProfit         = "profit"
	colFinalAmount    = "final amount"
	colPaymentMethod  = "payment method"
	colEmployeeName   = "employee name"
)

var dateLayouts = []string{
	models.DateLayout,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01-02-06",
}

// header maps normalized column names to their position in a row.
type header map[string]int

func newHeader(names []string) (header, error) {
	h := make(header, len(names))
	for i, name := range names {
		key := normalizeColumn(name)
		if key == "" {
			continue
		}
		if _, dup := h[key]; !dup {
			h[key] = i
		}
	}
	if _, ok := h[colTransactionID]; !ok {
		return nil, fmt.Errorf("missing required column %q", "Transaction ID")
	}
	return h, nil
}

// normalizeColumn folds "Transaction ID", "transaction_id" and a BOM-prefixed
// "\ufeffTransaction ID" to the same key.
func normalizeColumn(name string) string {
	name = strings.TrimPrefix(name, "\ufeff")
	name = strings.ReplaceAll(name, "_", " ")
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func (h header) get(row []string, col string) string {
	i, ok := h[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// parseRow maps one source row onto a record. Missing or malformed numbers
// become zero and an unparseable date becomes nil; the row itself is kept.
func (h header) parseRow(row []string) models.SalesRecord {
	r := models.SalesRecord{
		TransactionID:  h.get(row, colTransactionID),
		Date:           parseDate(h.get(row, colDate)),
		CustomerID:     h.get(row, colCustomerID),
		CustomerName:   h.get(row, colCustomerName),
		PhoneNumber:    h.get(row, colPhoneNumber),
		Gender:         h.get(row, colGender),
		Age:            nonNegative(parseInt(h.get(row, colAge))),
		CustomerRegion: h.get(row, colCustomerRegion),
		CustomerType:   h.get(row, colCustomerType),
		ProductID:      h.get(row, colProductID),
		ProductName:    h.get(row, colProductName),
		Brand:          h.get(row, colBrand),
		Category:       h.get(row, colCategory),
		Tags:           models.NormalizeTags(h.get(row, colTags)),
		Quantity:       nonNegative(parseInt(h.get(row, colQuantity))),
		UnitPrice:      parseDecimal(h.get(row, colUnitPrice)),
		Discount:       parseDecimal(h.get(row, colDiscount)),
		TotalAmount:    parseDecimal(h.get(row, colTotalAmount)),
		PaymentMethod:  h.get(row, colPaymentMethod),
		EmployeeName:   h.get(row, colEmployeeName),
	}

	profit := h.get(row, colProfit)
	if profit == "" {
		profit = h.get(row, colFinalAmount)
	}
	r.Profit = parseDecimal(profit)
	return r
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func parseDecimal(s string) decimal.Decimal {
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseInt(s string) int {
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &day
		}
	}
	// Spreadsheets sometimes hand dates over as serial numbers.
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &day
		}
	}
	return nil
}
