package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DateLayout is the calendar-day layout used for sale dates everywhere in the service.
const DateLayout = "2006-01-02"

// SalesRecord is one transaction line. Records are immutable once loaded.
type SalesRecord struct {
	TransactionID  string
	Date           *time.Time
	CustomerID     string
	CustomerName   string
	PhoneNumber    string
	Gender         string
	Age            int
	CustomerRegion string
	CustomerType   string
	ProductID      string
	ProductName    string
	Brand          string
	Category       string
	Tags           []string
	Quantity       int
	UnitPrice      decimal.Decimal
	Discount       decimal.Decimal
	TotalAmount    decimal.Decimal
	Profit         decimal.Decimal
	PaymentMethod  string
	EmployeeName   string
}

// Fold trims and lowercases s for case-insensitive comparison. Stored match
// keys and compiled filter values both go through Fold so they agree on
// non-ASCII input.
func Fold(s string) string {
	// A Caser keeps state, so one is built per call.
	return cases.Lower(language.Und).String(strings.TrimSpace(s))
}

// NormalizeTags splits a comma-joined tag list into trimmed lowercase tokens,
// dropping empties and duplicates while keeping first-seen order.
func NormalizeTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		t := Fold(p)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		tags = append(tags, t)
	}
	return tags
}

// SaleView is the presentation shape of a SalesRecord. Field names are the
// flat, space-free names the dashboard consumes.
type SaleView struct {
	TransactionID  string   `json:"Transaction_ID"`
	Date           *string  `json:"Date"`
	CustomerID     string   `json:"Customer_ID"`
	CustomerName   string   `json:"Customer_Name"`
	PhoneNumber    string   `json:"Phone_Number"`
	Gender         string   `json:"Gender"`
	Age            int      `json:"Age"`
	CustomerRegion string   `json:"Customer_Region"`
	CustomerType   string   `json:"Customer_Type"`
	ProductID      string   `json:"Product_ID"`
	ProductName    string   `json:"Product_Name"`
	Brand          string   `json:"Brand"`
	Category       string   `json:"Product_Category"`
	Tags           []string `json:"Tags"`
	Quantity       int      `json:"Quantity"`
	UnitPrice      float64  `json:"Unit_Price"`
	Discount       float64  `json:"Discount"`
	TotalSales     float64  `json:"Total_Sales"`
	Profit         float64  `json:"Profit"`
	PaymentMethod  string   `json:"Payment_Method"`
	EmployeeName   string   `json:"Employee_Name"`
}

// NewSaleView is the single normalization from the stored record to the
// response shape.
func NewSaleView(r SalesRecord) SaleView {
	v := SaleView{
		TransactionID:  r.TransactionID,
		CustomerID:     r.CustomerID,
		CustomerName:   r.CustomerName,
		PhoneNumber:    r.PhoneNumber,
		Gender:         r.Gender,
		Age:            r.Age,
		CustomerRegion: r.CustomerRegion,
		CustomerType:   r.CustomerType,
		ProductID:      r.ProductID,
		ProductName:    r.ProductName,
		Brand:          r.Brand,
		Category:       r.Category,
		Tags:           r.Tags,
		Quantity:       r.Quantity,
		UnitPrice:      r.UnitPrice.InexactFloat64(),
		Discount:       r.Discount.InexactFloat64(),
		TotalSales:     r.TotalAmount.InexactFloat64(),
		Profit:         r.Profit.InexactFloat64(),
		PaymentMethod:  r.PaymentMethod,
		EmployeeName:   r.EmployeeName,
	}
	if v.Tags == nil {
		v.Tags = []string{}
	}
	if r.Date != nil {
		d := r.Date.Format(DateLayout)
		v.Date = &d
	}
	return v
}
