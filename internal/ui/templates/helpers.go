package templates

import (
	"fmt"
	"math"
	"strconv"

	"sales-dashboard/internal/models"
)

//go:generate templ generate

const datastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0/bundles/datastar.js"

// fetchAction reloads summary, table and pager from the current signals.
const fetchAction = "@get('/sse/sales')"

// filterAction goes back to the first page before fetching, since a changed
// filter can shrink the result below the current page.
const filterAction = "$page = 1; " + fetchAction

const initialSignals = `{"search":"","region":"","gender":"","category":"","payment":"","tag":"",` +
	`"ageRange":"","dateRange":"","sortBy":"Date","sortOrder":"desc","page":1,"pageSize":10}`

var ageRanges = []string{"18-25", "26-35", "36-45", "46-60", "60+"}

type selectOption struct{ value, label string }

var datePresets = []selectOption{
	{"last7days", "Last 7 days"},
	{"last30days", "Last 30 days"},
	{"last90days", "Last 90 days"},
	{"lastyear", "Last year"},
}

var sortOptions = []selectOption{
	{"Date", "Date"},
	{"Customer_Name", "Customer name"},
	{"Quantity", "Quantity"},
	{"Total_Sales", "Total amount"},
}

var tableColumns = []string{
	"Transaction ID", "Date", "Customer ID", "Customer name", "Phone Number", "Gender", "Age",
	"Product Category", "Quantity", "Total Amount", "Customer region", "Product ID", "Employee name",
}

// rowCells lines up with tableColumns.
func rowCells(s models.SaleView) []string {
	date := ""
	if s.Date != nil {
		date = *s.Date
	}
	return []string{
		s.TransactionID, date, s.CustomerID, s.CustomerName, s.PhoneNumber, s.Gender,
		strconv.Itoa(s.Age), s.Category, fmt.Sprintf("%02d", s.Quantity),
		formatMoney(s.TotalSales), s.CustomerRegion, s.ProductID, s.EmployeeName,
	}
}

func pageAction(page int64) string {
	return fmt.Sprintf("$page = %d; %s", page, fetchAction)
}

func pageNumbers(current, total int64) []int64 {
	first, last := pageSpan(current, total, 5)
	numbers := make([]int64, 0, last-first+1)
	for n := first; n <= last; n++ {
		numbers = append(numbers, n)
	}
	return numbers
}

// pageSpan picks a window of up to width page numbers that contains current
// and stays inside [1, total].
func pageSpan(current, total, width int64) (int64, int64) {
	if current > total {
		current = total
	}
	first := current - width/2
	if first < 1 {
		first = 1
	}
	last := first + width - 1
	if last > total {
		last = total
		first = max(1, last-width+1)
	}
	return first, last
}

func formatMoney(v float64) string {
	return "₹" + strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
