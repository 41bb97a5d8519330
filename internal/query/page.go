package query

import (
	"math"
	"strconv"
	"strings"
)

const (
	DefaultPage        = 1
	DefaultPageSize    = 10
	DefaultMaxPageSize = 500
)

// Window is a normalized page request.
type Window struct {
	Page     int
	PageSize int
}

// Offset is the number of records skipped before the page. It saturates
// instead of overflowing for absurd page numbers.
func (w Window) Offset() int64 {
	page, size := int64(w.Page), int64(w.PageSize)
	if page <= 1 || size <= 0 {
		return 0
	}
	if page-1 > math.MaxInt64/size {
		return math.MaxInt64
	}
	return (page - 1) * size
}

// Limit is the maximum number of records on the page.
func (w Window) Limit() int {
	return w.PageSize
}

// NormalizeWindow coerces raw page parameters. Non-numeric or non-positive
// values fall back to defaults, and the page size is capped at maxPageSize
// when maxPageSize is positive. The page number has no upper bound.
func NormalizeWindow(page, pageSize string, maxPageSize int) Window {
	w := Window{Page: DefaultPage, PageSize: DefaultPageSize}

	if n, ok := positiveInt(page); ok {
		w.Page = n
	}
	if n, ok := positiveInt(pageSize); ok {
		w.PageSize = n
	}
	if maxPageSize > 0 && w.PageSize > maxPageSize {
		w.PageSize = maxPageSize
	}
	return w
}

func positiveInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		// Accept "2.0"-style numbers sent by loosely typed clients.
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		if f >= math.MaxInt32 {
			return math.MaxInt32, true
		}
		n = int(f)
	}
	if n < 1 {
		return 0, false
	}
	return n, true
}

// TotalPages is ceil(total/pageSize), and 0 when there is nothing to page.
func TotalPages(total int64, pageSize int) int64 {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	size := int64(pageSize)
	return (total + size - 1) / size
}
