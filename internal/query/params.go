// Package query turns raw listing parameters into a normalized request:
// a filter, a resolved sort and a page window.
package query

import (
	"net/url"
	"strings"
)

// Parameter names accepted by the listing endpoint.
const (
	ParamSearch         = "search"
	ParamRegions        = "regions"
	ParamGenders        = "genders"
	ParamCategories     = "categories"
	ParamTags           = "tags"
	ParamPaymentMethods = "paymentMethods"
	ParamAgeRange       = "ageRange"
	ParamAgeMin         = "ageMin"
	ParamAgeMax         = "ageMax"
	ParamDateRange      = "dateRange"
	ParamDateFrom       = "dateFrom"
	ParamDateTo         = "dateTo"
	ParamSortBy         = "sortBy"
	ParamSortOrder      = "sortOrder"
	ParamPage           = "page"
	ParamPageSize       = "pageSize"
)

// Params is the typed form of the listing query string. Numeric options are
// kept as text here; Compile and NormalizeWindow decide what a usable value is.
type Params struct {
	Search         string
	Regions        []string
	Genders        []string
	Categories     []string
	Tags           []string
	PaymentMethods []string
	AgeRange       []string
	AgeMin         string
	AgeMax         string
	DateRange      []string
	DateFrom       string
	DateTo         string
	SortBy         string
	SortOrder      string
	Page           string
	PageSize       string
}

// ParseParams reads every recognised option from values. List options accept
// repeated keys, comma-joined values, or both.
func ParseParams(values url.Values) Params {
	return Params{
		Search:         values.Get(ParamSearch),
		Regions:        splitList(values[ParamRegions]),
		Genders:        splitList(values[ParamGenders]),
		Categories:     splitList(values[ParamCategories]),
		Tags:           splitList(values[ParamTags]),
		PaymentMethods: splitList(values[ParamPaymentMethods]),
		AgeRange:       splitList(values[ParamAgeRange]),
		AgeMin:         strings.TrimSpace(values.Get(ParamAgeMin)),
		AgeMax:         strings.TrimSpace(values.Get(ParamAgeMax)),
		DateRange:      splitList(values[ParamDateRange]),
		DateFrom:       strings.TrimSpace(values.Get(ParamDateFrom)),
		DateTo:         strings.TrimSpace(values.Get(ParamDateTo)),
		SortBy:         strings.TrimSpace(values.Get(ParamSortBy)),
		SortOrder:      strings.TrimSpace(values.Get(ParamSortOrder)),
		Page:           strings.TrimSpace(values.Get(ParamPage)),
		PageSize:       strings.TrimSpace(values.Get(ParamPageSize)),
	}
}

func splitList(raw []string) []string {
	var out []string
	for _, v := range raw {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
