package query

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"
	"time"

	"sales-dashboard/internal/models"
)

// Request bundles everything the store needs for one listing call.
type Request struct {
	Filter FilterSpec
	Sort   Sort
	Window Window
}

// Build runs the full normalization: parse, compile, resolve sort and window.
func Build(values url.Values, now time.Time, maxPageSize int) Request {
	p := ParseParams(values)
	return Request{
		Filter: Compile(p, now),
		Sort:   ResolveSort(p.SortBy, p.SortOrder),
		Window: NormalizeWindow(p.Page, p.PageSize, maxPageSize),
	}
}

// Encode writes the request back as canonical query parameters. Compiling the
// result with the same clock yields an equal Request.
func Encode(f FilterSpec, s Sort, w Window) url.Values {
	v := url.Values{}
	if f.Search != "" {
		v.Set(ParamSearch, f.Search)
	}
	setList(v, ParamRegions, f.Regions)
	setList(v, ParamGenders, f.Genders)
	setList(v, ParamCategories, f.Categories)
	setList(v, ParamPaymentMethods, f.PaymentMethods)
	setList(v, ParamTags, f.Tags)

	if f.Age.Min != nil {
		v.Set(ParamAgeMin, strconv.Itoa(*f.Age.Min))
	}
	if f.Age.Max != nil {
		v.Set(ParamAgeMax, strconv.Itoa(*f.Age.Max))
	}
	if len(f.Age.Buckets) > 0 {
		tokens := make([]string, len(f.Age.Buckets))
		for i, b := range f.Age.Buckets {
			tokens[i] = b.String()
		}
		v.Set(ParamAgeRange, strings.Join(tokens, ","))
	}

	if f.Date.From != nil {
		v.Set(ParamDateFrom, f.Date.From.Format(models.DateLayout))
	}
	if f.Date.To != nil {
		v.Set(ParamDateTo, f.Date.To.Format(models.DateLayout))
	}
	if f.Date.PresetDays > 0 {
		v.Set(ParamDateRange, presetToken(f.Date.PresetDays))
	}

	if s.Field != "" {
		v.Set(ParamSortBy, s.Field)
	}
	if s.Direction != "" {
		v.Set(ParamSortOrder, string(s.Direction))
	}
	if w.Page > 0 {
		v.Set(ParamPage, strconv.Itoa(w.Page))
	}
	if w.PageSize > 0 {
		v.Set(ParamPageSize, strconv.Itoa(w.PageSize))
	}
	return v
}

// Encode is shorthand for Encode(r.Filter, r.Sort, r.Window).
func (r Request) Encode() url.Values {
	return Encode(r.Filter, r.Sort, r.Window)
}

// Fingerprint is a stable digest of the request. Relative presets are pinned
// to their resolved bounds so the digest changes when the day rolls over.
func (r Request) Fingerprint() string {
	v := r.Encode()
	from, to := r.Filter.Date.Bounds()
	if from != nil {
		v.Set("_from", from.Format(models.DateLayout))
	}
	if to != nil {
		v.Set("_to", to.Format(models.DateLayout))
	}
	sum := sha256.Sum256([]byte(v.Encode()))
	return hex.EncodeToString(sum[:])
}

func setList(v url.Values, key string, values []string) {
	if len(values) > 0 {
		v.Set(key, strings.Join(values, ","))
	}
}
