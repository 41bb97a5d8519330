package query

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"sales-dashboard/internal/models"
)

// Relative date presets, in days.
const (
	PresetWeek    = 7
	PresetMonth   = 30
	PresetQuarter = 90
	PresetYear    = 365
)

// FilterSpec is the compiled, normalized filter. It is a pure value: two
// specs compiled from equivalent parameters with the same clock are equal.
type FilterSpec struct {
	// Search is case-folded; empty means no text filter.
	Search         string
	Regions        []string
	Genders        []string
	Categories     []string
	PaymentMethods []string
	// Tags match when a record carries any of them.
	Tags []string
	Age  AgeFilter
	Date DateFilter
}

// AgeFilter combines explicit bounds with a list of buckets. Bounds and
// buckets are AND-ed; buckets are OR-ed among themselves.
type AgeFilter struct {
	Min     *int
	Max     *int
	Buckets []AgeBucket
}

// AgeBucket is an inclusive age interval. A nil Max is open-ended.
type AgeBucket struct {
	Min int
	Max *int
}

// Conflicting reports whether the explicit bounds can never be satisfied.
func (a AgeFilter) Conflicting() bool {
	return a.Min != nil && a.Max != nil && *a.Min > *a.Max
}

// IsZero reports whether the age dimension is unconstrained.
func (a AgeFilter) IsZero() bool {
	return a.Min == nil && a.Max == nil && len(a.Buckets) == 0
}

func (b AgeBucket) String() string {
	if b.Max == nil {
		return strconv.Itoa(b.Min) + "+"
	}
	return strconv.Itoa(b.Min) + "-" + strconv.Itoa(*b.Max)
}

// DateFilter holds explicit day bounds and an optional relative preset. The
// preset is resolved against the compile clock into Since/Until.
type DateFilter struct {
	From       *time.Time
	To         *time.Time
	PresetDays int
	Since      *time.Time
	Until      *time.Time
}

// Bounds returns the effective inclusive day range, the intersection of the
// explicit bounds and the resolved preset.
func (d DateFilter) Bounds() (from, to *time.Time) {
	from = later(d.From, d.Since)
	to = earlier(d.To, d.Until)
	return from, to
}

// IsZero reports whether the date dimension is unconstrained.
func (d DateFilter) IsZero() bool {
	from, to := d.Bounds()
	return from == nil && to == nil
}

// Compile normalizes p into a FilterSpec. Malformed values are ignored rather
// than reported; now anchors relative date presets.
func Compile(p Params, now time.Time) FilterSpec {
	return FilterSpec{
		Search:         models.Fold(p.Search),
		Regions:        normalizeSet(p.Regions),
		Genders:        normalizeSet(p.Genders),
		Categories:     normalizeSet(p.Categories),
		PaymentMethods: normalizeSet(p.PaymentMethods),
		Tags:           normalizeSet(p.Tags),
		Age:            compileAge(p),
		Date:           compileDate(p, now),
	}
}

func normalizeSet(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		f := models.Fold(v)
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}

func compileAge(p Params) AgeFilter {
	var age AgeFilter
	age.Min = parseInt(p.AgeMin)
	age.Max = parseInt(p.AgeMax)

	// The dashboard keeps its age slider in the URL as "ageRange=min,max".
	if len(p.AgeRange) == 2 && age.Min == nil && age.Max == nil {
		lo, hi := parseInt(p.AgeRange[0]), parseInt(p.AgeRange[1])
		if lo != nil && hi != nil {
			age.Min, age.Max = lo, hi
			return age
		}
	}

	seen := make(map[ageBucketKey]struct{})
	for _, token := range p.AgeRange {
		b, ok := parseBucket(token)
		if !ok {
			continue
		}
		k := b.key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		age.Buckets = append(age.Buckets, b)
	}
	sort.Slice(age.Buckets, func(i, j int) bool {
		return age.Buckets[i].key().less(age.Buckets[j].key())
	})
	return age
}

// ageBucketKey is the comparable form of an AgeBucket.
type ageBucketKey struct {
	Min  int
	Max  int
	Open bool
}

func (b AgeBucket) key() ageBucketKey {
	if b.Max == nil {
		return ageBucketKey{Min: b.Min, Open: true}
	}
	return ageBucketKey{Min: b.Min, Max: *b.Max}
}

func (k ageBucketKey) less(o ageBucketKey) bool {
	if k.Min != o.Min {
		return k.Min < o.Min
	}
	if k.Open != o.Open {
		return !k.Open
	}
	return k.Max < o.Max
}

func parseBucket(token string) (AgeBucket, bool) {
	token = strings.TrimSpace(token)
	if rest, ok := strings.CutSuffix(token, "+"); ok {
		lo := parseInt(rest)
		if lo == nil || *lo < 0 {
			return AgeBucket{}, false
		}
		return AgeBucket{Min: *lo}, true
	}

	lo, hi, ok := strings.Cut(token, "-")
	if !ok {
		return AgeBucket{}, false
	}
	minAge, maxAge := parseInt(lo), parseInt(hi)
	if minAge == nil || maxAge == nil || *minAge < 0 {
		return AgeBucket{}, false
	}
	return AgeBucket{Min: *minAge, Max: maxAge}, true
}

func parseInt(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

func compileDate(p Params, now time.Time) DateFilter {
	var d DateFilter
	d.From = parseDay(p.DateFrom)
	d.To = parseDay(p.DateTo)

	var explicit []*time.Time
	for _, token := range p.DateRange {
		if day := parseDay(token); day != nil {
			explicit = append(explicit, day)
			continue
		}
		if days := presetDays(token); days > 0 {
			d.PresetDays = days
		}
	}

	// "dateRange=from,to" only fills bounds the explicit parameters left open.
	if len(explicit) > 0 && d.From == nil {
		d.From = explicit[0]
	}
	if len(explicit) > 1 && d.To == nil {
		d.To = explicit[1]
	}

	if d.PresetDays > 0 {
		today := truncateDay(now)
		since := today.AddDate(0, 0, -d.PresetDays)
		d.Since, d.Until = &since, &today
	}
	return d
}

// presetDays maps a preset token to its window length. Later checks win, so
// "year" outranks "90", which outranks "30" and "7".
func presetDays(token string) int {
	t := strings.ToLower(token)
	days := 0
	if strings.Contains(t, "7") {
		days = PresetWeek
	}
	if strings.Contains(t, "30") {
		days = PresetMonth
	}
	if strings.Contains(t, "90") {
		days = PresetQuarter
	}
	if strings.Contains(t, "year") {
		days = PresetYear
	}
	return days
}

func presetToken(days int) string {
	if days == PresetYear {
		return "year"
	}
	return strconv.Itoa(days)
}

// parseDay accepts a calendar day or an RFC 3339 timestamp and returns the
// UTC midnight of its calendar day.
func parseDay(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if t, err := time.Parse(models.DateLayout, s); err == nil {
		return &t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		day := truncateDay(t)
		return &day
	}
	return nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func later(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.After(*a):
		return b
	default:
		return a
	}
}

func earlier(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.Before(*a):
		return b
	default:
		return a
	}
}
