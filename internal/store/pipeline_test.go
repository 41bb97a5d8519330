package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"sales-dashboard/internal/query"
)

func TestBuildWhere_Empty(t *testing.T) {
	where, args := buildWhere(query.FilterSpec{})
	assert.Equal(t, "1 = 1", where)
	assert.Empty(t, args)
}

func TestBuildWhere_ConflictingAge(t *testing.T) {
	lo, hi := 50, 20
	where, args := buildWhere(query.FilterSpec{Age: query.AgeFilter{Min: &lo, Max: &hi}})
	assert.Equal(t, "1 = 0", where)
	assert.Empty(t, args)
}

func TestBuildWhere_ArgumentsFollowPlaceholders(t *testing.T) {
	lo := 18
	f := query.FilterSpec{
		Search:  "ne_h",
		Regions: []string{"east", "north"},
		Tags:    []string{"a"},
		Age:     query.AgeFilter{Min: &lo, Buckets: []query.AgeBucket{{Min: 65}}},
	}
	where, args := buildWhere(f)

	assert.Equal(t, countRune(where, '?'), len(args))
	assert.Contains(t, where, "region_key IN (?, ?)")
	assert.Contains(t, args, `ne\_h%`)
	assert.Contains(t, args, "%,a,%")
}

func TestOrderBy(t *testing.T) {
	assert.Equal(t, "seq ASC", orderBy(query.Sort{Field: "bogus", Direction: query.Asc}))
	assert.Equal(t,
		"CASE WHEN total_amount IS NULL THEN 1 ELSE 0 END ASC, total_amount DESC, seq ASC",
		orderBy(query.Sort{Field: query.FieldTotalSales, Direction: query.Desc}))
	assert.Equal(t,
		"CASE WHEN (customer_name IS NULL OR customer_name = '') THEN 1 ELSE 0 END ASC, customer_name_sort ASC, seq ASC",
		orderBy(query.Sort{Field: query.FieldCustomerName, Direction: query.Asc}))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\% off\_now\\`, escapeLike(`50% off_now\`))
}

func TestClassify(t *testing.T) {
	ctx := context.Background()
	canceled, cancel := context.WithCancel(ctx)
	cancel()

	tests := []struct {
		name        string
		ctx         context.Context
		err         error
		unavailable bool
	}{
		{"nil", ctx, nil, false},
		{"deadline", ctx, fmt.Errorf("query: %w", context.DeadlineExceeded), true},
		{"conn done", ctx, sql.ErrConnDone, true},
		{"closed", ctx, errors.New("sql: database is closed"), true},
		{"expired context", canceled, errors.New("interrupted"), true},
		{"syntax", ctx, errors.New("near \"SELEC\": syntax error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.ctx, tt.err)
			if tt.err == nil {
				assert.NoError(t, got)
				return
			}
			assert.Equal(t, tt.unavailable, errors.Is(got, ErrUnavailable))
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestTagsEncoding(t *testing.T) {
	assert.Equal(t, "", encodeTags(nil))
	assert.Equal(t, ",a,b,", encodeTags([]string{" A", "b", ""}))
	assert.Equal(t, []string{"a", "b"}, decodeTags(",a,b,"))
	assert.Nil(t, decodeTags(""))
}

func countRune(s string, r rune) int {
	n := 0
	for _, c := range s {
		if c == r {
			n++
		}
	}
	return n
}
