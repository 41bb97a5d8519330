package ingest

import (
	"context"
	"encoding/csv"
	"io"

	"sales-dashboard/internal/models"
)

type csvSource struct {
	r *csv.Reader
}

func (s csvSource) next() ([]string, error) {
	return s.r.Read()
}

// ReadCSV parses a header-led CSV export of sales records.
func ReadCSV(ctx context.Context, r io.Reader, opts Options) ([]models.SalesRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false
	return readRecords(ctx, csvSource{r: cr}, opts)
}
