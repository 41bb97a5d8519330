package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"sales-dashboard/internal/models"
)

const (
	defaultBatchSize = 5000
	defaultWorkers   = 4
)

// Options tunes how rows are parsed once read.
type Options struct {
	BatchSize int
	Workers   int
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = defaultBatchSize
	}
	if o.Workers <= 0 {
		o.Workers = defaultWorkers
	}
	return o
}

// rowSource yields raw rows and returns io.EOF when exhausted.
type rowSource interface {
	next() ([]string, error)
}

type parsedBatch struct {
	records []models.SalesRecord
}

// readRecords reads the header and then every data row from src. Rows are
// handed off to parser goroutines in batches; each batch writes into its own
// slot so the result keeps source order.
func readRecords(ctx context.Context, src rowSource, opts Options) ([]models.SalesRecord, error) {
	opts = opts.withDefaults()

	names, err := src.next()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty source: no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	h, err := newHeader(names)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	var (
		slots []*parsedBatch
		line  = 1
	)
	dispatch := func(rows [][]string) {
		slot := &parsedBatch{}
		slots = append(slots, slot)
		g.Go(func() error {
			out := make([]models.SalesRecord, 0, len(rows))
			for _, row := range rows {
				if err := gctx.Err(); err != nil {
					return err
				}
				out = append(out, h.parseRow(row))
			}
			slot.records = out
			return nil
		})
	}

	batch := make([][]string, 0, opts.BatchSize)
	for {
		select {
		case <-gctx.Done():
			_ = g.Wait()
			return nil, ctx.Err()
		default:
		}

		row, err := src.next()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			_ = g.Wait()
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		if isBlank(row) {
			continue
		}

		batch = append(batch, row)
		if len(batch) >= opts.BatchSize {
			dispatch(batch)
			batch = make([][]string, 0, opts.BatchSize)
		}
	}
	if len(batch) > 0 {
		dispatch(batch)
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, s := range slots {
		total += len(s.records)
	}
	records := make([]models.SalesRecord, 0, total)
	for _, s := range slots {
		records = append(records, s.records...)
	}
	return records, nil
}
