package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"sales-dashboard/internal/models"
)

// Loader reads a full dataset from a local path or an s3:// URL. The format
// follows the file extension: .xlsx and .xlsm are workbooks, anything else is
// parsed as CSV.
type Loader struct {
	opts   Options
	s3     ObjectGetter
	logger *slog.Logger
}

type LoaderOption func(*Loader)

// WithS3 supplies the client used for s3:// sources.
func WithS3(getter ObjectGetter) LoaderOption {
	return func(l *Loader) {
		l.s3 = getter
	}
}

func NewLoader(opts Options, logger *slog.Logger, options ...LoaderOption) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loader{opts: opts.withDefaults(), logger: logger}
	for _, o := range options {
		o(l)
	}
	return l
}

func (l *Loader) Load(ctx context.Context, source string) ([]models.SalesRecord, error) {
	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("no data source configured")
	}

	start := time.Now()
	l.logger.Info("loading sales data", "source", source)

	var (
		rc  io.ReadCloser
		err error
	)
	if IsS3(source) {
		rc, err = openS3(ctx, l.s3, source)
	} else {
		rc, err = openFile(source)
	}
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var records []models.SalesRecord
	switch strings.ToLower(path.Ext(source)) {
	case ".xlsx", ".xlsm":
		records, err = ReadXLSX(ctx, rc, l.opts)
	default:
		records, err = ReadCSV(ctx, rc, l.opts)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", source, err)
	}

	duration := time.Since(start)
	l.logger.Info("sales data loaded",
		"source", source,
		"records", len(records),
		"duration", duration,
		"rate", fmt.Sprintf("%.0f records/sec", float64(len(records))/duration.Seconds()))
	return records, nil
}
