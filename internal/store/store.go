// Package store keeps sales records in a SQL database and answers listing
// queries against them.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"sales-dashboard/internal/config"
	"sales-dashboard/internal/models"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	// Keeps batch inserts below SQLite's bound-variable limit.
	maxInsertBatch = 500
)

type Store struct {
	db           *gorm.DB
	logger       *slog.Logger
	driver       string
	queryTimeout time.Duration
}

type options struct {
	tracing bool
}

type Option func(*options)

// WithTracing registers the otelgorm plugin so every statement gets a span.
func WithTracing(enabled bool) Option {
	return func(o *options) { o.tracing = enabled }
}

// Open connects, applies pool settings, verifies the connection and migrates
// the schema.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger, opts ...Option) (*Store, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	dialector, err := newDialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 NewGormLogger(logger, ParseLogLevel(cfg.LogLevel), cfg.SlowThreshold),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if isMemoryDSN(cfg) {
		// Every connection to an in-memory SQLite database is a separate
		// database, and closing the last one discards it.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	s := &Store{
		db:           db,
		logger:       logger,
		driver:       cfg.Driver,
		queryTimeout: cfg.QueryTimeout,
	}

	if err := s.Ping(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if o.tracing {
		if err := db.Use(otelgorm.NewPlugin(
			otelgorm.WithDBName(cfg.Driver),
			otelgorm.WithoutQueryVariables(),
		)); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to register database tracing: %w", err)
		}
	}

	if err := db.WithContext(ctx).AutoMigrate(&saleRow{}, &datasetRow{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	logger.Info("database ready", "driver", cfg.Driver, "tracing", o.tracing)
	return s, nil
}

func newDialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case DriverSQLite, "":
		return sqlite.Open(cfg.DSN), nil
	case DriverPostgres:
		return postgres.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func isMemoryDSN(cfg config.DatabaseConfig) bool {
	if cfg.Driver != DriverSQLite && cfg.Driver != "" {
		return false
	}
	return strings.Contains(cfg.DSN, ":memory:") || strings.Contains(cfg.DSN, "mode=memory")
}

// withTimeout bounds a single store call.
func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return classify(ctx, sqlDB.PingContext(ctx))
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Replace swaps the whole dataset in one transaction: readers see either the
// previous records or the new ones, never a mix. Load order becomes the
// records' sequence numbers.
func (s *Store) Replace(ctx context.Context, records []models.SalesRecord, source string) (models.Dataset, error) {
	keys := newSortKeyer()
	rows := make([]saleRow, len(records))
	for i, r := range records {
		rows[i] = newSaleRow(int64(i+1), r, keys)
	}

	var ds datasetRow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&saleRow{}).Error; err != nil {
			return fmt.Errorf("clearing records: %w", err)
		}
		if len(rows) > 0 {
			if err := tx.CreateInBatches(rows, maxInsertBatch).Error; err != nil {
				return fmt.Errorf("inserting records: %w", err)
			}
		}

		var existing []datasetRow
		if err := tx.Where("id = ?", datasetRowID).Limit(1).Find(&existing).Error; err != nil {
			return fmt.Errorf("reading dataset version: %w", err)
		}
		if len(existing) > 0 {
			ds = existing[0]
		}

		ds.ID = datasetRowID
		ds.Version++
		ds.RecordCount = int64(len(rows))
		ds.Source = source
		ds.LoadedAt = time.Now().UTC()
		if err := tx.Save(&ds).Error; err != nil {
			return fmt.Errorf("saving dataset version: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Dataset{}, classify(ctx, err)
	}

	s.logger.Info("dataset replaced",
		"version", ds.Version,
		"records", ds.RecordCount,
		"source", source,
	)
	return toDataset(ds), nil
}

// Dataset describes the loaded snapshot. Before the first Replace it is the
// zero Dataset.
func (s *Store) Dataset(ctx context.Context) (models.Dataset, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var rows []datasetRow
	if err := s.db.WithContext(ctx).Where("id = ?", datasetRowID).Limit(1).Find(&rows).Error; err != nil {
		return models.Dataset{}, classify(ctx, err)
	}
	if len(rows) == 0 {
		return models.Dataset{}, nil
	}
	return toDataset(rows[0]), nil
}

func toDataset(r datasetRow) models.Dataset {
	return models.Dataset{
		Version:     r.Version,
		RecordCount: r.RecordCount,
		Source:      r.Source,
		LoadedAt:    r.LoadedAt,
	}
}
