package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newImportCmd() *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load a CSV or XLSX source into the store and exit",
		Long: "Reads the configured data source (or --source) and replaces the stored " +
			"dataset with it. Running servers pick up the new dataset on their next query.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runImport(cmd.Context(), source)
		},
	}
	cmd.Flags().StringVarP(&source, "source", "s", "",
		"File path or s3://bucket/key to import (defaults to data.source)")
	return cmd
}

func runImport(ctx context.Context, source string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if source != "" {
		cfg.Data.Source = source
	}
	if cfg.Data.Source == "" {
		return fmt.Errorf("no source to import: set data.source or pass --source")
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.close(); err != nil {
			logger.Warn("failed to close resources", "error", err)
		}
	}()

	loadCtx, cancel := context.WithTimeout(ctx, cfg.Data.LoadTimeout)
	defer cancel()

	start := time.Now()
	ds, err := a.sales.Reload(loadCtx)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	logger.Info("import complete",
		"source", ds.Source,
		"version", ds.Version,
		"records", ds.RecordCount,
		"duration", time.Since(start),
	)
	return nil
}
