package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"sales-dashboard/internal/config"
	"sales-dashboard/internal/middleware"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/server"
)

const version = "1.0.0"

var cfgPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "web",
		Short:         "Serve the sales dashboard",
		RunE:          runServer,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "",
		"Path to a config file (YAML or TOML); environment variables override it")

	rootCmd.AddCommand(newImportCmd())
	return rootCmd
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := observability.NewLogger(cfg.Logger, cfg.Telemetry.ServiceName)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func runServer(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateServe(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Info("starting application",
		"version", version,
		"addr", cfg.Address(),
		"database", cfg.Database.Driver,
		"source", cfg.Data.Source,
	)

	shutdownTracing, err := observability.InitTracing(cfg.Telemetry, logger)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		_ = shutdownTracing(context.Background())
		return err
	}

	if cfg.Data.LoadOnStart {
		loadCtx, cancel := context.WithTimeout(ctx, cfg.Data.LoadTimeout)
		err := a.sales.Bootstrap(loadCtx, cfg.Data.OnLoadError)
		cancel()
		if err != nil {
			_ = a.close()
			_ = shutdownTracing(context.Background())
			return err
		}
	}

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      newHandler(a),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg.Server)

	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		logger.Info("closing store and cache")
		return a.close()
	})
	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		logger.Info("flushing traces")
		return shutdownTracing(ctx)
	})

	if err := gracefulServer.ListenAndServe(); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("application stopped gracefully")
	return nil
}

// newHandler builds the routed server wrapped in the middleware chain.
// Metrics sits innermost so it sees the pattern the mux matched.
func newHandler(a *app) http.Handler {
	cfg := a.cfg

	var opts []server.Option
	if cfg.Telemetry.MetricsEnabled {
		opts = append(opts, server.WithMetrics(a.metrics.Handler()))
	}

	templateHandlers := &server.TemplateHandlers{
		Dashboard: a.dashboardHandler(),
	}
	srv := server.NewServer(a.sales, a.logger, templateHandlers, opts...)

	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	middlewareChain := middleware.Chain(
		middleware.Recovery(a.logger),
		middleware.RequestID(),
		middleware.Logger(a.logger),
		middleware.Tracing(),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, a.logger),
		middleware.Metrics(a.metrics),
	)

	return middlewareChain(srv)
}
