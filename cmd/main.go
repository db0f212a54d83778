package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"stripe-exporter/internal/cache"
	"stripe-exporter/internal/config"
	"stripe-exporter/internal/logging"
	"stripe-exporter/internal/metrics"
	"stripe-exporter/internal/payments"
	"stripe-exporter/internal/revenue"
)

// Set at build time with -ldflags "-X main.version=..."
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

const shutdownTimeout = 15 * time.Second

func main() {
	runOnce := flag.Bool("run-once", false, "run a single refresh cycle and exit")
	flag.Parse()

	config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		logging.Init(logging.Options{Production: config.IsProductionEnvironment()})
		logging.L().Fatal("Configuration validation failed", zap.Error(err))
	}

	logging.Init(logging.Options{Production: cfg.IsProduction(), Level: cfg.LogLevel})
	defer logging.Sync()
	logger := logging.L()

	for _, warning := range cfg.Warnings {
		logger.Warn("Configuration warning", zap.String("warning", warning))
	}

	logger.Info("Starting Stripe exporter",
		zap.String("version", version),
		zap.String("environment", cfg.Environment),
		zap.Duration("refresh_interval", cfg.RefreshInterval),
		zap.String("listen_addr", cfg.ListenAddr()),
	)

	registry := metrics.NewRegistry()
	m := metrics.New(registry)
	m.SetBuildInfo(version, commit, buildDate)

	stripeService := payments.NewStripeService(cfg.StripeAPIKey, payments.Options{
		PageSize:          cfg.PageSize,
		RateLimit:         cfg.RateLimit,
		MaxNetworkRetries: cfg.MaxNetworkRetries,
		Logger:            logging.StripeLogger(),
		Recorder:          m,
	})

	engine := revenue.NewEngine(stripeService, m, revenue.Options{
		Fees:     cfg.Fees,
		Names:    cache.NewNameCache(),
		Observer: m,
		Logger:   logger.Named("revenue"),
	})

	collector := metrics.NewCollector(engine, m, cfg.RefreshInterval, logger.Named("collector"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *runOnce {
		if err := collector.CollectOnce(ctx); err != nil {
			if payments.IsAuthError(err) {
				logger.Error("Stripe rejected the API key")
			}
			logging.Sync()
			os.Exit(1)
		}
		return
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           metrics.NewRouter(m, registry, collector, logger.Named("http")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	collector.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Metrics server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	// Let an in-flight refresh finish before exiting
	collector.Stop()

	if err != nil {
		logger.Error("Metrics server failed", zap.Error(err))
		logging.Sync()
		os.Exit(1)
	}
	logger.Info("Graceful shutdown complete")
}
