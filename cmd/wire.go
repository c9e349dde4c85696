package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/records-crawler/internal/config"
	"github.com/JakeFAU/records-crawler/internal/crawler"
	collyfetcher "github.com/JakeFAU/records-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/records-crawler/internal/fetcher/headless"
	"github.com/JakeFAU/records-crawler/internal/logging"
	"github.com/JakeFAU/records-crawler/internal/metrics"
	"github.com/JakeFAU/records-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/records-crawler/internal/storage"
	"github.com/JakeFAU/records-crawler/internal/storage/gcs"
	"github.com/JakeFAU/records-crawler/internal/storage/local"
)

func newLogger(cfg config.Config) (*zap.Logger, error) {
	logger, err := logging.New(logging.Config{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
		File:        cfg.Logging.File,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}

// buildNavigator returns the configured page driver and its release func.
func buildNavigator(cfg config.Config, limiter *ratelimit.Limiter) (crawler.Navigator, func(), error) {
	switch cfg.Navigator.Driver {
	case config.DriverStatic:
		nav, err := collyfetcher.New(collyfetcher.Config{
			BaseURL:       cfg.Portal.BaseURL,
			UserAgent:     cfg.Navigator.UserAgent,
			RespectRobots: cfg.Navigator.RespectRobots,
			Timeout:       cfg.Navigator.Timeout,
		}, limiter)
		if err != nil {
			return nil, nil, fmt.Errorf("init static navigator: %w", err)
		}
		return nav, func() {}, nil
	default:
		nav, err := headless.NewChromedp(headless.Config{
			BaseURL:           cfg.Portal.BaseURL,
			UserAgent:         cfg.Navigator.UserAgent,
			NavigationTimeout: cfg.Navigator.Timeout,
			ExpandWait:        cfg.Navigator.ExpandWait,
		}, limiter)
		if err != nil {
			return nil, nil, fmt.Errorf("init headless navigator: %w", err)
		}
		return nav, nav.Close, nil
	}
}

// buildBlobStore selects GCS when a bucket is configured, else the local
// export directory.
func buildBlobStore(ctx context.Context, cfg config.ExportConfig) (storage.BlobStore, func(), error) {
	if cfg.GCSBucket != "" {
		store, closeFn, err := gcs.NewFromEnvironment(ctx, gcs.Config{Bucket: cfg.GCSBucket})
		if err != nil {
			return nil, nil, fmt.Errorf("init gcs store: %w", err)
		}
		return store, func() { _ = closeFn() }, nil
	}
	store, err := local.New(local.Config{BaseDir: cfg.Dir})
	if err != nil {
		return nil, nil, fmt.Errorf("init local store: %w", err)
	}
	return store, func() {}, nil
}

// startMetricsServer serves the metrics router on addr when it is set. The
// returned func shuts the server down.
func startMetricsServer(addr string, logger *zap.Logger) func() {
	if addr == "" {
		return func() {}
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           metrics.NewRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("metrics server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("metrics server shutdown failed", zap.Error(err))
		}
	}
}
