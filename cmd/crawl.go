// Package cmd defines and implements the CLI commands for the records-crawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/JakeFAU/records-crawler/internal/clock/system"
	"github.com/JakeFAU/records-crawler/internal/config"
	"github.com/JakeFAU/records-crawler/internal/crawler"
	"github.com/JakeFAU/records-crawler/internal/export"
	"github.com/JakeFAU/records-crawler/internal/extractor"
	"github.com/JakeFAU/records-crawler/internal/id/uuid"
	"github.com/JakeFAU/records-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/records-crawler/internal/storage"
)

// newCrawlCmd creates the 'crawl' subcommand, which runs one crawl session
// and exports its records.
func newCrawlCmd(cfgFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawls records sequentially and exports them",
		Long: `Starts at the last record of the resume archive, or at --earliest-id when
there is none, and follows "next request" links until the portal runs out of
records, --count records were visited, or the process is interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawlCommand(cmd, *cfgFile)
		},
	}
	addCrawlFlags(cmd.Flags())
	return cmd
}

func addCrawlFlags(fs *pflag.FlagSet) {
	fs.String("base-url", config.DefaultBaseURL, "record listing root of the portal")
	fs.String("earliest-id", "", "record id to start from when there is no checkpoint")
	fs.Int("count", crawler.Unbounded, "number of records to visit, -1 for all")
	fs.Duration("backoff", 10*time.Second, "wait before restarting a failed batch")
	fs.Int("progress-every", 100, "log a progress line every N visits, 0 to disable")
	fs.Int("max-failures", 5, "consecutive failed batches before giving up, 0 for no limit")
	fs.String("resume", "", "archive path in the export store to resume from")
	fs.Bool("debug", false, "log every scraped record id")
	fs.Float64("rps", 0, "maximum portal requests per second, 0 for no limit")
	fs.String("driver", config.DriverHeadless, "page driver: headless or static")
	fs.String("user-agent", "records-crawler/0.1", "user agent sent to the portal")
	fs.Duration("navigator-timeout", 45*time.Second, "timeout for a single page navigation")
	addExportFlags(fs)
	addLoggingFlags(fs)
	fs.String("metrics-addr", "", "serve /metrics and /healthz on this address")
}

func addExportFlags(fs *pflag.FlagSet) {
	fs.String("name", "requests", "archive base name")
	fs.String("dir", "data", "local export directory")
	fs.String("gcs-bucket", "", "export to this GCS bucket instead of --dir")
	fs.String("prefix", "", "object prefix within the export store")
}

func addLoggingFlags(fs *pflag.FlagSet) {
	fs.String("log-file", "", "also write logs to this file")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.Bool("dev", true, "human-readable development logging")
}

func runCrawlCommand(cmd *cobra.Command, cfgFile string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	sessionID, err := uuid.NewUUIDGenerator().NewID()
	if err != nil {
		return err
	}
	logger = logger.With(zap.String("session_id", sessionID))

	stopMetrics := startMetricsServer(cfg.Metrics.Addr, logger)
	defer stopMetrics()

	limiter := ratelimit.New(ratelimit.Config{RPS: cfg.Crawl.RequestsPerSecond, Burst: 1})
	nav, closeNav, err := buildNavigator(cfg, limiter)
	if err != nil {
		return err
	}
	defer closeNav()

	store, closeStore, err := buildBlobStore(ctx, cfg.Export)
	if err != nil {
		return err
	}
	defer closeStore()

	exporter, err := export.New(store, export.Config{Name: cfg.Export.Name, Prefix: cfg.Export.Prefix}, logger)
	if err != nil {
		return fmt.Errorf("init exporter: %w", err)
	}

	seed, err := loadResumeArchive(ctx, store, cfg.Crawl.ResumeArchive, logger)
	if err != nil {
		return err
	}

	clock := system.New()
	controller := crawler.NewController(
		nav,
		extractor.New(logger),
		crawler.NewRecordStore(seed...),
		clock,
		crawler.ControllerConfig{ProgressEvery: cfg.Crawl.ProgressEvery, Debug: cfg.Crawl.Debug},
		logger,
	)
	runner := crawler.NewSessionRunner(
		controller,
		nav,
		exporter,
		crawler.NewFixedRetryPolicy(cfg.Crawl.MaxConsecutiveFailures, cfg.Crawl.Backoff),
		clock,
		crawler.SessionConfig{EarliestID: cfg.Crawl.EarliestID, TargetCount: cfg.Crawl.TargetCount},
		logger,
	)

	summary, runErr := runner.Run(ctx)
	if err := renderSummary(cmd.OutOrStdout(), summary); err != nil {
		logger.Warn("failed to render summary", zap.Error(err))
	}

	return crawlOutcome(summary, runErr, logger)
}

// crawlOutcome maps the session error onto the command result. An operator
// interrupt whose records were exported is a clean exit.
func crawlOutcome(summary crawler.Summary, runErr error, logger *zap.Logger) error {
	if runErr == nil {
		logger.Info("crawl command finished", zap.String("result", string(summary.Result)))
		return nil
	}
	if crawler.Classify(runErr) == crawler.KindInterrupt && summary.Export.Location != "" {
		logger.Info("crawl interrupted, records saved", zap.String("location", summary.Export.Location))
		return nil
	}
	if errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("crawl interrupted: %w", runErr)
	}
	return fmt.Errorf("run crawler: %w", runErr)
}

// loadResumeArchive reads records saved by an earlier session. An empty path,
// a missing archive, or an archive without rows seeds nothing.
func loadResumeArchive(ctx context.Context, store storage.BlobStore, objectPath string, logger *zap.Logger) ([]crawler.Record, error) {
	if objectPath == "" {
		return nil, nil
	}
	records, err := export.Load(ctx, store, objectPath)
	if err != nil {
		return nil, fmt.Errorf("load resume archive %s: %w", objectPath, err)
	}
	if len(records) == 0 {
		logger.Warn("resume archive has no records, starting fresh", zap.String("path", objectPath))
		return nil, nil
	}
	logger.Info("resuming from archive",
		zap.String("path", objectPath),
		zap.Int("records", len(records)),
		zap.String("last_id", records[len(records)-1].ID),
	)
	return records, nil
}
