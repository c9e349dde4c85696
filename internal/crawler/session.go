package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/records-crawler/internal/metrics"
)

// SessionConfig carries the invocation parameters of one session.
type SessionConfig struct {
	// EarliestID is where a session with an empty store starts.
	EarliestID string
	// TargetCount is the number of records wanted, or Unbounded.
	TargetCount int
}

// Summary describes a finished session.
type Summary struct {
	Result     BatchResult
	Iterations int
	Visits     int
	Records    int
	LastID     string
	Export     ExportResult
	Started    time.Time
	Finished   time.Time
}

// SessionRunner restarts controller batches from the last checkpoint until
// the data ends, the target is met, or the operator interrupts, and exports
// the record log on every exit path.
type SessionRunner struct {
	controller *Controller
	nav        Navigator
	exporter   Exporter
	retry      RetryPolicy
	clock      Clock
	cfg        SessionConfig
	logger     *zap.Logger
}

// NewSessionRunner constructs a SessionRunner.
func NewSessionRunner(
	controller *Controller,
	nav Navigator,
	exporter Exporter,
	retry RetryPolicy,
	clock Clock,
	cfg SessionConfig,
	logger *zap.Logger,
) *SessionRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retry == nil {
		retry = NewFixedRetryPolicy(0, 0)
	}
	return &SessionRunner{
		controller: controller,
		nav:        nav,
		exporter:   exporter,
		retry:      retry,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run executes the session. The export runs even when ctx is canceled; an
// export failure is joined with the crawl error.
func (r *SessionRunner) Run(ctx context.Context) (Summary, error) {
	summary := Summary{Started: r.clock.Now()}
	r.logger.Info("session started", zap.Time("start", summary.Started))

	runErr := r.loop(ctx, &summary)

	store := r.controller.Store()
	summary.Records = store.Len()
	if last, ok := store.PeekLast(); ok {
		summary.LastID = last.ID
	}

	var exportErr error
	if r.exporter != nil {
		summary.Export, exportErr = r.exporter.Export(context.WithoutCancel(ctx), store.Records())
		if exportErr != nil {
			r.logger.Error("export failed", zap.Error(exportErr))
			exportErr = fmt.Errorf("export records: %w", exportErr)
		} else {
			metrics.ObserveExport(summary.Export.Rows)
			r.logger.Info("records exported",
				zap.String("location", summary.Export.Location),
				zap.Int("rows", summary.Export.Rows),
			)
		}
	}

	summary.Finished = r.clock.Now()
	r.logger.Info("session finished",
		zap.Time("end", summary.Finished),
		zap.String("result", string(summary.Result)),
		zap.Int("iterations", summary.Iterations),
		zap.Int("visits", summary.Visits),
		zap.Int("records", summary.Records),
	)
	return summary, errors.Join(runErr, exportErr)
}

func (r *SessionRunner) loop(ctx context.Context, summary *Summary) error {
	remaining := r.cfg.TargetCount
	failures := 0
	for iteration := 1; ; iteration++ {
		if err := ctx.Err(); err != nil {
			summary.Result = ResultInterrupted
			return fmt.Errorf("%w between iterations: %w", ErrInterrupted, err)
		}
		if remaining == 0 {
			summary.Result = ResultTargetReached
			return nil
		}

		session, resumed, err := r.nextSession(iteration, remaining)
		if err != nil {
			summary.Result = ResultBatchFailed
			return err
		}
		summary.Iterations = iteration

		report, revisit := r.runIteration(ctx, session, resumed)
		if revisit && remaining != Unbounded {
			remaining++
		}
		summary.Visits += report.Visits
		summary.Result = report.Result
		if remaining != Unbounded {
			remaining = max(remaining-report.Visits, 0)
		}

		switch report.Result {
		case ResultTargetReached, ResultEndReached:
			return nil
		case ResultInterrupted:
			return report.Err
		}

		progressed := report.Visits > boolToInt(revisit)
		if progressed {
			failures = 0
		}
		failures++
		if !r.retry.ShouldRetry(report.Err, failures) {
			return fmt.Errorf("%w after %d consecutive failures: %w", ErrRetriesExhausted, failures, report.Err)
		}

		delay := r.retry.Backoff(failures)
		r.logger.Warn("batch failed, restarting from checkpoint",
			zap.Int("iteration", iteration),
			zap.Int("consecutive_failures", failures),
			zap.Duration("backoff", delay),
			zap.Error(report.Err),
		)
		if err := r.clock.Sleep(ctx, delay); err != nil {
			summary.Result = ResultInterrupted
			return fmt.Errorf("%w during backoff: %w", ErrInterrupted, err)
		}
		metrics.ObserveRestart()
	}
}

// nextSession picks the resume point: the last addressable record in the
// store, or the configured earliest id when the store is empty.
func (r *SessionRunner) nextSession(iteration, remaining int) (Session, bool, error) {
	session := Session{Iteration: iteration, TargetCount: remaining}
	if id, ok := r.controller.Store().Checkpoint(); ok {
		session.CurrentID = id
		return session, true, nil
	}
	if r.cfg.EarliestID == "" {
		return session, false, ErrNoStartID
	}
	session.CurrentID = r.cfg.EarliestID
	return session, false, nil
}

// runIteration loads the start record and runs one batch. When resuming, the
// checkpoint record is popped only after its page loaded, so the re-visit
// replaces it and a failed load loses nothing. The bool reports that pop.
func (r *SessionRunner) runIteration(ctx context.Context, session Session, resumed bool) (BatchReport, bool) {
	logger := r.logger.With(zap.Int("iteration", session.Iteration))
	logger.Info("iteration started", zap.String("start_id", session.CurrentID), zap.Int("target", session.TargetCount))

	page, err := r.nav.Load(ctx, session.CurrentID)
	if err != nil {
		logger.Warn("load failed", zap.String("id", session.CurrentID), zap.Error(err))
		report := BatchReport{StartID: session.CurrentID, Result: resultFor(err), Err: err}
		metrics.ObserveBatch(string(report.Result))
		return report, false
	}
	if page.ID == "" {
		page.ID = session.CurrentID
	}

	target := session.TargetCount
	if resumed {
		r.controller.Store().PopLast()
		if target != Unbounded {
			target++
		}
	}
	return r.controller.RunBatch(ctx, page, target), resumed
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
