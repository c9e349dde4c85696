package crawler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/records-crawler/internal/metrics"
)

// ControllerConfig tunes progress reporting.
type ControllerConfig struct {
	// ProgressEvery logs a progress line after every N visits. Zero disables
	// periodic lines; the end-of-batch line is always logged.
	ProgressEvery int
	// Debug logs every scraped record id.
	Debug bool
}

// Controller drives one batch of sequential visits: extract, append,
// advance, until a terminal condition.
type Controller struct {
	nav       Navigator
	extractor Extractor
	store     *RecordStore
	clock     Clock
	cfg       ControllerConfig
	logger    *zap.Logger
}

// NewController constructs a Controller that owns store for its lifetime.
func NewController(
	nav Navigator,
	extractor Extractor,
	store *RecordStore,
	clock Clock,
	cfg ControllerConfig,
	logger *zap.Logger,
) *Controller {
	if store == nil {
		store = NewRecordStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		nav:       nav,
		extractor: extractor,
		store:     store,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// Store exposes the record log for checkpointing and export.
func (c *Controller) Store() *RecordStore {
	return c.store
}

// RunBatch visits records starting at page. target is the number of records
// still wanted; Unbounded visits until the end of data.
func (c *Controller) RunBatch(ctx context.Context, page Page, target int) (report BatchReport) {
	report.StartID = page.ID
	start := c.clock.Now()
	c.logger.Info("batch started", zap.String("start_id", page.ID), zap.Int("target", target))

	defer func() {
		if last, ok := c.store.PeekLast(); ok && report.Visits > 0 {
			report.LastID = last.ID
		}
		metrics.ObserveBatch(string(report.Result))
		prog := Progress{Visits: report.Visits, Elapsed: c.clock.Now().Sub(start), LastID: report.LastID}
		fields := append(prog.fields(), zap.String("result", string(report.Result)))
		if report.Err != nil {
			fields = append(fields, zap.Error(report.Err))
		}
		c.logger.Info("batch finished", fields...)
	}()

	if target == 0 {
		report.Result = ResultTargetReached
		return report
	}

	remaining := target
	for {
		rec, err := c.visit(ctx, page, report.Visits+1)
		report.Visits++

		switch Classify(err) {
		case KindNone:
			if c.cfg.Debug {
				c.logger.Debug("record scraped", zap.String("id", rec.ID))
			}
		case KindExtraction:
			c.logger.Warn("partial record appended",
				zap.Int("count", report.Visits),
				zap.String("id", rec.ID),
				zap.Error(err),
			)
		case KindInterrupt:
			report.Result, report.Err = ResultInterrupted, err
			return report
		default:
			c.logger.Error("unrecognized failure during visit",
				zap.Int("count", report.Visits),
				zap.String("url", page.URL),
				zap.Error(err),
			)
			report.Result, report.Err = ResultBatchFailed, err
			return report
		}

		if err := ctx.Err(); err != nil {
			report.Result = ResultInterrupted
			report.Err = fmt.Errorf("%w after count %d: %w", ErrInterrupted, report.Visits, err)
			return report
		}

		if remaining > 0 {
			remaining--
			if remaining == 0 {
				report.Result = ResultTargetReached
				return report
			}
		}

		if c.cfg.ProgressEvery > 0 && report.Visits%c.cfg.ProgressEvery == 0 {
			prog := Progress{Visits: report.Visits, Elapsed: c.clock.Now().Sub(start), LastID: rec.ID}
			c.logger.Info("crawl progress", prog.fields()...)
		}

		next, err := c.nav.Advance(ctx, page)
		if err != nil {
			report.Result, report.Err = resultFor(err), err
			if report.Result == ResultEndReached {
				c.logger.Info("no next record", zap.Int("count", report.Visits))
			}
			return report
		}
		page = next
	}
}

// visit extracts the current page and appends the result. The append runs
// exactly once on every path, including an extractor panic, which is
// surfaced as an unrecognized error.
func (c *Controller) visit(ctx context.Context, page Page, count int) (rec Record, err error) {
	start := c.clock.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extractor panic on count %d: %v", count, r)
		}
		c.store.Append(rec)
		metrics.ObserveVisit(Classify(err).String(), c.clock.Now().Sub(start))
	}()
	return c.extractor.Extract(ctx, page)
}
