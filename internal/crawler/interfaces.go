package crawler

import (
	"context"
	"time"
)

// Navigator loads record pages and follows the portal's "next record" link.
type Navigator interface {
	// Load opens the record with the given id. Failures wrap ErrNavigation.
	Load(ctx context.Context, id string) (Page, error)
	// Advance moves to the record after page. It returns ErrEndOfData when
	// there is no next record and ErrNavigation on any other failure.
	Advance(ctx context.Context, page Page) (Page, error)
}

// Extractor turns a loaded page into a best-effort Record. The returned
// Record is meaningful even when err is non-nil.
type Extractor interface {
	Extract(ctx context.Context, page Page) (Record, error)
}

// ExportResult describes a persisted export.
type ExportResult struct {
	Location string
	Rows     int
	// Checksum fingerprints the stored archive body.
	Checksum string
}

// Exporter persists the session's records.
type Exporter interface {
	Export(ctx context.Context, records []Record) (ExportResult, error)
}

// RetryPolicy decides whether a failed batch is retried and how long to wait.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Clock returns the current time and sleeps (useful for testing).
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// IDGenerator produces session IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
