package crawler

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors understood by the controller. Adapters wrap these with
// fmt.Errorf("%w: ...") so Classify can make control-flow decisions.
var (
	// ErrExtraction means the page was loaded but could not be turned into a
	// complete record.
	ErrExtraction = errors.New("extraction failed")
	// ErrNavigation means a load or advance call failed.
	ErrNavigation = errors.New("navigation failed")
	// ErrEndOfData means the current record has no next record.
	ErrEndOfData = errors.New("end of data")
	// ErrInterrupted marks an operator cancellation.
	ErrInterrupted = errors.New("interrupted")
	// ErrRetriesExhausted ends a session after too many failed batches.
	ErrRetriesExhausted = errors.New("retries exhausted")
	// ErrNoStartID means there is neither a checkpoint nor an earliest id.
	ErrNoStartID = errors.New("no record id to start from")
)

// Recoverable extraction failures. All of them match ErrExtraction.
var (
	ErrFieldExtraction = fmt.Errorf("%w: field", ErrExtraction)
	ErrElementNotFound = fmt.Errorf("%w: element not found", ErrExtraction)
	ErrStaleReference  = fmt.Errorf("%w: stale element reference", ErrExtraction)
	ErrTimeout         = fmt.Errorf("%w: timed out", ErrExtraction)
)

// ErrorKind is the closed set of failure classes.
type ErrorKind int

// Error kinds, ordered by precedence in Classify.
const (
	KindNone ErrorKind = iota
	KindInterrupt
	KindEndOfData
	KindExtraction
	KindNavigation
	KindUnrecognized
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindInterrupt:
		return "interrupt"
	case KindEndOfData:
		return "end_of_data"
	case KindExtraction:
		return "extraction"
	case KindNavigation:
		return "navigation"
	default:
		return "unrecognized"
	}
}

// Classify maps err onto an ErrorKind. Cancellation wins over every other
// wrapped cause.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInterrupted), errors.Is(err, context.Canceled):
		return KindInterrupt
	case errors.Is(err, ErrEndOfData):
		return KindEndOfData
	case errors.Is(err, ErrExtraction):
		return KindExtraction
	case errors.Is(err, ErrNavigation), errors.Is(err, context.DeadlineExceeded):
		return KindNavigation
	default:
		return KindUnrecognized
	}
}

// resultFor converts a batch-ending error into the terminal state.
func resultFor(err error) BatchResult {
	switch Classify(err) {
	case KindInterrupt:
		return ResultInterrupted
	case KindEndOfData:
		return ResultEndReached
	default:
		return ResultBatchFailed
	}
}
