package crawler

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, KindNone},
		{"interrupted", ErrInterrupted, KindInterrupt},
		{"canceled", fmt.Errorf("load: %w", context.Canceled), KindInterrupt},
		{"canceled wins over navigation", fmt.Errorf("%w: %w", ErrNavigation, context.Canceled), KindInterrupt},
		{"end of data", ErrEndOfData, KindEndOfData},
		{"element not found", fmt.Errorf("status: %w", ErrElementNotFound), KindExtraction},
		{"stale reference", ErrStaleReference, KindExtraction},
		{"extraction timeout", ErrTimeout, KindExtraction},
		{"navigation", ErrNavigation, KindNavigation},
		{"deadline", context.DeadlineExceeded, KindNavigation},
		{"unknown", errors.New("boom"), KindUnrecognized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestResultFor(t *testing.T) {
	assert.Equal(t, ResultInterrupted, resultFor(context.Canceled))
	assert.Equal(t, ResultEndReached, resultFor(ErrEndOfData))
	assert.Equal(t, ResultBatchFailed, resultFor(ErrNavigation))
	assert.Equal(t, ResultBatchFailed, resultFor(errors.New("boom")))
	assert.True(t, ResultBatchFailed.Retryable())
	assert.False(t, ResultEndReached.Retryable())
}

func TestErrorKindString(t *testing.T) {
	assert.Equal(t, "extraction", KindExtraction.String())
	assert.Equal(t, "unrecognized", ErrorKind(99).String())
}
