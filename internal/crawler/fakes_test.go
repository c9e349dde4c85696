package crawler

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
)

// linkedNavigator serves pages "1".."n" where each links to the next.
type linkedNavigator struct {
	n          int
	loadErrs   map[string]error
	advanceErr map[string]error
	loads      []string
	advances   []string
}

func newLinkedNavigator(n int) *linkedNavigator {
	return &linkedNavigator{
		n:          n,
		loadErrs:   map[string]error{},
		advanceErr: map[string]error{},
	}
}

func (l *linkedNavigator) page(id string) Page {
	return Page{ID: id, URL: "https://portal.test/requests/" + id}
}

func (l *linkedNavigator) Load(ctx context.Context, id string) (Page, error) {
	l.loads = append(l.loads, id)
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	if err, ok := l.loadErrs[id]; ok {
		return Page{}, err
	}
	n, err := strconv.Atoi(id)
	if err != nil || n < 1 || n > l.n {
		return Page{}, fmt.Errorf("%w: unknown id %q", ErrNavigation, id)
	}
	return l.page(id), nil
}

func (l *linkedNavigator) Advance(_ context.Context, page Page) (Page, error) {
	l.advances = append(l.advances, page.ID)
	if err, ok := l.advanceErr[page.ID]; ok {
		delete(l.advanceErr, page.ID)
		return Page{}, err
	}
	n, _ := strconv.Atoi(page.ID)
	if n >= l.n {
		return Page{}, ErrEndOfData
	}
	return l.page(strconv.Itoa(n + 1)), nil
}

// scriptedExtractor returns a complete record per page unless a one-shot
// error, partial record, hook or panic is registered for the page id.
type scriptedExtractor struct {
	errs   map[string]error
	panics map[string]bool
	hooks  map[string]func()
	calls  []string
}

func newScriptedExtractor() *scriptedExtractor {
	return &scriptedExtractor{
		errs:   map[string]error{},
		panics: map[string]bool{},
		hooks:  map[string]func(){},
	}
}

func (s *scriptedExtractor) Extract(_ context.Context, page Page) (Record, error) {
	s.calls = append(s.calls, page.ID)
	if hook, ok := s.hooks[page.ID]; ok {
		delete(s.hooks, page.ID)
		hook()
	}
	if s.panics[page.ID] {
		delete(s.panics, page.ID)
		panic("selector engine crashed")
	}
	if err, ok := s.errs[page.ID]; ok {
		delete(s.errs, page.ID)
		return Record{ID: page.ID}, err
	}
	return Record{
		ID:          page.ID,
		Status:      "Closed",
		Description: "request " + page.ID,
		Documents:   []Document{{Title: "doc.pdf", Link: "https://portal.test/documents/" + page.ID}},
	}, nil
}

// fakeClock advances a fixed step on every Now call and records sleeps.
type fakeClock struct {
	mu       sync.Mutex
	now      time.Time
	step     time.Duration
	sleeps   []time.Duration
	sleepErr error
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), step: time.Second}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()
	if c.sleepErr != nil {
		return c.sleepErr
	}
	return ctx.Err()
}

// MockExporter is a mock implementation of the Exporter interface.
type MockExporter struct {
	mock.Mock
}

func (m *MockExporter) Export(ctx context.Context, records []Record) (ExportResult, error) {
	args := m.Called(ctx, records)
	return args.Get(0).(ExportResult), args.Error(1)
}

// MockRetryPolicy is a mock implementation of the RetryPolicy interface.
type MockRetryPolicy struct {
	mock.Mock
}

func (m *MockRetryPolicy) ShouldRetry(err error, attempt int) bool {
	args := m.Called(err, attempt)
	return args.Bool(0)
}

func (m *MockRetryPolicy) Backoff(attempt int) time.Duration {
	args := m.Called(attempt)
	return args.Get(0).(time.Duration)
}

func recordIDs(records []Record) []string {
	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}
	return ids
}
