package crawler

import (
	"time"
)

// Document is one attachment listed on a record page.
type Document struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

// Message is one entry from a record's event history.
type Message struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Time   string `json:"time"`
}

// Record is the structured result of one visit. Empty strings stand for
// fields that could not be read; nil slices mean the section was absent.
type Record struct {
	ID             string     `json:"id"`
	Status         string     `json:"status"`
	Description    string     `json:"description"`
	Date           string     `json:"date"`
	Departments    string     `json:"departments"`
	PointOfContact string     `json:"point_of_contact"`
	Documents      []Document `json:"documents,omitempty"`
	Messages       []Message  `json:"messages,omitempty"`
}

// Complete reports whether the visit produced a usable record.
func (r Record) Complete() bool {
	return r.Status != ""
}

// Clone returns a deep copy so callers cannot mutate stored records.
func (r Record) Clone() Record {
	out := r
	if r.Documents != nil {
		out.Documents = append([]Document(nil), r.Documents...)
	}
	if r.Messages != nil {
		out.Messages = append([]Message(nil), r.Messages...)
	}
	return out
}

// Page is the handle for a loaded record page. HTML holds the DOM snapshot
// taken after collapsed sections were expanded.
type Page struct {
	ID        string
	URL       string
	HTML      []byte
	FetchedAt time.Time
}

// BatchResult is the terminal state of one controller batch.
type BatchResult string

// Batch terminal states.
const (
	ResultTargetReached BatchResult = "target_reached"
	ResultEndReached    BatchResult = "end_reached"
	ResultBatchFailed   BatchResult = "batch_failed"
	ResultInterrupted   BatchResult = "interrupted"
)

// Retryable reports whether the session runner should start another batch.
func (r BatchResult) Retryable() bool {
	return r == ResultBatchFailed
}

// BatchReport summarizes one batch for the session runner.
type BatchReport struct {
	Result  BatchResult
	StartID string
	// LastID is the id of the last appended record, the resume checkpoint.
	LastID string
	Visits int
	Err    error
}

// Session is the transient state for one runner iteration.
type Session struct {
	CurrentID   string
	TargetCount int
	Iteration   int
}

// Unbounded is the TargetCount sentinel meaning "visit until the end".
const Unbounded = -1
