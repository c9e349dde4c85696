package crawler

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Progress is a snapshot of batch throughput.
type Progress struct {
	Visits  int
	Elapsed time.Duration
	LastID  string
}

// AvgSeconds is the mean wall time per visit.
func (p Progress) AvgSeconds() float64 {
	if p.Visits <= 0 {
		return 0
	}
	return p.Elapsed.Seconds() / float64(p.Visits)
}

// TotalSeconds is the wall time of the batch so far.
func (p Progress) TotalSeconds() float64 {
	return p.Elapsed.Seconds()
}

func (p Progress) String() string {
	return fmt.Sprintf("Requests scraped: %d\tAvg runtime: %.2fs\tTotal runtime: %.1fs",
		p.Visits, p.AvgSeconds(), p.TotalSeconds())
}

// Final renders the end-of-batch line including the checkpoint id.
func (p Progress) Final() string {
	return fmt.Sprintf("Total requests scraped: %d\tAvg runtime: %.2fs\tTotal runtime: %.1fs\n\nLast request scraped: %s",
		p.Visits, p.AvgSeconds(), p.TotalSeconds(), p.LastID)
}

func (p Progress) fields() []zap.Field {
	return []zap.Field{
		zap.Int("visits", p.Visits),
		zap.Float64("avg_seconds", p.AvgSeconds()),
		zap.Float64("total_seconds", p.TotalSeconds()),
		zap.String("last_id", p.LastID),
	}
}
