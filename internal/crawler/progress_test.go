package crawler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressArithmetic(t *testing.T) {
	p := Progress{Visits: 4, Elapsed: 10 * time.Second, LastID: "21-9"}

	assert.InDelta(t, 2.5, p.AvgSeconds(), 1e-9)
	assert.InDelta(t, 10.0, p.TotalSeconds(), 1e-9)
	assert.Equal(t, "Requests scraped: 4\tAvg runtime: 2.50s\tTotal runtime: 10.0s", p.String())
	assert.Equal(t, "Total requests scraped: 4\tAvg runtime: 2.50s\tTotal runtime: 10.0s\n\nLast request scraped: 21-9", p.Final())
}

func TestProgressZeroVisits(t *testing.T) {
	p := Progress{Elapsed: time.Second}
	assert.Zero(t, p.AvgSeconds())
}
