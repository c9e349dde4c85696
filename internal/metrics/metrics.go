// Package metrics exposes Prometheus collectors for the crawler.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	crawlerVisitsTotal            *prometheus.CounterVec
	crawlerVisitDurationSeconds   prometheus.Histogram
	crawlerBatchesTotal           *prometheus.CounterVec
	crawlerSessionRestartsTotal   prometheus.Counter
	crawlerRecordsExportedTotal   prometheus.Counter
	crawlerRateLimitDelaysSeconds prometheus.Histogram

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlerVisitsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_visits_total",
				Help: "Total number of record visits, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		crawlerVisitDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crawler_visit_duration_seconds",
				Help:    "Histogram of extract-and-append latencies per visit.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
		)

		crawlerBatchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_batches_total",
				Help: "Total number of controller batches, labeled by terminal result.",
			},
			[]string{"result"},
		)

		crawlerSessionRestartsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_session_restarts_total",
				Help: "Total number of batch restarts after a transient failure.",
			},
		)

		crawlerRecordsExportedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_records_exported_total",
				Help: "Total number of rows written to export archives.",
			},
		)

		crawlerRateLimitDelaysSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crawler_rate_limit_delays_seconds",
				Help:    "Histogram of politeness limiter wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// NewRouter mounts the metrics and health endpoints.
func NewRouter() http.Handler {
	Init()
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", Handler())
	return r
}

// ObserveVisit records one visit and its duration.
func ObserveVisit(outcome string, duration time.Duration) {
	Init()
	crawlerVisitsTotal.WithLabelValues(outcome).Inc()
	crawlerVisitDurationSeconds.Observe(duration.Seconds())
}

// ObserveBatch increments the batch counter for the given result.
func ObserveBatch(result string) {
	Init()
	crawlerBatchesTotal.WithLabelValues(result).Inc()
}

// ObserveRestart increments the restart counter.
func ObserveRestart() {
	Init()
	crawlerSessionRestartsTotal.Inc()
}

// ObserveExport adds exported rows.
func ObserveExport(rows int) {
	Init()
	if rows > 0 {
		crawlerRecordsExportedTotal.Add(float64(rows))
	}
}

// ObserveRateLimitDelay records the duration of a politeness wait.
func ObserveRateLimitDelay(duration time.Duration) {
	Init()
	crawlerRateLimitDelaysSeconds.Observe(duration.Seconds())
}
