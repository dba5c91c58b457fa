// Package metrics registers the Prometheus collectors exposed on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IngestBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readings_ingest_batches_total",
			Help: "Ingest calls that reached the aggregation store, by outcome",
		},
		[]string{"outcome"},
	)

	ReadingsStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "readings_stored_total",
			Help: "Readings newly recorded in device aggregates",
		},
	)

	ReadingsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "readings_skipped_total",
			Help: "Readings skipped as already seen or unparseable",
		},
	)

	DevicesTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "readings_devices_tracked",
			Help: "Devices with at least one recorded reading",
		},
	)

	JournalWriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "readings_journal_write_errors_total",
			Help: "Ingest journal writes that failed",
		},
	)

	JournalRowsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "readings_journal_rows_pruned_total",
			Help: "Ingest journal rows removed by the retention sweep",
		},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "readings_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// RecordIngest updates the ingest counters for one call.
func RecordIngest(outcome string, submitted, stored int, devices int) {
	IngestBatches.WithLabelValues(outcome).Inc()
	ReadingsStored.Add(float64(stored))
	if skipped := submitted - stored; skipped > 0 && outcome == "stored" {
		ReadingsSkipped.Add(float64(skipped))
	}
	DevicesTracked.Set(float64(devices))
}

// RecordAPIRequest observes one HTTP request.
func RecordAPIRequest(method, route string, status int, d time.Duration) {
	APIRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
