// Package metrics exposes Prometheus collectors for the discovery service.
package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchesTotal      *prometheus.CounterVec
	queueDepth        prometheus.Gauge
	indexedTotal      prometheus.Counter
	failuresTotal     prometheus.Counter
	backpressureGauge prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tubedex_fetches_total",
				Help: "Total number of completed fetches, labeled by status code.",
			},
			[]string{"status"},
		)

		queueDepth = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "tubedex_queue_depth",
				Help: "Number of fetches waiting in the scheduler queue.",
			},
		)

		indexedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tubedex_indexed_total",
				Help: "Total number of records extracted and upserted.",
			},
		)

		failuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tubedex_failures_total",
				Help: "Total number of fetches counted as failures.",
			},
		)

		backpressureGauge = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "tubedex_backpressure",
				Help: "Whether discovery is currently suppressed (1) or not (0).",
			},
		)
	})
}

// ObserveFetch records a completed fetch by status code. Transport errors use code 0.
func ObserveFetch(statusCode int) {
	if fetchesTotal == nil {
		return
	}
	fetchesTotal.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// SetQueueDepth records the current scheduler queue depth.
func SetQueueDepth(depth int) {
	if queueDepth == nil {
		return
	}
	queueDepth.Set(float64(depth))
}

// IncIndexed counts one successfully indexed record.
func IncIndexed() {
	if indexedTotal == nil {
		return
	}
	indexedTotal.Inc()
}

// IncFailed counts one failed fetch.
func IncFailed() {
	if failuresTotal == nil {
		return
	}
	failuresTotal.Inc()
}

// SetBackpressure records the backpressure gate state.
func SetBackpressure(engaged bool) {
	if backpressureGauge == nil {
		return
	}
	if engaged {
		backpressureGauge.Set(1)
		return
	}
	backpressureGauge.Set(0)
}
