// Package metrics exposes uploader counters to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "lightbucket_uploader"

// Metrics holds the uploader collectors
type Metrics struct {
	capturesReceived *prometheus.CounterVec
	itemsProcessed   *prometheus.CounterVec
	queueDepth       prometheus.Gauge
	processing       prometheus.Gauge
	duration         prometheus.Histogram
}

// New registers the uploader collectors with reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		capturesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "captures_received_total",
			Help:      "Capture events seen by the filter, by decision.",
		}, []string{"decision"}),
		itemsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_processed_total",
			Help:      "Queued captures processed by the worker, by outcome.",
		}, []string{"outcome"}),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Captures waiting for the worker.",
		}),
		processing: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "processing",
			Help:      "1 while the worker is handling a capture.",
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "item_duration_seconds",
			Help:      "Time spent decoding, rendering and uploading one capture.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}
}

// ObserveDecision counts one filter decision
func (m *Metrics) ObserveDecision(decision string) {
	m.capturesReceived.WithLabelValues(decision).Inc()
}

// ObserveResult counts one processed item and its duration
func (m *Metrics) ObserveResult(outcome string, elapsed time.Duration) {
	m.itemsProcessed.WithLabelValues(outcome).Inc()
	m.duration.Observe(elapsed.Seconds())
}

// SetQueueDepth records the current queue length
func (m *Metrics) SetQueueDepth(n int) {
	m.queueDepth.Set(float64(n))
}

// SetProcessing records whether the worker is busy
func (m *Metrics) SetProcessing(busy bool) {
	if busy {
		m.processing.Set(1)
		return
	}
	m.processing.Set(0)
}
