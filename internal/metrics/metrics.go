package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	submissionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "biaseval_submission_duration_seconds",
			Help:    "API submission duration in seconds by dataset and outcome",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 0.1s to ~100s
		},
		[]string{"dataset", "outcome"},
	)

	throttleWaitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "biaseval_throttle_wait_duration_seconds",
			Help:    "Time spent waiting for request-rate credit",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~32s
		},
	)

	queueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "biaseval_queue_depth",
			Help: "Current depth of an inter-stage queue",
		},
		[]string{"queue"}, // "requests" or "results"
	)

	retries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "biaseval_retries_total",
			Help: "Total requeued submissions by reason",
		},
		[]string{"reason"}, // "rate_limited" or "transient"
	)

	persisted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "biaseval_results_persisted_total",
			Help: "Total results appended to the output log",
		},
	)

	skipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "biaseval_items_skipped_total",
			Help: "Total items skipped because a prior run already recorded them",
		},
	)
)

// Collector provides convenience methods for recording pipeline metrics
type Collector struct{}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{}
}

// RecordSubmission records an API submission duration and its outcome
func (c *Collector) RecordSubmission(dataset, outcome string, duration time.Duration) {
	submissionDuration.WithLabelValues(dataset, outcome).Observe(duration.Seconds())
}

// RecordThrottleWait records time spent waiting for rate-limit credit
func (c *Collector) RecordThrottleWait(duration time.Duration) {
	throttleWaitDuration.Observe(duration.Seconds())
}

// SetQueueDepth sets the current depth of an inter-stage queue
func (c *Collector) SetQueueDepth(queue string, depth int) {
	queueDepth.WithLabelValues(queue).Set(float64(depth))
}

// IncrementRetry counts a requeued submission
func (c *Collector) IncrementRetry(reason string) {
	retries.WithLabelValues(reason).Inc()
}

// IncrementPersisted counts a result appended to the output log
func (c *Collector) IncrementPersisted() {
	persisted.Inc()
}

// IncrementSkipped counts an item skipped via the resume set
func (c *Collector) IncrementSkipped() {
	skipped.Inc()
}
