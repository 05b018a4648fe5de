// Package obs provides observability functionality including metrics and HTTP endpoints
package obs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Publish modes and outcomes used as label values.
const (
	ModeAsync = "async"
	ModeSync  = "sync"

	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusTimeout = "timeout"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	QueueDepth             prometheus.Gauge
	EventsIngestedTotal    prometheus.Counter
	EventsProcessedTotal   prometheus.Counter
	RetryAttemptsTotal     prometheus.Counter
	RetryExhaustedTotal    prometheus.Counter
	FatalErrorsTotal       *prometheus.CounterVec
	RecoveryPublishedTotal *prometheus.CounterVec
	PublishTotal           *prometheus.CounterVec
	PublishDuration        *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics with reg.
func NewMetrics(serviceName string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	labels := prometheus.Labels{"service": serviceName}

	return &Metrics{
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "queue_depth",
			Help:        "Current number of records waiting in worker queues",
			ConstLabels: labels,
		}),
		EventsIngestedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name:        "events_ingested_total",
			Help:        "Total number of records fetched from the broker and handed to a worker",
			ConstLabels: labels,
		}),
		EventsProcessedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name:        "events_processed_total",
			Help:        "Total number of library events successfully processed",
			ConstLabels: labels,
		}),
		RetryAttemptsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name:        "retry_attempts_total",
			Help:        "Total number of retries scheduled after a retryable failure",
			ConstLabels: labels,
		}),
		RetryExhaustedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name:        "retry_exhausted_total",
			Help:        "Total number of records that exhausted all retry attempts",
			ConstLabels: labels,
		}),
		FatalErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "fatal_errors_total",
			Help:        "Total number of records that failed with a non-retryable error",
			ConstLabels: labels,
		}, []string{"kind"}),
		RecoveryPublishedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "recovery_published_total",
			Help:        "Total number of exhausted records re-published to the source topic",
			ConstLabels: labels,
		}, []string{"status"}),
		PublishTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "publish_total",
			Help:        "Total number of publish attempts by mode and outcome",
			ConstLabels: labels,
		}, []string{"mode", "status"}),
		PublishDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "publish_duration_seconds",
			Help:        "Time from send to broker acknowledgement",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"mode"}),
	}
}

// IncrementEventsIngested increments the events ingested counter by 1
func (m *Metrics) IncrementEventsIngested() {
	if m == nil {
		return
	}
	m.EventsIngestedTotal.Inc()
}

// IncrementEventsProcessed increments the events processed counter by 1
func (m *Metrics) IncrementEventsProcessed() {
	if m == nil {
		return
	}
	m.EventsProcessedTotal.Inc()
}

// IncrementQueueDepth increments the queue depth gauge metric by 1
func (m *Metrics) IncrementQueueDepth() {
	if m == nil {
		return
	}
	m.QueueDepth.Inc()
}

// DecrementQueueDepth decrements the queue depth gauge metric by 1
func (m *Metrics) DecrementQueueDepth() {
	if m == nil {
		return
	}
	m.QueueDepth.Dec()
}

// NullifyQueueDepth sets the queue depth gauge metric to 0
func (m *Metrics) NullifyQueueDepth() {
	if m == nil {
		return
	}
	m.QueueDepth.Set(0)
}

// IncrementRetryAttempts increments the retry attempts counter by 1
func (m *Metrics) IncrementRetryAttempts() {
	if m == nil {
		return
	}
	m.RetryAttemptsTotal.Inc()
}

// IncrementRetryExhausted increments the retry exhausted counter by 1
func (m *Metrics) IncrementRetryExhausted() {
	if m == nil {
		return
	}
	m.RetryExhaustedTotal.Inc()
}

// IncrementFatalErrors counts a non-retryable failure of the given kind
func (m *Metrics) IncrementFatalErrors(kind string) {
	if m == nil {
		return
	}
	m.FatalErrorsTotal.WithLabelValues(kind).Inc()
}

// IncrementRecoveryPublished counts a recovery publish outcome
func (m *Metrics) IncrementRecoveryPublished(status string) {
	if m == nil {
		return
	}
	m.RecoveryPublishedTotal.WithLabelValues(status).Inc()
}

// ObservePublish records a publish outcome and its latency
func (m *Metrics) ObservePublish(mode, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.PublishTotal.WithLabelValues(mode, status).Inc()
	m.PublishDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
}
