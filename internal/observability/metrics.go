package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every custom metric the API and the worker export.
type Metrics struct {
	// HTTP Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Domain Metrics
	AuthAttemptsTotal   *prometheus.CounterVec
	TodoOperationsTotal *prometheus.CounterVec

	// Cache (Redis) Metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Queue (RabbitMQ) Metrics
	QueueMessagesPublished *prometheus.CounterVec
	QueueMessagesConsumed  *prometheus.CounterVec
	QueuePublishFailures   *prometheus.CounterVec

	// Worker Metrics
	EventsProcessedTotal    *prometheus.CounterVec
	EventProcessingDuration *prometheus.HistogramVec
}

// NewMetrics registers all metrics against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		AuthAttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_attempts_total",
				Help: "Total number of register, login and refresh attempts",
			},
			[]string{"action", "outcome"},
		),

		TodoOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "todo_operations_total",
				Help: "Total number of todo service operations",
			},
			[]string{"operation", "outcome"},
		),

		CacheHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"key_type"},
		),

		CacheMissesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"key_type"},
		),

		QueueMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "queue_messages_published_total",
				Help: "Total number of messages published to the queue",
			},
			[]string{"queue_name"},
		),

		QueueMessagesConsumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "queue_messages_consumed_total",
				Help: "Total number of messages consumed from the queue",
			},
			[]string{"queue_name"},
		),

		QueuePublishFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "queue_publish_failures_total",
				Help: "Total number of messages that could not be published",
			},
			[]string{"queue_name"},
		),

		EventsProcessedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "todo_events_processed_total",
				Help: "Total number of todo events handled by the worker",
			},
			[]string{"event_type", "status"},
		),

		EventProcessingDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "todo_event_processing_duration_seconds",
				Help:    "Duration of todo event processing in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"event_type"},
		),
	}
}

// GlobalMetrics is the process-wide instance registered on the default registry.
var GlobalMetrics *Metrics

var initOnce sync.Once

// InitMetrics registers the global metrics once; later calls are no-ops.
func InitMetrics() {
	initOnce.Do(func() {
		GlobalMetrics = NewMetrics(prometheus.DefaultRegisterer)
	})
}

// The helpers below tolerate an uninitialised GlobalMetrics so services can
// run in tests without a registry.

func RecordAuthAttempt(action, outcome string) {
	if GlobalMetrics == nil {
		return
	}
	GlobalMetrics.AuthAttemptsTotal.WithLabelValues(action, outcome).Inc()
}

func RecordTodoOperation(operation, outcome string) {
	if GlobalMetrics == nil {
		return
	}
	GlobalMetrics.TodoOperationsTotal.WithLabelValues(operation, outcome).Inc()
}

func RecordCacheLookup(keyType string, hit bool) {
	if GlobalMetrics == nil {
		return
	}
	if hit {
		GlobalMetrics.CacheHitsTotal.WithLabelValues(keyType).Inc()
		return
	}
	GlobalMetrics.CacheMissesTotal.WithLabelValues(keyType).Inc()
}

func RecordPublish(queueName string, err error) {
	if GlobalMetrics == nil {
		return
	}
	if err != nil {
		GlobalMetrics.QueuePublishFailures.WithLabelValues(queueName).Inc()
		return
	}
	GlobalMetrics.QueueMessagesPublished.WithLabelValues(queueName).Inc()
}

func RecordConsumed(queueName string) {
	if GlobalMetrics == nil {
		return
	}
	GlobalMetrics.QueueMessagesConsumed.WithLabelValues(queueName).Inc()
}

func RecordEventProcessed(eventType, status string, seconds float64) {
	if GlobalMetrics == nil {
		return
	}
	GlobalMetrics.EventsProcessedTotal.WithLabelValues(eventType, status).Inc()
	GlobalMetrics.EventProcessingDuration.WithLabelValues(eventType).Observe(seconds)
}

// Outcome converts an error into a low-cardinality metric label.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
