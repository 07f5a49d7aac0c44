package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec

	// Scheduling metrics
	BookabilityChecks *prometheus.CounterVec
	PermissionDenials *prometheus.CounterVec

	// Outbox related metrics
	OutboxEventsProcessed   prometheus.Counter
	OutboxEventsFailed      prometheus.Counter
	OutboxProcessingLatency prometheus.Histogram
	OutboxRetries           *prometheus.CounterVec

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
	DatabaseLatency    *prometheus.HistogramVec

	// Redis metrics
	RedisOperations *prometheus.CounterVec
	RedisLatency    *prometheus.HistogramVec

	// Audit retention
	AuditLogsPurged prometheus.Counter
}

// NewMetrics creates all application metrics and registers them with reg.
// A nil reg registers with the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),

		BookabilityChecks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookability_checks_total",
			Help:      "Bookability checks by resulting reason",
		}, []string{"result"}),
		PermissionDenials: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "permission_denials_total",
			Help:      "Requests rejected by the authorization gate",
		}, []string{"reason"}),

		OutboxEventsProcessed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_processed_total",
			Help:      "Total number of successfully processed outbox events",
		}),
		OutboxEventsFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_failed_total",
			Help:      "Total number of failed outbox events",
		}),
		OutboxProcessingLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "outbox_processing_duration_seconds",
			Help:      "Time spent processing outbox events",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		OutboxRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_retry_attempts_total",
			Help:      "Total number of retry attempts for outbox events",
		}, []string{"event_type"}),

		DatabaseOperations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
		DatabaseLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "database_operation_duration_seconds",
			Help:      "Duration of database operations",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"operation"}),

		RedisOperations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redis_operations_total",
			Help:      "Total number of Redis operations",
		}, []string{"operation", "status"}),
		RedisLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "redis_operation_duration_seconds",
			Help:      "Duration of Redis operations",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5},
		}, []string{"operation"}),

		AuditLogsPurged: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_logs_purged_total",
			Help:      "Audit log rows removed by retention cleanup",
		}),
	}
}

// ObserveDB records one database operation. Safe on a nil receiver.
func (m *Metrics) ObserveDB(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.DatabaseLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	m.DatabaseOperations.WithLabelValues(operation, statusLabel(err)).Inc()
}

// ObserveRedis records one Redis operation. Safe on a nil receiver.
func (m *Metrics) ObserveRedis(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.RedisLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	m.RedisOperations.WithLabelValues(operation, statusLabel(err)).Inc()
}

// Bookability counts a checker outcome. Safe on a nil receiver.
func (m *Metrics) Bookability(result string) {
	if m == nil {
		return
	}
	m.BookabilityChecks.WithLabelValues(result).Inc()
}

// Denied counts a gate rejection. Safe on a nil receiver.
func (m *Metrics) Denied(reason string) {
	if m == nil {
		return
	}
	m.PermissionDenials.WithLabelValues(reason).Inc()
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
