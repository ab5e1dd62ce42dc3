package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all the application metrics
type Metrics struct {
	// HTTP request metrics
	HTTPRequestTotal    *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Engagement transaction metrics
	EngagementTxTotal    *prometheus.CounterVec
	EngagementTxDuration *prometheus.HistogramVec

	// Event publishing metrics
	EventPublishTotal *prometheus.CounterVec

	// Feed metrics
	GestureCommandsTotal    *prometheus.CounterVec
	SnapshotDeliveriesTotal *prometheus.CounterVec
	ActiveSessions          prometheus.Gauge
}

// Global metrics instance with mutex for thread safety
var (
	globalMetrics *Metrics
	metricsMutex  sync.Mutex
)

// NewMetrics returns the process-wide Metrics, creating and registering it on first use.
func NewMetrics() *Metrics {
	metricsMutex.Lock()
	defer metricsMutex.Unlock()

	if globalMetrics != nil {
		return globalMetrics
	}

	m := &Metrics{
		HTTPRequestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),

		EngagementTxTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reels_engagement_transactions_total",
			Help: "Total number of engagement mutations by outcome",
		}, []string{"operation", "status"}),

		EngagementTxDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reels_engagement_transaction_duration_seconds",
			Help:    "Engagement mutation duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "status"}),

		EventPublishTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "event_publish_total",
			Help: "Total number of event publish operations",
		}, []string{"event_type", "status"}),

		GestureCommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reels_gesture_commands_total",
			Help: "Navigation commands emitted by the gesture recognizer",
		}, []string{"direction"}),

		SnapshotDeliveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reels_snapshot_deliveries_total",
			Help: "Collection snapshots delivered to feed sessions",
		}, []string{"collection"}),

		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reels_active_sessions",
			Help: "Number of open feed sessions",
		}),
	}

	m.HTTPRequestTotal = registerOrGet(m.HTTPRequestTotal).(*prometheus.CounterVec)
	m.HTTPRequestDuration = registerOrGet(m.HTTPRequestDuration).(*prometheus.HistogramVec)
	m.EngagementTxTotal = registerOrGet(m.EngagementTxTotal).(*prometheus.CounterVec)
	m.EngagementTxDuration = registerOrGet(m.EngagementTxDuration).(*prometheus.HistogramVec)
	m.EventPublishTotal = registerOrGet(m.EventPublishTotal).(*prometheus.CounterVec)
	m.GestureCommandsTotal = registerOrGet(m.GestureCommandsTotal).(*prometheus.CounterVec)
	m.SnapshotDeliveriesTotal = registerOrGet(m.SnapshotDeliveriesTotal).(*prometheus.CounterVec)
	m.ActiveSessions = registerOrGet(m.ActiveSessions).(prometheus.Gauge)

	globalMetrics = m
	return m
}

// registerOrGet tries to register a metric, returns the existing one if already registered
func registerOrGet(c prometheus.Collector) prometheus.Collector {
	if err := prometheus.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
	}
	return c
}
