// Package metrics declares the Prometheus collectors exported on the
// metrics port.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "statuspage"

var (
	// HTTPRequestDuration tracks HTTP request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "route", "status_code"},
	)

	// HTTPRequestsInFlight tracks requests currently being served, open
	// WebSocket subscriptions included.
	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "HTTP requests currently being served",
		},
	)

	// DBPoolAcquires counts connections handed out by the pool.
	DBPoolAcquires = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "pool_acquires",
			Help:      "Cumulative successful connection acquisitions from the pool",
		},
	)

	// DBPoolConnections tracks database connection pool state.
	DBPoolConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "pool_connections",
			Help:      "Number of database connections by state",
		},
		[]string{"state"},
	)

	// LiveSubscribers tracks active push subscriptions by topic.
	LiveSubscribers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "subscribers",
			Help:      "Number of active change subscriptions by topic",
		},
		[]string{"topic"},
	)

	// LiveDroppedSubscribers counts subscriptions closed because they fell behind.
	LiveDroppedSubscribers = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "dropped_subscribers_total",
			Help:      "Subscriptions closed because their buffer overflowed",
		},
	)

	// LiveChangesPublished counts change events fanned out to subscribers.
	LiveChangesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "changes_total",
			Help:      "Change events delivered to the hub by topic",
		},
		[]string{"topic"},
	)

	// StatusCacheRequests counts public status summary lookups by result.
	StatusCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "status",
			Name:      "cache_requests_total",
			Help:      "Status summary cache lookups by result (hit or miss)",
		},
		[]string{"result"},
	)

	// NotificationQueueSize tracks queue rows by status.
	NotificationQueueSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "queue_size",
			Help:      "Notification queue rows by status",
		},
		[]string{"status"},
	)

	// NotificationDeliveries counts delivery attempts by channel type and outcome
	// (sent, retry or failed).
	NotificationDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "deliveries_total",
			Help:      "Notification delivery attempts by channel type and outcome",
		},
		[]string{"channel_type", "outcome"},
	)

	// NotificationSendDuration tracks successful webhook calls.
	NotificationSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "send_duration_seconds",
			Help:      "Time spent delivering one notification",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"channel_type"},
	)
)
