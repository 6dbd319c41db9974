package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NotificationsCreated counts persisted notification rows by type.
	NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "huddle_notifications_created_total",
		Help: "Total number of notification rows written",
	}, []string{"type"})

	// NotificationPushTotal counts push job outcomes (delivered, failed, no_device, disabled, dropped).
	NotificationPushTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "huddle_notifications_push_total",
		Help: "Total number of push jobs by result",
	}, []string{"result"})

	// NotificationQueueDepth is the number of push jobs waiting for a worker.
	NotificationQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "huddle_notifications_queue_depth",
		Help: "Number of push jobs waiting in the dispatcher queue",
	})

	// NotificationPushLatency records how long a push job takes across all device tokens.
	NotificationPushLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "huddle_notifications_push_latency_seconds",
		Help:    "Push job latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// FriendshipTransitions counts friend request state changes by resulting status.
	FriendshipTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "huddle_friendship_transitions_total",
		Help: "Total number of friend request state changes",
	}, []string{"status"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "huddle_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// WebSocketConnectionsTotal is the gauge of total WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "huddle_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "huddle_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

// ObserveQuery records how long one statement against table took.
func ObserveQuery(operation, table string, elapsed time.Duration) {
	DatabaseQueryLatency.WithLabelValues(operation, table).Observe(elapsed.Seconds())
}
