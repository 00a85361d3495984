package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carechat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "carechat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "carechat_rate_limit_hits_total",
			Help: "Total requests rejected by the rate limiter",
		},
	)

	// Connection metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "carechat_ws_connections",
			Help: "Live websocket connections",
		},
	)

	OnlineUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "carechat_online_users",
			Help: "Users present in the registry",
		},
	)

	WSEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carechat_ws_events_total",
			Help: "Inbound websocket events by name and outcome",
		},
		[]string{"event", "outcome"}, // outcome: ok, error
	)

	// Business metrics
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carechat_messages_sent_total",
			Help: "Messages persisted, by delivery mode",
		},
		[]string{"delivery"}, // "live" or "queued"
	)

	MessagesMarkedRead = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carechat_messages_marked_read_total",
			Help: "Messages flipped to read, by operation",
		},
		[]string{"op"},
	)

	SessionsSuperseded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "carechat_sessions_superseded_total",
			Help: "Connections replaced by a newer join of the same user",
		},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carechat_store_errors_total",
			Help: "Failed store calls by operation",
		},
		[]string{"op"},
	)
)
