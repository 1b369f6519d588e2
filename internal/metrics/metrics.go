package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediaconnect_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediaconnect_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Chat metrics
	ConversationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mediaconnect_conversations_created_total",
			Help: "Total conversations created on first contact",
		},
	)

	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mediaconnect_messages_sent_total",
			Help: "Total messages appended",
		},
	)

	SummaryUpdatesFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mediaconnect_summary_updates_failed_total",
			Help: "Messages whose conversation summary could not be updated",
		},
	)

	// Subscription metrics
	SnapshotsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediaconnect_snapshots_delivered_total",
			Help: "Snapshots delivered to subscribers",
		},
		[]string{"stream"}, // "conversations", "messages" or "feed"
	)

	SubscriptionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediaconnect_subscription_errors_total",
			Help: "Snapshot load or watch failures",
		},
		[]string{"stream"},
	)

	// Directory metrics
	SearchQueries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mediaconnect_search_queries_total",
			Help: "Directory prefix queries issued",
		},
	)

	SearchInputsCoalesced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mediaconnect_search_inputs_coalesced_total",
			Help: "Search inputs superseded before their query ran",
		},
	)

	// Feed metrics
	PostsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mediaconnect_posts_published_total",
			Help: "Total posts published",
		},
	)

	PostsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mediaconnect_posts_deleted_total",
			Help: "Total posts deleted",
		},
	)

	LikeToggles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediaconnect_like_toggles_total",
			Help: "Like toggles by resulting action",
		},
		[]string{"action"}, // "like" or "unlike"
	)

	// Session metrics
	WSSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediaconnect_ws_sessions",
			Help: "Open websocket sessions",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediaconnect_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	// Infrastructure metrics
	RedisLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mediaconnect_redis_latency_seconds",
			Help:    "Redis operation latency",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05},
		},
	)

	PostgresLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mediaconnect_postgres_latency_seconds",
			Help:    "PostgreSQL query latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1},
		},
	)
)
