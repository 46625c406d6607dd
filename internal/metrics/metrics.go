package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Chat agent metrics
	ChatMessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskbuddy_chat_messages_processed_total",
			Help: "Total number of chat messages processed, by resolved intent",
		},
		[]string{"intent", "success"},
	)

	ChatProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskbuddy_chat_processing_duration_seconds",
			Help:    "End-to-end chat message processing duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"intent"},
	)

	ExtractorFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taskbuddy_extractor_fallbacks_total",
			Help: "Times the rule-based extractor ran because the LLM path failed",
		},
	)

	ResolverTierHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskbuddy_resolver_tier_hits_total",
			Help: "Task reference resolutions by winning match tier",
		},
		[]string{"tier"},
	)

	// Completion provider metrics
	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskbuddy_provider_calls_total",
			Help: "Outbound completion provider calls by status",
		},
		[]string{"status"},
	)

	ProviderCallDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taskbuddy_provider_call_duration_seconds",
			Help:    "Completion provider call duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	// WebSocket metrics
	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "taskbuddy_websocket_clients",
			Help: "Number of connected websocket clients",
		},
	)

	BroadcastsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskbuddy_broadcasts_sent_total",
			Help: "Total sync events broadcast to websocket clients",
		},
		[]string{"event_type"},
	)

	BroadcastsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taskbuddy_broadcasts_dropped_total",
			Help: "Sync events dropped because a client send buffer was full",
		},
	)

	// Task store metrics
	TasksCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taskbuddy_tasks_created_total",
			Help: "Total number of tasks created",
		},
	)

	TasksCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taskbuddy_tasks_completed_total",
			Help: "Total number of tasks marked complete",
		},
	)

	TasksDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taskbuddy_tasks_deleted_total",
			Help: "Total number of tasks deleted",
		},
	)

	// Session metrics
	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taskbuddy_sessions_created_total",
			Help: "Total number of conversation sessions created",
		},
	)

	SessionCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taskbuddy_session_cache_hits_total",
			Help: "Session lookups served from the local cache",
		},
	)

	SessionCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taskbuddy_session_cache_misses_total",
			Help: "Session lookups that fell through to Redis",
		},
	)

	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskbuddy_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taskbuddy_rate_limit_exceeded_total",
			Help: "Requests rejected by the per-user rate limiter",
		},
	)

	NotificationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taskbuddy_notifications_created_total",
			Help: "Total number of notifications written",
		},
	)
)
