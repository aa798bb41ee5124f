// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tubelytics"

var (
	// SessionCacheLookupsTotal tracks session search cache resolutions.
	// Labels:
	//   - result: hit, miss, error
	SessionCacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_cache_lookups_total",
			Help:      "Total number of session search cache lookups",
		},
		[]string{"result"},
	)

	// SessionCacheEvictionsTotal counts records dropped for capacity.
	SessionCacheEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_cache_evictions_total",
			Help:      "Total number of search records evicted for capacity",
		},
	)

	// SessionsActive is the number of sessions held in memory.
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of sessions currently held by the search cache",
		},
	)

	// BackendRequestsTotal tracks calls to the video backend.
	// Labels:
	//   - operation: search, videos
	//   - status: success, error
	BackendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Total number of video backend requests",
		},
		[]string{"operation", "status"},
	)

	// DispatchTotal tracks the terminal state of routed client requests.
	// Labels:
	//   - category: search, statistics, metadata, none
	//   - outcome: completed, failed, timed_out
	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_total",
			Help:      "Total number of routed client requests by outcome",
		},
		[]string{"category", "outcome"},
	)

	// PendingRequests is the number of dispatched requests awaiting a reply.
	PendingRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_requests",
			Help:      "Number of dispatched requests awaiting a worker reply",
		},
	)

	// WorkerRestartsTotal counts supervisor restarts of crashed workers.
	WorkerRestartsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_restarts_total",
			Help:      "Total number of worker restarts after a crash",
		},
		[]string{"category"},
	)

	// CacheOperationsTotal tracks video metadata cache operations (get, set, delete).
	// Labels:
	//   - operation: get, set, delete
	//   - status: hit, miss, success, error
	//   - cache_type: redis
	CacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_operations_total",
			Help:      "Total number of cache operations",
		},
		[]string{"operation", "status", "cache_type"},
	)

	// SingleflightRequestsTotal tracks singleflight behavior.
	// Labels:
	//   - group: session_search, video_lookup
	//   - result: initiated (new execution), shared (reused result)
	SingleflightRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "singleflight_requests_total",
			Help:      "Total number of singleflight requests",
		},
		[]string{"group", "result"},
	)
)

// Session cache lookup results.
const (
	LookupHit   = "hit"
	LookupMiss  = "miss"
	LookupError = "error"
)

// Backend operations and statuses.
const (
	BackendOpSearch = "search"
	BackendOpVideos = "videos"

	BackendStatusSuccess = "success"
	BackendStatusError   = "error"
)

// Dispatch outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeTimedOut  = "timed_out"
)

// Cache operation status constants.
const (
	CacheStatusHit     = "hit"
	CacheStatusMiss    = "miss"
	CacheStatusSuccess = "success"
	CacheStatusError   = "error"
)

// Cache operation type constants.
const (
	CacheOpGet    = "get"
	CacheOpSet    = "set"
	CacheOpDelete = "delete"
)

// Cache type constants.
const (
	CacheTypeRedis = "redis"
)

// Singleflight group and result constants.
const (
	GroupSessionSearch = "session_search"
	GroupVideoLookup   = "video_lookup"

	SingleflightInitiated = "initiated"
	SingleflightShared    = "shared"
)
