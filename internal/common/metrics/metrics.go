// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	SearchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_requests_total",
			Help: "Total number of search requests by lane",
		},
		[]string{"lane"},
	)

	SearchBlocked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_blocked_total",
			Help: "Total number of queries blocked by security policy",
		},
		[]string{"signature"},
	)

	SearchWavesExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_waves_executed_total",
			Help: "Total number of wave steps executed",
		},
		[]string{"wave", "tier"},
	)

	SearchRowsReturned = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "search_rows_returned",
			Help:    "Number of ranked rows returned per request",
			Buckets: []float64{0, 1, 5, 10, 20, 50},
		},
		[]string{"lane"},
	)

	SearchEarlyExits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "search_early_exits_total",
			Help: "Total number of requests that stopped before exhausting the plan",
		},
	)

	SearchPartials = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "search_partial_results_total",
			Help: "Total number of requests answered with partial results",
		},
	)

	SearchCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "search_cache_hits_total",
			Help: "Total number of responses served from the cache",
		},
	)

	SearchCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "search_cache_misses_total",
			Help: "Total number of cache lookups that missed",
		},
	)

	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "search_duration_seconds",
			Help: "End-to-end search duration in seconds",
		},
		[]string{"lane"},
	)
)
