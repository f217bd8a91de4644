// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RankingRunsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ranking_runs_started_total",
			Help: "Total number of ranking runs submitted",
		},
	)

	RankingRunsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ranking_runs_completed_total",
			Help: "Total number of ranking runs that reached the done state",
		},
	)

	RankingRunsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ranking_runs_failed_total",
			Help: "Total number of ranking runs that reached the error state",
		},
		[]string{"stage"},
	)

	RankingRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ranking_run_duration_seconds",
			Help:    "Duration of ranking runs from submission to terminal state",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)

	RankingQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ranking_queue_depth",
			Help: "Number of ranking runs waiting in the executor queue",
		},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ranking_cache_hits_total",
			Help: "Stable-key cache hits on the synchronous ranked-job read",
		},
		[]string{"outcome"},
	)
)
