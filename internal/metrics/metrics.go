package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PostTransitions counts lifecycle transitions by target status
	PostTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelflow_post_transitions_total",
			Help: "Total number of post status transitions",
		},
		[]string{"status"},
	)

	// PublishFailures counts classified publish failures
	PublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelflow_publish_failures_total",
			Help: "Total number of failed publish attempts by error code",
		},
		[]string{"code", "retryable"},
	)

	// PublishDuration tracks how long one publish attempt takes end to end
	PublishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reelflow_publish_duration_seconds",
			Help:    "Publish attempt duration in seconds",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 90, 120, 180},
		},
		[]string{"outcome"},
	)

	// SchedulerItems counts per-item outcomes of orchestrator runs
	SchedulerItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelflow_scheduler_items_total",
			Help: "Total number of items handled by scheduler runs",
		},
		[]string{"run", "status"},
	)

	// SchedulerRuns counts orchestrator runs
	SchedulerRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelflow_scheduler_runs_total",
			Help: "Total number of scheduler runs",
		},
		[]string{"run", "outcome"},
	)

	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelflow_token_refreshes_total",
			Help: "Total number of Instagram token refresh checks",
		},
		[]string{"outcome"},
	)
)
