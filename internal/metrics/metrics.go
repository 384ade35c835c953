package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Run metrics
	RunsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "horizon_runs_started_total",
			Help: "Total number of research runs started",
		},
		[]string{"mode"},
	)

	RunsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "horizon_runs_completed_total",
			Help: "Total number of research runs completed",
		},
		[]string{"mode", "status"},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "horizon_run_duration_seconds",
			Help:    "Research run duration in seconds",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"mode"},
	)

	// Task metrics
	TasksExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "horizon_tasks_executed_total",
			Help: "Total number of research tasks executed",
		},
		[]string{"status"},
	)

	PlanFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "horizon_plan_fallbacks_total",
			Help: "Runs that fell back to a single default task after planning failed",
		},
	)

	QualityHeuristicFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "horizon_quality_heuristic_fallbacks_total",
			Help: "Quality evaluations that fell back to the deterministic heuristic",
		},
	)

	// Content service metrics
	ContentRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "horizon_content_requests_total",
			Help: "Total requests issued to the content service",
		},
		[]string{"operation", "status"},
	)

	ContentRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "horizon_content_request_duration_seconds",
			Help:    "Content service request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Session metrics
	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "horizon_sessions_created_total",
			Help: "Total number of sessions created",
		},
	)

	SessionCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "horizon_session_cache_size",
			Help: "Number of sessions held in the local cache",
		},
	)

	SessionStoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "horizon_session_store_errors_total",
			Help: "Session store operation failures",
		},
		[]string{"operation"},
	)

	// Archive metrics
	ArchiveQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "horizon_archive_queue_depth",
			Help: "Pending writes in the archive queue",
		},
	)

	ArchiveWriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "horizon_archive_write_errors_total",
			Help: "Failed archive writes",
		},
	)

	// Streaming metrics
	ProgressEventsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "horizon_progress_events_published_total",
			Help: "Progress events published to the streaming hub",
		},
	)

	ProgressSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "horizon_progress_subscribers",
			Help: "Active progress stream subscribers",
		},
	)
)
