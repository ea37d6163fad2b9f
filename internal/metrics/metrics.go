package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_platform_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_platform_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_platform_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Job queue and dispatch metrics
var (
	JobsEnqueuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_platform_jobs_enqueued_total",
			Help: "Total number of transcoding jobs accepted into the queue",
		},
	)

	JobsAdmittedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_platform_jobs_admitted_total",
			Help: "Total number of jobs that started a pipeline",
		},
	)

	JobsCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_platform_jobs_completed_total",
			Help: "Total number of jobs that reached a terminal state",
		},
		[]string{"status"}, // "success", "failed", "panic", "dropped"
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_platform_queue_depth",
			Help: "Number of jobs waiting for a pipeline slot",
		},
	)

	PipelinesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_platform_pipelines_in_flight",
			Help: "Number of pipelines currently running",
		},
	)

	PipelineCapacity = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_platform_pipeline_capacity",
			Help: "Maximum number of concurrently running pipelines",
		},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_platform_job_duration_seconds",
			Help:    "Wall time of a job's pipeline from admission to terminal state",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200, 3600},
		},
		[]string{"status"},
	)
)

// Pipeline stage metrics
var (
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_platform_stage_duration_seconds",
			Help:    "Duration of individual pipeline stages",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 600, 1800},
		},
		[]string{"stage"},
	)

	StageFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_platform_stage_failures_total",
			Help: "Total number of pipeline stage failures",
		},
		[]string{"stage"},
	)

	EngineInvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_platform_engine_invocations_total",
			Help: "Total number of media engine invocations",
		},
		[]string{"operation", "status"},
	)
)

// Upload metrics
var (
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_platform_uploads_total",
			Help: "Total number of upload requests by outcome",
		},
		[]string{"status"}, // "accepted", "invalid", "error"
	)

	UploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_platform_upload_bytes_total",
			Help: "Total bytes written to the upload directory",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_platform_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_platform_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_platform_db_connections_open",
			Help: "Number of open database connections",
		},
	)

	DBSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "video_platform_db_size_bytes",
			Help: "Size of SQLite database files in bytes",
		},
		[]string{"file"}, // "main", "wal", "shm"
	)
)

// Poster metrics
var (
	PosterGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_platform_poster_generations_total",
			Help: "Total number of poster generations by status",
		},
		[]string{"status"},
	)

	PosterGenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "video_platform_poster_generation_duration_seconds",
			Help:    "Time spent extracting and resizing a poster frame",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	PosterCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_platform_poster_cache_hits_total",
			Help: "Total number of poster cache hits",
		},
	)

	PosterCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_platform_poster_cache_misses_total",
			Help: "Total number of poster cache misses",
		},
	)
)

// Library metrics
var (
	VideosTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_platform_videos_total",
			Help: "Number of uploaded videos with stored metadata",
		},
	)

	VideoBytesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_platform_video_bytes",
			Help: "Total size in bytes of uploaded videos with stored metadata",
		},
	)
)

// App info
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "video_platform_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// Filesystem retry metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_platform_filesystem_retry_attempts_total",
			Help: "Retries of filesystem operations after a stale NFS handle",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_platform_filesystem_retry_success_total",
			Help: "Filesystem operations that succeeded after retrying",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_platform_filesystem_retry_failures_total",
			Help: "Filesystem operations that failed after exhausting retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_platform_filesystem_stale_errors_total",
			Help: "ESTALE errors seen by filesystem operations",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_platform_filesystem_retry_duration_seconds",
			Help:    "Duration of filesystem operations including retries",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 2},
		},
		[]string{"operation", "volume"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_platform_memory_usage_ratio",
			Help: "Go heap allocation as a ratio of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_platform_memory_paused",
			Help: "1 while job admission is paused for memory pressure",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_platform_memory_gc_pauses_total",
			Help: "Times job admission was paused for memory pressure",
		},
	)
)

// Library reconciliation metrics
var (
	LibrarySyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_platform_library_sync_runs_total",
			Help: "Library reconciliation runs by outcome",
		},
		[]string{"status"},
	)

	LibrarySyncChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_platform_library_sync_changes_total",
			Help: "Metadata rows added or removed by library reconciliation",
		},
		[]string{"change"},
	)

	LibrarySyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "video_platform_library_sync_duration_seconds",
			Help:    "Duration of library reconciliation runs",
			Buckets: prometheus.DefBuckets,
		},
	)

	LibrarySyncLastRun = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "video_platform_library_sync_last_run_timestamp",
			Help: "Unix time of the last completed library reconciliation",
		},
	)
)

// Streaming metrics
var (
	StreamWriteTimeouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_platform_stream_write_timeouts_total",
			Help: "File responses aborted because the client stopped reading",
		},
		[]string{"volume"},
	)
)
