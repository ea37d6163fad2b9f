// Package metrics provides Prometheus instrumentation for the video platform.
//
// All metrics are registered with the default registry through promauto and
// are prefixed with "video_platform_".
//
// # Metric Categories
//
// ## HTTP Metrics
//
//   - HTTPRequestsTotal: Counter of total requests by method, path, and status
//   - HTTPRequestDuration: Histogram of request duration by method and path
//   - HTTPRequestsInFlight: Gauge of currently processing requests
//
// ## Job Metrics
//
// Track the queue, the dispatcher, and pipeline outcomes:
//   - JobsEnqueuedTotal, JobsAdmittedTotal: Counters of accepted and started jobs
//   - JobsCompletedTotal: Counter by status (success/failed/panic/dropped)
//   - QueueDepth: Gauge of jobs waiting for a slot
//   - PipelinesInFlight, PipelineCapacity: Gauges of slot usage
//   - JobDuration: Histogram of pipeline wall time by status
//   - StageDuration, StageFailuresTotal: Per-stage timing and failures
//   - EngineInvocationsTotal: Counter of ffmpeg runs by operation and status
//
// ## Upload, Poster and Library Metrics
//
//   - UploadsTotal, UploadBytesTotal
//   - PosterGenerationsTotal, PosterGenerationDuration, PosterCacheHits, PosterCacheMisses
//   - VideosTotal, VideoBytesTotal: refreshed by the [Collector]
//
// ## Database Metrics
//
//   - DBQueryTotal, DBQueryDuration by operation
//   - DBConnectionsOpen
//   - DBSizeBytes for the main, WAL and SHM files
//
// ## Runtime Support Metrics
//
//   - FilesystemRetryAttempts, FilesystemRetrySuccess, FilesystemRetryFailures,
//     FilesystemStaleErrors, FilesystemRetryDuration by operation and volume
//   - MemoryUsageRatio, MemoryPaused, MemoryGCPauses from the admission gate
//   - LibrarySyncRunsTotal, LibrarySyncChangesTotal, LibrarySyncDuration, LibrarySyncLastRun
//   - StreamWriteTimeouts by volume
//
// # Wiring
//
// [JobObserver] implements both dispatcher.Observer and pipeline.Observer.
// [InstrumentEngine] wraps a transcoder.Engine to count invocations:
//
//	observer := metrics.NewJobObserver()
//	engine := metrics.InstrumentEngine(transcoder.New(cfg.FFmpegPath))
//	p := pipeline.New(cfg.ProcessedDir, engine, observer)
//	d := dispatcher.New(queue, lim, p, observer)
//
// # Prometheus Queries
//
// Failure ratio of finished jobs:
//
//	sum(rate(video_platform_jobs_completed_total{status!="success"}[1h])) /
//	sum(rate(video_platform_jobs_completed_total[1h]))
//
// Slot saturation:
//
//	video_platform_pipelines_in_flight / video_platform_pipeline_capacity
//
// P95 scaled render time:
//
//	histogram_quantile(0.95, sum(rate(video_platform_stage_duration_seconds_bucket{stage="rendering_scaled"}[1h])) by (le))
package metrics
