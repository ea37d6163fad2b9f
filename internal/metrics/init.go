package metrics

import (
	"github.com/yrk1n/video-platform/internal/pipeline"
	"github.com/yrk1n/video-platform/internal/transcoder"
)

// Job outcome labels.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusPanic   = "panic"
	StatusDropped = "dropped"
)

// Volumes are the filesystem volume labels used by retry metrics.
var Volumes = []string{"uploads", "processed", "cache", "database", "unknown"}

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	// --- Job outcomes ---
	for _, status := range []string{StatusSuccess, StatusFailed, StatusPanic, StatusDropped} {
		JobsCompletedTotal.WithLabelValues(status)
	}
	for _, status := range []string{StatusSuccess, StatusFailed, StatusPanic} {
		JobDuration.WithLabelValues(status)
	}

	// --- Pipeline stages ---
	for _, stage := range pipeline.WorkStages() {
		StageDuration.WithLabelValues(stage.String())
		StageFailuresTotal.WithLabelValues(stage.String())
	}

	// --- Engine operations ---
	for _, kind := range []transcoder.Kind{transcoder.KindNormalize, transcoder.KindRemux, transcoder.KindScale} {
		EngineInvocationsTotal.WithLabelValues(string(kind), "success")
		EngineInvocationsTotal.WithLabelValues(string(kind), "error")
		EngineInvocationsTotal.WithLabelValues(string(kind), "no_output")
	}

	// --- Uploads ---
	for _, status := range []string{"accepted", "invalid", "error"} {
		UploadsTotal.WithLabelValues(status)
	}

	// --- Posters ---
	for _, status := range []string{"success", "error", "not_ready"} {
		PosterGenerationsTotal.WithLabelValues(status)
	}

	// --- DB query operations ---
	for _, op := range []string{"migrate", "upsert_video", "get_video",
		"list_videos", "delete_video", "calculate_stats"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	for _, file := range []string{"main", "wal", "shm"} {
		DBSizeBytes.WithLabelValues(file)
	}

	// --- Filesystem retry metrics (per operation x volume) ---
	for _, op := range []string{"stat", "open", "readdir", "rename"} {
		for _, vol := range Volumes {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}

	// --- Library reconciliation ---
	for _, status := range []string{"success", "error"} {
		LibrarySyncRunsTotal.WithLabelValues(status)
	}
	for _, change := range []string{"added", "removed"} {
		LibrarySyncChangesTotal.WithLabelValues(change)
	}

	for _, vol := range []string{"uploads", "processed"} {
		StreamWriteTimeouts.WithLabelValues(vol)
	}
}
