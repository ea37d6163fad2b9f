package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/yrk1n/video-platform/internal/dispatcher"
	"github.com/yrk1n/video-platform/internal/filesystem"
	"github.com/yrk1n/video-platform/internal/jobs"
	"github.com/yrk1n/video-platform/internal/pipeline"
	"github.com/yrk1n/video-platform/internal/transcoder"
)

// JobObserver implements dispatcher.Observer and pipeline.Observer using the
// Prometheus metrics declared in this package.
type JobObserver struct{}

// NewJobObserver creates an observer that records job and stage metrics.
func NewJobObserver() *JobObserver {
	return &JobObserver{}
}

var (
	_ dispatcher.Observer = (*JobObserver)(nil)
	_ pipeline.Observer   = (*JobObserver)(nil)
)

func (o *JobObserver) JobEnqueued(jobs.Job) {
	JobsEnqueuedTotal.Inc()
}

func (o *JobObserver) JobAdmitted(jobs.Job) {
	JobsAdmittedTotal.Inc()
}

func (o *JobObserver) JobFinished(_ jobs.Job, elapsed time.Duration, err error) {
	status := JobStatus(err)
	JobsCompletedTotal.WithLabelValues(status).Inc()
	if status != StatusDropped {
		JobDuration.WithLabelValues(status).Observe(elapsed.Seconds())
	}
}

func (o *JobObserver) StageStarted(jobs.Job, pipeline.Stage) {}

func (o *JobObserver) StageFinished(_ jobs.Job, stage pipeline.Stage, elapsed time.Duration, err error) {
	StageDuration.WithLabelValues(stage.String()).Observe(elapsed.Seconds())
	if err != nil {
		StageFailuresTotal.WithLabelValues(stage.String()).Inc()
	}
}

// JobStatus maps a pipeline result to its outcome label.
func JobStatus(err error) string {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, dispatcher.ErrNotAdmitted):
		return StatusDropped
	case errors.Is(err, dispatcher.ErrPipelinePanic):
		return StatusPanic
	default:
		return StatusFailed
	}
}

// instrumentedEngine counts engine invocations by operation and outcome.
type instrumentedEngine struct {
	next transcoder.Engine
}

// InstrumentEngine wraps an engine so every invocation is counted.
func InstrumentEngine(next transcoder.Engine) transcoder.Engine {
	return &instrumentedEngine{next: next}
}

func (e *instrumentedEngine) Run(ctx context.Context, input, output string, op transcoder.Operation) error {
	err := e.next.Run(ctx, input, output, op)
	status := "success"
	switch {
	case errors.Is(err, transcoder.ErrNoOutput):
		status = "no_output"
	case err != nil:
		status = "error"
	}
	EngineInvocationsTotal.WithLabelValues(string(op.Kind), status).Inc()
	return err
}

// filesystemObserver implements filesystem.Observer using the Prometheus
// metrics declared in this package.
type filesystemObserver struct{}

// NewFilesystemObserver creates an observer that records filesystem retry
// metrics.
func NewFilesystemObserver() filesystem.Observer {
	return &filesystemObserver{}
}

func (o *filesystemObserver) ObserveRetryAttempt(op, volume string) {
	FilesystemRetryAttempts.WithLabelValues(op, volume).Inc()
}

func (o *filesystemObserver) ObserveRetrySuccess(op, volume string) {
	FilesystemRetrySuccess.WithLabelValues(op, volume).Inc()
}

func (o *filesystemObserver) ObserveRetryFailure(op, volume string) {
	FilesystemRetryFailures.WithLabelValues(op, volume).Inc()
}

func (o *filesystemObserver) ObserveRetryDuration(op, volume string, durationSeconds float64) {
	FilesystemRetryDuration.WithLabelValues(op, volume).Observe(durationSeconds)
}

func (o *filesystemObserver) ObserveStaleError(op, volume string) {
	FilesystemStaleErrors.WithLabelValues(op, volume).Inc()
}
