package metrics

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/yrk1n/video-platform/internal/dispatcher"
	"github.com/yrk1n/video-platform/internal/jobs"
	"github.com/yrk1n/video-platform/internal/pipeline"
	"github.com/yrk1n/video-platform/internal/transcoder"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		t.Fatalf("Failed to read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		t.Fatalf("Failed to read gauge: %v", err)
	}
	return m.GetGauge().GetValue()
}

func TestMetricsExist(t *testing.T) {
	tests := []struct {
		name   string
		metric interface{}
	}{
		{"HTTPRequestsTotal", HTTPRequestsTotal},
		{"HTTPRequestDuration", HTTPRequestDuration},
		{"HTTPRequestsInFlight", HTTPRequestsInFlight},
		{"JobsEnqueuedTotal", JobsEnqueuedTotal},
		{"JobsAdmittedTotal", JobsAdmittedTotal},
		{"JobsCompletedTotal", JobsCompletedTotal},
		{"QueueDepth", QueueDepth},
		{"PipelinesInFlight", PipelinesInFlight},
		{"PipelineCapacity", PipelineCapacity},
		{"JobDuration", JobDuration},
		{"StageDuration", StageDuration},
		{"StageFailuresTotal", StageFailuresTotal},
		{"EngineInvocationsTotal", EngineInvocationsTotal},
		{"DBQueryTotal", DBQueryTotal},
		{"DBSizeBytes", DBSizeBytes},
		{"PosterGenerationsTotal", PosterGenerationsTotal},
		{"VideosTotal", VideosTotal},
		{"FilesystemRetryAttempts", FilesystemRetryAttempts},
		{"FilesystemRetryDuration", FilesystemRetryDuration},
		{"MemoryUsageRatio", MemoryUsageRatio},
		{"MemoryPaused", MemoryPaused},
		{"LibrarySyncRunsTotal", LibrarySyncRunsTotal},
		{"LibrarySyncLastRun", LibrarySyncLastRun},
		{"StreamWriteTimeouts", StreamWriteTimeouts},
		{"AppInfo", AppInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}

func TestInitializeMetricsDoesNotPanic(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("InitializeMetrics panicked: %v", r)
		}
	}()
	InitializeMetrics()
	InitializeMetrics()
}

func TestJobStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, StatusSuccess},
		{"stage failure", &pipeline.StageError{Stage: pipeline.StageRenderingNative, Err: errors.New("x")}, StatusFailed},
		{"panic", fmt.Errorf("%w: boom", dispatcher.ErrPipelinePanic), StatusPanic},
		{"dropped", dispatcher.ErrNotAdmitted, StatusDropped},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := JobStatus(tt.err); got != tt.want {
				t.Errorf("JobStatus(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestJobObserverCounts(t *testing.T) {
	o := NewJobObserver()
	job := jobs.New("/uploads/a.mp4", "a.mp4")

	enqueued := counterValue(t, JobsEnqueuedTotal)
	admitted := counterValue(t, JobsAdmittedTotal)
	failed := counterValue(t, JobsCompletedTotal.WithLabelValues(StatusFailed))
	stageFailures := counterValue(t, StageFailuresTotal.WithLabelValues("rendering_scaled"))

	o.JobEnqueued(job)
	o.JobAdmitted(job)
	o.StageStarted(job, pipeline.StageRenderingScaled)
	o.StageFinished(job, pipeline.StageRenderingScaled, time.Second, errors.New("exit status 1"))
	o.JobFinished(job, 2*time.Second, errors.New("exit status 1"))

	if got := counterValue(t, JobsEnqueuedTotal) - enqueued; got != 1 {
		t.Errorf("Expected JobsEnqueuedTotal +1, got +%v", got)
	}
	if got := counterValue(t, JobsAdmittedTotal) - admitted; got != 1 {
		t.Errorf("Expected JobsAdmittedTotal +1, got +%v", got)
	}
	if got := counterValue(t, JobsCompletedTotal.WithLabelValues(StatusFailed)) - failed; got != 1 {
		t.Errorf("Expected failed jobs +1, got +%v", got)
	}
	if got := counterValue(t, StageFailuresTotal.WithLabelValues("rendering_scaled")) - stageFailures; got != 1 {
		t.Errorf("Expected rendering_scaled failures +1, got +%v", got)
	}
}

type stubEngine struct {
	err error
}

func (s stubEngine) Run(context.Context, string, string, transcoder.Operation) error {
	return s.err
}

func TestFilesystemObserver(t *testing.T) {
	obs := NewFilesystemObserver()
	attempts := FilesystemRetryAttempts.WithLabelValues("stat", "uploads")
	stale := FilesystemStaleErrors.WithLabelValues("stat", "uploads")
	success := FilesystemRetrySuccess.WithLabelValues("stat", "uploads")
	failures := FilesystemRetryFailures.WithLabelValues("stat", "uploads")

	beforeAttempts := counterValue(t, attempts)
	beforeStale := counterValue(t, stale)
	beforeSuccess := counterValue(t, success)
	beforeFailures := counterValue(t, failures)

	obs.ObserveStaleError("stat", "uploads")
	obs.ObserveRetryAttempt("stat", "uploads")
	obs.ObserveRetrySuccess("stat", "uploads")
	obs.ObserveRetryFailure("stat", "uploads")
	obs.ObserveRetryDuration("stat", "uploads", 0.01)

	if got := counterValue(t, attempts) - beforeAttempts; got != 1 {
		t.Errorf("Expected 1 retry attempt, got %v", got)
	}
	if got := counterValue(t, stale) - beforeStale; got != 1 {
		t.Errorf("Expected 1 stale error, got %v", got)
	}
	if got := counterValue(t, success) - beforeSuccess; got != 1 {
		t.Errorf("Expected 1 retry success, got %v", got)
	}
	if got := counterValue(t, failures) - beforeFailures; got != 1 {
		t.Errorf("Expected 1 retry failure, got %v", got)
	}
}

func TestInstrumentEngine(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status string
	}{
		{"success", nil, "success"},
		{"failure", &transcoder.EngineError{Op: transcoder.Remux(), Err: errors.New("exit status 1")}, "error"},
		{"no output", transcoder.ErrNoOutput, "no_output"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := EngineInvocationsTotal.WithLabelValues(string(transcoder.KindRemux), tt.status)
			before := counterValue(t, c)

			err := InstrumentEngine(stubEngine{err: tt.err}).Run(context.Background(), "in", "out", transcoder.Remux())
			if !errors.Is(err, tt.err) {
				t.Errorf("Expected error %v to pass through, got %v", tt.err, err)
			}
			if got := counterValue(t, c) - before; got != 1 {
				t.Errorf("Expected %s count +1, got +%v", tt.status, got)
			}
		})
	}
}

type mockStatsProvider struct {
	stats   Stats
	updated int
}

func (m *mockStatsProvider) GetStats() Stats {
	return m.stats
}

func (m *mockStatsProvider) UpdateDBMetrics() {
	m.updated++
}

func TestCollectorCollect(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "videos.db")
	if err := os.WriteFile(dbPath, make([]byte, 2048), 0o644); err != nil {
		t.Fatalf("Failed to write db file: %v", err)
	}

	provider := &mockStatsProvider{stats: Stats{TotalVideos: 7, TotalBytes: 1 << 20}}
	c := NewCollector(provider, dbPath, time.Minute)
	c.collect()

	if got := gaugeValue(t, VideosTotal); got != 7 {
		t.Errorf("Expected VideosTotal=7, got %v", got)
	}
	if got := gaugeValue(t, VideoBytesTotal); got != 1<<20 {
		t.Errorf("Expected VideoBytesTotal=%d, got %v", 1<<20, got)
	}
	if got := gaugeValue(t, DBSizeBytes.WithLabelValues("main")); got != 2048 {
		t.Errorf("Expected main db size 2048, got %v", got)
	}
	if got := gaugeValue(t, DBSizeBytes.WithLabelValues("wal")); got != 0 {
		t.Errorf("Expected missing WAL to report 0, got %v", got)
	}
	if provider.updated != 1 {
		t.Errorf("Expected UpdateDBMetrics to be called once, got %d", provider.updated)
	}
}

func TestCollectorNilProvider(t *testing.T) {
	c := NewCollector(nil, "", time.Minute)
	c.collect()
}

func TestCollectorStartStop(t *testing.T) {
	provider := &mockStatsProvider{stats: Stats{TotalVideos: 3}}
	c := NewCollector(provider, "", 10*time.Millisecond)
	c.Start()
	time.Sleep(35 * time.Millisecond)
	c.Stop()

	if got := gaugeValue(t, VideosTotal); got != 3 {
		t.Errorf("Expected VideosTotal=3, got %v", got)
	}
}
