package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yrk1n/video-platform/internal/jobs"
	"github.com/yrk1n/video-platform/internal/limiter"
	"github.com/yrk1n/video-platform/internal/pipeline"
	"github.com/yrk1n/video-platform/internal/renditions"
	"github.com/yrk1n/video-platform/internal/transcoder"
)

type finished struct {
	job jobs.Job
	err error
}

type recordingObserver struct {
	mu       sync.Mutex
	enqueued []string
	admitted []string
	done     chan finished
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{done: make(chan finished, 128)}
}

func (o *recordingObserver) JobEnqueued(job jobs.Job) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.enqueued = append(o.enqueued, job.Identifier)
}

func (o *recordingObserver) JobAdmitted(job jobs.Job) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.admitted = append(o.admitted, job.Identifier)
}

func (o *recordingObserver) JobFinished(job jobs.Job, _ time.Duration, err error) {
	o.done <- finished{job: job, err: err}
}

func (o *recordingObserver) admittedOrder() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.admitted...)
}

func (o *recordingObserver) wait(t *testing.T, n int) map[string]error {
	t.Helper()
	results := make(map[string]error)
	timeout := time.After(5 * time.Second)
	for len(results) < n {
		select {
		case f := <-o.done:
			results[f.job.Identifier] = f.err
		case <-timeout:
			t.Fatalf("Timed out with %d of %d jobs finished", len(results), n)
		}
	}
	return results
}

// funcRunner adapts a function to Runner and tracks concurrency.
type funcRunner struct {
	fn      func(ctx context.Context, job jobs.Job) error
	current atomic.Int32
	peak    atomic.Int32
}

func (r *funcRunner) Run(ctx context.Context, job jobs.Job) error {
	n := r.current.Add(1)
	defer r.current.Add(-1)
	for {
		p := r.peak.Load()
		if n <= p || r.peak.CompareAndSwap(p, n) {
			break
		}
	}
	return r.fn(ctx, job)
}

func startDispatcher(t *testing.T, d *Dispatcher) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := d.Run(ctx); err != nil {
			t.Errorf("Run returned error: %v", err)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func TestDispatcherBoundsConcurrency(t *testing.T) {
	runner := &funcRunner{fn: func(context.Context, jobs.Job) error {
		time.Sleep(30 * time.Millisecond)
		return nil
	}}
	obs := newRecordingObserver()
	d := New(jobs.NewQueue(), limiter.New(2), runner, obs)

	stop := startDispatcher(t, d)
	defer stop()

	for i := 0; i < 5; i++ {
		if _, err := d.Submit(fmt.Sprintf("/uploads/v%d.mp4", i), fmt.Sprintf("v%d.mp4", i)); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}

	results := obs.wait(t, 5)
	for id, err := range results {
		if err != nil {
			t.Errorf("Expected %s to succeed, got %v", id, err)
		}
	}
	if peak := runner.peak.Load(); peak > 2 {
		t.Errorf("Expected at most 2 concurrent pipelines, observed %d", peak)
	}
	if peak := runner.peak.Load(); peak != 2 {
		t.Errorf("Expected both slots to be used, observed peak %d", peak)
	}

	stop()
	if err := d.Drain(context.Background()); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if d.InFlight() != 0 {
		t.Errorf("Expected no pipelines in flight, got %d", d.InFlight())
	}
}

func TestDispatcherAdmitsInEnqueueOrder(t *testing.T) {
	runner := &funcRunner{fn: func(_ context.Context, job jobs.Job) error {
		time.Sleep(time.Duration(len(job.Identifier)%3) * time.Millisecond)
		return nil
	}}
	obs := newRecordingObserver()
	d := New(jobs.NewQueue(), limiter.New(3), runner, obs)

	var want []string
	for i := 0; i < 20; i++ {
		name := fmt.Sprintf("clip%02d", i)
		want = append(want, name)
		if _, err := d.Submit("/uploads/"+name+".mp4", name+".mp4"); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}

	stop := startDispatcher(t, d)
	obs.wait(t, len(want))
	stop()

	got := obs.admittedOrder()
	if len(got) != len(want) {
		t.Fatalf("Expected %d admissions, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Admission %d: expected %s, got %s (order %v)", i, want[i], got[i], got)
		}
	}
}

func TestDispatcherFailureIsolation(t *testing.T) {
	release := make(chan struct{})
	runner := &funcRunner{fn: func(_ context.Context, job jobs.Job) error {
		if job.Identifier == "bad" {
			return errors.New("engine exploded")
		}
		<-release
		return nil
	}}
	obs := newRecordingObserver()
	d := New(jobs.NewQueue(), limiter.New(2), runner, obs)
	stop := startDispatcher(t, d)
	defer stop()

	d.Submit("/uploads/good1.mp4", "good1.mp4")
	d.Submit("/uploads/bad.mp4", "bad.mp4")
	d.Submit("/uploads/good2.mp4", "good2.mp4")

	first := obs.wait(t, 1)
	if err, ok := first["bad"]; !ok || err == nil {
		t.Fatalf("Expected bad job to fail first, got %v", first)
	}

	close(release)
	rest := obs.wait(t, 2)
	for _, id := range []string{"good1", "good2"} {
		if err, ok := rest[id]; !ok || err != nil {
			t.Errorf("Expected %s to succeed, got ok=%v err=%v", id, ok, err)
		}
	}
}

func TestDispatcherReleasesSlotsOnFailure(t *testing.T) {
	runner := &funcRunner{fn: func(context.Context, jobs.Job) error {
		return errors.New("always fails")
	}}
	obs := newRecordingObserver()
	lim := limiter.New(3)
	d := New(jobs.NewQueue(), lim, runner, obs)
	stop := startDispatcher(t, d)

	for i := 0; i < 10; i++ {
		d.Submit(fmt.Sprintf("/uploads/f%d.mp4", i), fmt.Sprintf("f%d.mp4", i))
	}
	results := obs.wait(t, 10)
	for id, err := range results {
		if err == nil {
			t.Errorf("Expected %s to fail", id)
		}
	}

	stop()
	if err := d.Drain(context.Background()); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if lim.InUse() != 0 {
		t.Errorf("Expected all slots released, %d still held", lim.InUse())
	}
}

func TestDispatcherRecoversPanics(t *testing.T) {
	runner := &funcRunner{fn: func(_ context.Context, job jobs.Job) error {
		if job.Identifier == "boom" {
			panic("nil frame")
		}
		return nil
	}}
	obs := newRecordingObserver()
	lim := limiter.New(1)
	d := New(jobs.NewQueue(), lim, runner, obs)
	stop := startDispatcher(t, d)
	defer stop()

	d.Submit("/uploads/boom.mp4", "boom.mp4")
	d.Submit("/uploads/after.mp4", "after.mp4")

	results := obs.wait(t, 2)
	if !errors.Is(results["boom"], ErrPipelinePanic) {
		t.Errorf("Expected ErrPipelinePanic, got %v", results["boom"])
	}
	if results["after"] != nil {
		t.Errorf("Expected job after panic to succeed, got %v", results["after"])
	}
}

func TestDispatcherStopDoesNotCancelPipelines(t *testing.T) {
	started := make(chan struct{})
	proceed := make(chan struct{})
	var pipelineCtxErr atomic.Value
	runner := &funcRunner{fn: func(ctx context.Context, _ jobs.Job) error {
		close(started)
		<-proceed
		if err := ctx.Err(); err != nil {
			pipelineCtxErr.Store(err)
		}
		return nil
	}}
	obs := newRecordingObserver()
	d := New(jobs.NewQueue(), limiter.New(1), runner, obs)
	stop := startDispatcher(t, d)

	d.Submit("/uploads/long.mp4", "long.mp4")
	<-started

	stop()
	if d.Running() {
		t.Error("Expected dispatcher to report stopped")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := d.Drain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected Drain to time out while pipeline runs, got %v", err)
	}

	close(proceed)
	if err := d.Drain(context.Background()); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if v := pipelineCtxErr.Load(); v != nil {
		t.Errorf("Expected pipeline context to stay live, got %v", v)
	}
	if results := obs.wait(t, 1); results["long"] != nil {
		t.Errorf("Expected in-flight job to complete, got %v", results["long"])
	}
}

func TestDispatcherCloseReturnsQueuedJobs(t *testing.T) {
	runner := &funcRunner{fn: func(context.Context, jobs.Job) error { return nil }}
	d := New(jobs.NewQueue(), limiter.New(1), runner, nil)

	d.Submit("/uploads/a.mp4", "a.mp4")
	d.Submit("/uploads/b.mp4", "b.mp4")

	dropped := d.Close()
	if len(dropped) != 2 {
		t.Fatalf("Expected 2 dropped jobs, got %d", len(dropped))
	}
	if dropped[0].Identifier != "a" || dropped[1].Identifier != "b" {
		t.Errorf("Expected dropped jobs in FIFO order, got %s, %s", dropped[0].Identifier, dropped[1].Identifier)
	}
	if _, err := d.Submit("/uploads/c.mp4", "c.mp4"); !errors.Is(err, jobs.ErrQueueClosed) {
		t.Errorf("Expected ErrQueueClosed after Close, got %v", err)
	}

	if err := d.Run(context.Background()); err != nil {
		t.Errorf("Expected Run on closed queue to return nil, got %v", err)
	}
}

// chanGate blocks admission until open is closed.
type chanGate struct {
	open  chan struct{}
	calls atomic.Int32
}

func (g *chanGate) Wait(ctx context.Context) error {
	g.calls.Add(1)
	select {
	case <-g.open:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestDispatcherAdmissionGate(t *testing.T) {
	runner := &funcRunner{fn: func(context.Context, jobs.Job) error { return nil }}
	obs := newRecordingObserver()
	d := New(jobs.NewQueue(), limiter.New(2), runner, obs)
	gate := &chanGate{open: make(chan struct{})}
	d.SetAdmissionGate(gate)

	stop := startDispatcher(t, d)
	defer stop()

	if _, err := d.Submit("/uploads/held.mp4", "held.mp4"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if got := obs.admittedOrder(); len(got) != 0 {
		t.Fatalf("Expected no admissions while gate is closed, got %v", got)
	}

	close(gate.open)
	if results := obs.wait(t, 1); results["held"] != nil {
		t.Errorf("Expected held job to succeed, got %v", results["held"])
	}
	if gate.calls.Load() < 1 {
		t.Error("Expected gate to be consulted")
	}
}

func TestDispatcherStopWhileGated(t *testing.T) {
	runner := &funcRunner{fn: func(context.Context, jobs.Job) error { return nil }}
	obs := newRecordingObserver()
	d := New(jobs.NewQueue(), limiter.New(1), runner, obs)
	d.SetAdmissionGate(&chanGate{open: make(chan struct{})})

	d.Submit("/uploads/stuck.mp4", "stuck.mp4")
	stop := startDispatcher(t, d)
	time.Sleep(20 * time.Millisecond)
	stop()

	results := obs.wait(t, 1)
	if !errors.Is(results["stuck"], ErrNotAdmitted) {
		t.Errorf("Expected ErrNotAdmitted, got %v", results["stuck"])
	}
	if runner.peak.Load() != 0 {
		t.Error("Expected gated job never to run")
	}
}

func TestDispatcherRejectsSecondRun(t *testing.T) {
	d := New(jobs.NewQueue(), limiter.New(1), &funcRunner{fn: func(context.Context, jobs.Job) error { return nil }}, nil)
	stop := startDispatcher(t, d)
	defer stop()

	deadline := time.Now().Add(time.Second)
	for !d.Running() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if err := d.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("Expected ErrAlreadyRunning, got %v", err)
	}
}

func TestDispatcherStats(t *testing.T) {
	d := New(jobs.NewQueue(), limiter.New(4), &funcRunner{fn: func(context.Context, jobs.Job) error { return nil }}, nil)
	d.Submit("/uploads/x.mp4", "x.mp4")
	d.Submit("/uploads/y.mp4", "y.mp4")

	if d.QueueDepth() != 2 {
		t.Errorf("Expected QueueDepth=2, got %d", d.QueueDepth())
	}
	if d.Capacity() != 4 {
		t.Errorf("Expected Capacity=4, got %d", d.Capacity())
	}
	if d.InFlight() != 0 {
		t.Errorf("Expected InFlight=0, got %d", d.InFlight())
	}
	if d.Running() {
		t.Error("Expected Running=false before Run")
	}
}

// scriptedEngine writes outputs and fails for inputs whose name contains "corrupt".
type scriptedEngine struct{}

func (scriptedEngine) Run(_ context.Context, input, output string, op transcoder.Operation) error {
	if filepath.Base(input) == "corrupt.mp4" {
		return &transcoder.EngineError{Op: op, Output: "moov atom not found", Err: errors.New("exit status 1")}
	}
	return os.WriteFile(output, []byte(op.String()), 0o644)
}

func TestDispatcherRunsPipelines(t *testing.T) {
	uploads := t.TempDir()
	processed := t.TempDir()
	for _, name := range []string{"one.mp4", "two.mkv", "corrupt.mp4"} {
		if err := os.WriteFile(filepath.Join(uploads, name), []byte(name), 0o644); err != nil {
			t.Fatalf("Failed to write upload: %v", err)
		}
	}

	obs := newRecordingObserver()
	d := New(jobs.NewQueue(), limiter.New(2), pipeline.New(processed, scriptedEngine{}, nil), obs)
	stop := startDispatcher(t, d)
	defer stop()

	for _, name := range []string{"one.mp4", "two.mkv", "corrupt.mp4"} {
		if _, err := d.Submit(filepath.Join(uploads, name), name); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}
	results := obs.wait(t, 3)

	var stageErr *pipeline.StageError
	if !errors.As(results["corrupt"], &stageErr) || stageErr.Stage != pipeline.StageRenderingNative {
		t.Errorf("Expected corrupt to fail at rendering_native, got %v", results["corrupt"])
	}
	for _, id := range []string{"one", "two"} {
		if results[id] != nil {
			t.Errorf("Expected %s to succeed, got %v", id, results[id])
		}
		status := renditions.Inspect(processed, id)
		if len(status.Versions) != 2 {
			t.Errorf("Expected %s to have both versions, got %v", id, status.Versions)
		}
	}
	if !renditions.Inspect(processed, "corrupt").IsProcessing() {
		t.Error("Expected failed job without renditions to report processing")
	}
}
