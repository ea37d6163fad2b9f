package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yrk1n/video-platform/internal/jobs"
	"github.com/yrk1n/video-platform/internal/limiter"
	"github.com/yrk1n/video-platform/internal/logging"
)

var (
	// ErrPipelinePanic is reported when a pipeline panics instead of
	// returning an error.
	ErrPipelinePanic = errors.New("pipeline panicked")
	// ErrNotAdmitted is reported for a job that was dequeued but not started
	// because the dispatcher stopped while it waited for a slot.
	ErrNotAdmitted = errors.New("job not admitted before shutdown")
	// ErrAlreadyRunning is returned by Run when another Run is active.
	ErrAlreadyRunning = errors.New("dispatcher already running")
)

// Runner executes the pipeline for one job.
type Runner interface {
	Run(ctx context.Context, job jobs.Job) error
}

// Observer receives job lifecycle events.
type Observer interface {
	JobEnqueued(job jobs.Job)
	JobAdmitted(job jobs.Job)
	JobFinished(job jobs.Job, elapsed time.Duration, err error)
}

type noopObserver struct{}

func (noopObserver) JobEnqueued(jobs.Job)                       {}
func (noopObserver) JobAdmitted(jobs.Job)                       {}
func (noopObserver) JobFinished(jobs.Job, time.Duration, error) {}

// Gate holds back admission while the process is under resource pressure.
// Wait returns nil once admission may proceed.
type Gate interface {
	Wait(ctx context.Context) error
}

// Dispatcher moves jobs from the queue into pipelines, never running more
// pipelines at once than the limiter allows.
type Dispatcher struct {
	queue    *jobs.Queue
	limiter  *limiter.Limiter
	runner   Runner
	observer Observer
	gate     Gate

	wg      sync.WaitGroup
	running atomic.Bool
}

// New creates a Dispatcher. A nil observer is allowed.
func New(queue *jobs.Queue, lim *limiter.Limiter, runner Runner, observer Observer) *Dispatcher {
	if observer == nil {
		observer = noopObserver{}
	}
	return &Dispatcher{
		queue:    queue,
		limiter:  lim,
		runner:   runner,
		observer: observer,
	}
}

// SetAdmissionGate installs a gate consulted before each job takes a
// pipeline slot. Call it before Run.
func (d *Dispatcher) SetAdmissionGate(g Gate) {
	d.gate = g
}

// Submit creates a job for the upload at sourcePath and enqueues it. It
// never blocks on pipeline capacity.
func (d *Dispatcher) Submit(sourcePath, originalName string) (jobs.Job, error) {
	job := jobs.New(sourcePath, originalName)
	if err := d.queue.Enqueue(job); err != nil {
		logging.Warn("Rejected job for %s: %v", job.OriginalName, err)
		return job, err
	}
	d.observer.JobEnqueued(job)
	logging.Info("Queued job %s for %s (queue depth %d)", job.ShortID(), job.Identifier, d.queue.Len())
	return job, nil
}

// Run admits jobs until ctx is cancelled or the queue is closed. Admitted
// pipelines run detached from ctx and are not interrupted when Run returns;
// use Drain to wait for them.
func (d *Dispatcher) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer d.running.Store(false)

	pipelineCtx := context.WithoutCancel(ctx)
	logging.Info("Dispatcher started with %d pipeline slots", d.limiter.Capacity())

	for {
		job, err := d.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, jobs.ErrQueueClosed) {
				logging.Info("Dispatcher stopped: queue closed")
			} else {
				logging.Info("Dispatcher stopped: %v", err)
			}
			return nil
		}

		if d.gate != nil {
			if err := d.gate.Wait(ctx); err != nil {
				logging.Warn("Dispatcher stopped while job %s (%s) waited on admission gate; job dropped", job.ShortID(), job.Identifier)
				d.observer.JobFinished(job, 0, ErrNotAdmitted)
				return nil
			}
		}

		release, err := d.limiter.Acquire(ctx)
		if err != nil {
			logging.Warn("Dispatcher stopped while job %s (%s) waited for a slot; job dropped", job.ShortID(), job.Identifier)
			d.observer.JobFinished(job, 0, ErrNotAdmitted)
			return nil
		}

		d.observer.JobAdmitted(job)
		logging.Debug("Admitted job %s for %s (%d/%d slots in use)", job.ShortID(), job.Identifier, d.limiter.InUse(), d.limiter.Capacity())

		d.wg.Add(1)
		go d.execute(pipelineCtx, job, release)
	}
}

func (d *Dispatcher) execute(ctx context.Context, job jobs.Job, release func()) {
	defer d.wg.Done()
	defer release()

	log := logging.WithPrefix(fmt.Sprintf("[job %s %s]", job.Identifier, job.ShortID()))
	start := time.Now()
	err := d.runSafely(ctx, job)
	elapsed := time.Since(start)

	if err != nil {
		log.Error("Failed after %v: %v", elapsed.Round(time.Millisecond), err)
	} else {
		log.Info("Completed in %v", elapsed.Round(time.Millisecond))
	}
	d.observer.JobFinished(job, elapsed, err)
}

func (d *Dispatcher) runSafely(ctx context.Context, job jobs.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPipelinePanic, r)
		}
	}()
	return d.runner.Run(ctx, job)
}

// Close closes the queue and returns the jobs that were never admitted.
// Each dropped job is logged and reported as finished with ErrNotAdmitted.
func (d *Dispatcher) Close() []jobs.Job {
	dropped := d.queue.Close()
	for _, job := range dropped {
		logging.Warn("Dropped queued job %s for %s", job.ShortID(), job.Identifier)
		d.observer.JobFinished(job, 0, ErrNotAdmitted)
	}
	return dropped
}

// Drain waits for admitted pipelines to finish or for ctx to end. Call it
// after Run has returned.
func (d *Dispatcher) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%d pipelines still running: %w", d.limiter.InUse(), ctx.Err())
	}
}

// QueueDepth returns the number of jobs waiting for admission.
func (d *Dispatcher) QueueDepth() int {
	return d.queue.Len()
}

// InFlight returns the number of running pipelines.
func (d *Dispatcher) InFlight() int {
	return d.limiter.InUse()
}

// Capacity returns the maximum number of concurrent pipelines.
func (d *Dispatcher) Capacity() int {
	return d.limiter.Capacity()
}

// Running reports whether Run is active.
func (d *Dispatcher) Running() bool {
	return d.running.Load()
}
