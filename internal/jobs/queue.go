package jobs

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueClosed is returned by Enqueue and Dequeue once the queue is closed.
var ErrQueueClosed = errors.New("job queue closed")

// Queue is an unbounded multi-producer FIFO of pending jobs.
type Queue struct {
	mu      sync.Mutex
	items   []Job
	closed  bool
	signal  chan struct{} // capacity 1; non-empty means "items may be available"
	done    chan struct{}
	onDepth func(int)
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// OnDepthChange registers fn to be called with the new depth after every
// enqueue and dequeue. fn runs under the queue lock and must not call back
// into the queue. It must be set before the queue is shared.
func (q *Queue) OnDepthChange(fn func(int)) {
	q.onDepth = fn
}

// Enqueue appends job to the tail of the queue. It never blocks.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.items = append(q.items, job)
	q.reportDepth(len(q.items))
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return nil
}

// Dequeue removes and returns the job at the head of the queue, waiting until
// one is available. It returns ErrQueueClosed after Close and ctx.Err() when
// ctx is cancelled first.
func (q *Queue) Dequeue(ctx context.Context) (Job, error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return Job{}, ErrQueueClosed
		}
		if len(q.items) > 0 {
			job := q.items[0]
			q.items[0] = Job{}
			q.items = q.items[1:]
			remaining := len(q.items)
			q.reportDepth(remaining)
			q.mu.Unlock()

			if remaining > 0 {
				// pass the wakeup on to any other waiter
				select {
				case q.signal <- struct{}{}:
				default:
				}
			}
			return job, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return Job{}, ctx.Err()
		case <-q.done:
		case <-q.signal:
		}
	}
}

// Len returns the number of jobs waiting to be dispatched.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close shuts the queue down and returns the jobs that were never dispatched.
// Closing twice returns nil the second time.
func (q *Queue) Close() []Job {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	dropped := q.items
	q.items = nil
	close(q.done)
	q.reportDepth(0)
	q.mu.Unlock()
	return dropped
}

func (q *Queue) reportDepth(depth int) {
	if q.onDepth != nil {
		q.onDepth(depth)
	}
}
