// Package limiter bounds how many transcode pipelines run at once.
package limiter

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Limiter is a counting admission gate. Waiters are admitted in the order
// they called Acquire.
type Limiter struct {
	sem      *semaphore.Weighted
	capacity int
	inUse    atomic.Int64
	onChange func(inUse int)

	// reportMu orders counter updates with their onChange calls, so the
	// last reported value is always the current one.
	reportMu sync.Mutex
}

// New creates a limiter with the given capacity. Capacities below 1 are
// raised to 1.
func New(capacity int) *Limiter {
	if capacity < 1 {
		capacity = 1
	}
	return &Limiter{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: capacity,
	}
}

// OnChange registers fn to be called with the number of held tokens after
// every acquire and release. It must be set before the limiter is shared.
func (l *Limiter) OnChange(fn func(inUse int)) {
	l.onChange = fn
}

// Acquire blocks until a token is free or ctx is done. The returned release
// func gives the token back; calling it more than once has no further effect.
func (l *Limiter) Acquire(ctx context.Context) (release func(), err error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	l.adjust(1)

	var once sync.Once
	return func() {
		once.Do(func() {
			l.adjust(-1)
			l.sem.Release(1)
		})
	}, nil
}

// InUse returns the number of tokens currently held.
func (l *Limiter) InUse() int {
	return int(l.inUse.Load())
}

// Capacity returns the total number of tokens.
func (l *Limiter) Capacity() int {
	return l.capacity
}

func (l *Limiter) adjust(delta int64) {
	l.reportMu.Lock()
	defer l.reportMu.Unlock()
	n := l.inUse.Add(delta)
	if l.onChange != nil {
		l.onChange(int(n))
	}
}
