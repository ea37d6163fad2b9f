// Package jobs defines the transcoding Job and the in-memory queue that
// carries jobs from upload handlers to the dispatcher.
//
// The queue is unbounded and strictly FIFO. It lives only in process memory:
// jobs that were enqueued but not yet dispatched when the process stops are
// lost. Close returns them so the caller can at least log what was dropped.
package jobs
