/*
Package dispatcher admits queued transcoding jobs into pipelines.

A single dispatch loop takes jobs from the queue in FIFO order and acquires
a limiter slot for each before starting its pipeline on a new goroutine, so
admission order always matches enqueue order and at most Capacity pipelines
run at once. The slot is released when the pipeline returns, fails, or
panics.

Pipelines run on a context detached from the one passed to Run. Cancelling
Run stops admission only:

	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)
	...
	cancel()
	dropped := d.Close()           // queued, never admitted
	err := d.Drain(shutdownCtx)    // wait for running pipelines
*/
package dispatcher
