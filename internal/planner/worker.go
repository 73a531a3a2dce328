package planner

import "context"

// costWorker is a single-slot worker pool: it runs CostAnalyst's pure
// computation off of whichever goroutine is juggling the other two
// analyzers' I/O waits, so the fan-out loop is never blocked on it. One
// slot is enough since CostAnalyst never overlaps itself within a single
// ParallelAnalysts fan-out.
type costWorker struct {
	jobs chan func()
}

// newCostWorker starts the single background goroutine that drains jobs.
func newCostWorker() *costWorker {
	w := &costWorker{jobs: make(chan func())}
	go w.run()
	return w
}

// NewCostWorker builds a costWorker for callers outside this package (the
// server's composition root); the returned value is only ever passed back
// into NewParallelAnalysts.
func NewCostWorker() *costWorker {
	return newCostWorker()
}

func (w *costWorker) run() {
	for job := range w.jobs {
		job()
	}
}

// Do submits fn to the worker and blocks until it has run or ctx is done.
func (w *costWorker) Do(ctx context.Context, fn func()) {
	done := make(chan struct{})
	select {
	case w.jobs <- func() { fn(); close(done) }:
	case <-ctx.Done():
		return
	}

	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Close stops accepting new jobs. Safe to call once at process shutdown.
func (w *costWorker) Close() {
	close(w.jobs)
}
