package storage

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// workerPool bounds the number of concurrently executing async operations.
// Submission never blocks the caller: each task runs on its own goroutine
// gated by a weighted semaphore, so at most size tasks execute at once and
// the rest queue on semaphore acquisition.
type workerPool struct {
	sem    *semaphore.Weighted
	ctx    context.Context
	cancel context.CancelFunc
}

func newWorkerPool(size int) *workerPool {
	if size < 1 {
		size = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &workerPool{
		sem:    semaphore.NewWeighted(int64(size)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// submit schedules task for execution. If the pool is closed before the
// task acquires a worker slot, the task never runs.
func (p *workerPool) submit(task func()) {
	go func() {
		if err := p.sem.Acquire(p.ctx, 1); err != nil {
			return
		}
		defer p.sem.Release(1)
		task()
	}()
}

// close requests best-effort shutdown: queued tasks are abandoned, running
// tasks finish on their own. close does not wait.
func (p *workerPool) close() {
	p.cancel()
}
