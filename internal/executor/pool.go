package executor

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/vk/projforge/internal/ctxlog"
)

// Pool runs tasks on a fixed number of worker goroutines.
type Pool struct {
	ctx     context.Context
	onPanic PanicHandler

	mu     sync.Mutex
	work   *sync.Cond // signalled when a task is queued or the pool closes
	idle   *sync.Cond // broadcast when outstanding drops to zero
	queue  queues
	closed bool

	// outstanding counts queued plus running tasks.
	outstanding atomic.Int64
	wg          sync.WaitGroup
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPanicHandler routes task panics to h instead of the error log.
func WithPanicHandler(h PanicHandler) PoolOption {
	return func(p *Pool) { p.onPanic = h }
}

// NewPool starts workers goroutines; zero or less means runtime.NumCPU().
// The pool must be closed to release them.
func NewPool(ctx context.Context, workers int, opts ...PoolOption) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	p := &Pool{ctx: ctx}
	p.work = sync.NewCond(&p.mu)
	p.idle = sync.NewCond(&p.mu)
	for _, opt := range opts {
		opt(p)
	}

	logger := ctxlog.FromContext(ctx)
	logger.Debug("Starting worker pool.", "workers", workers)
	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

// Go queues fn. Tasks queued after Close are dropped.
func (p *Pool) Go(prio Priority, fn Task) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		ctxlog.FromContext(p.ctx).Warn("Dropping task queued on a closed pool.", "priority", prio)
		return
	}
	p.outstanding.Add(1)
	p.queue.push(prio, fn)
	p.work.Signal()
}

// Wait blocks until every queued and running task has finished.
func (p *Pool) Wait() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.outstanding.Load() > 0 {
		p.idle.Wait()
	}
}

// Close stops the workers once the queue is drained and waits for them.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.work.Broadcast()
	p.mu.Unlock()
	p.wg.Wait()
}

// worker is the core processing loop for a single concurrent worker.
func (p *Pool) worker(workerID int) {
	defer p.wg.Done()
	ctx := ctxlog.With(p.ctx, "workerID", workerID)
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.")

	for {
		p.mu.Lock()
		for p.queue.empty() && !p.closed {
			p.work.Wait()
		}
		fn, ok := p.queue.pop()
		p.mu.Unlock()
		if !ok {
			logger.Debug("Worker finished.")
			return
		}

		run(ctx, fn, p.onPanic)

		if p.outstanding.Add(-1) == 0 {
			p.mu.Lock()
			p.idle.Broadcast()
			p.mu.Unlock()
		}
	}
}
