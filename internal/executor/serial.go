package executor

import "context"

// Serial is a single-threaded worklist. Tasks run on the goroutine that calls
// Wait, in priority order and then in the order they were queued.
type Serial struct {
	ctx     context.Context
	onPanic PanicHandler
	queue   queues
}

// NewSerial creates an empty worklist. A nil handler logs panics.
func NewSerial(ctx context.Context, onPanic PanicHandler) *Serial {
	return &Serial{ctx: ctx, onPanic: onPanic}
}

// Go queues fn.
func (s *Serial) Go(prio Priority, fn Task) {
	s.queue.push(prio, fn)
}

// Wait runs queued tasks until none is left.
func (s *Serial) Wait() {
	for {
		fn, ok := s.queue.pop()
		if !ok {
			return
		}
		run(s.ctx, fn, s.onPanic)
	}
}
