// Package executor runs the builder's tasks.
//
// Two implementations share one contract: a Pool of worker goroutines and a
// Serial worklist that runs everything on the caller's goroutine. Tasks may
// schedule further tasks while they run; Wait returns only once every task,
// including those spawned after Wait was called, has finished.
package executor

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/vk/projforge/internal/ctxlog"
)

// Priority selects the queue a task goes to. High priority tasks are always
// picked before low priority ones.
type Priority int

const (
	Low Priority = iota
	High
)

func (p Priority) String() string {
	if p == High {
		return "high"
	}
	return "low"
}

// Task is one unit of work. The context carries the logger.
type Task func(ctx context.Context)

// Executor schedules tasks and waits for them.
type Executor interface {
	// Go schedules fn. It never blocks on fn.
	Go(prio Priority, fn Task)
	// Wait blocks until no task is queued or running.
	Wait()
}

// PanicHandler receives the value recovered from a panicking task.
type PanicHandler func(recovered any, stack []byte)

// run executes fn, turning a panic into a call to onPanic.
func run(ctx context.Context, fn Task, onPanic PanicHandler) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			if onPanic != nil {
				onPanic(r, stack)
				return
			}
			ctxlog.FromContext(ctx).Error("Task panicked.", "panic", fmt.Sprint(r), "stack", string(stack))
		}
	}()
	fn(ctx)
}

// queues holds pending tasks by priority. It is not synchronised.
type queues struct {
	high []Task
	low  []Task
}

func (q *queues) push(prio Priority, fn Task) {
	if prio == High {
		q.high = append(q.high, fn)
		return
	}
	q.low = append(q.low, fn)
}

func (q *queues) pop() (Task, bool) {
	if len(q.high) > 0 {
		fn := q.high[0]
		q.high[0] = nil
		q.high = q.high[1:]
		return fn, true
	}
	if len(q.low) > 0 {
		fn := q.low[0]
		q.low[0] = nil
		q.low = q.low[1:]
		return fn, true
	}
	return nil, false
}

func (q *queues) empty() bool {
	return len(q.high) == 0 && len(q.low) == 0
}
