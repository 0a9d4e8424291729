package executor

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/projforge/internal/testutil"
)

// spawnTree schedules a task that fans out into depth levels of width
// children each and records every task that ran.
func spawnTree(ex Executor, depth, width int, record func(string)) {
	var spawn func(prefix string, level int)
	spawn = func(prefix string, level int) {
		ex.Go(Low, func(context.Context) {
			record(prefix)
			if level == depth {
				return
			}
			for i := range width {
				spawn(prefix+string(rune('a'+i)), level+1)
			}
		})
	}
	spawn("r", 0)
}

func TestExecutors_WaitCoversSpawnedTasks(t *testing.T) {
	testCases := []struct {
		name string
		make func(ctx context.Context) (Executor, func())
	}{
		{
			name: "pool",
			make: func(ctx context.Context) (Executor, func()) {
				p := NewPool(ctx, 4)
				return p, p.Close
			},
		},
		{
			name: "single worker pool",
			make: func(ctx context.Context) (Executor, func()) {
				p := NewPool(ctx, 1)
				return p, p.Close
			},
		},
		{
			name: "serial",
			make: func(ctx context.Context) (Executor, func()) {
				return NewSerial(ctx, nil), func() {}
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ex, closeFn := tc.make(testutil.NewContext(t))
			defer closeFn()

			var mu sync.Mutex
			var ran []string
			spawnTree(ex, 3, 3, func(s string) {
				mu.Lock()
				ran = append(ran, s)
				mu.Unlock()
			})
			ex.Wait()

			mu.Lock()
			defer mu.Unlock()
			assert.Len(t, ran, 1+3+9+27)
			sort.Strings(ran)
			assert.Equal(t, "r", ran[0])
			assert.Equal(t, "rccc", ran[len(ran)-1])
		})
	}
}

func TestSerial_HighPriorityFirst(t *testing.T) {
	s := NewSerial(testutil.NewContext(t), nil)
	var order []string

	s.Go(Low, func(context.Context) { order = append(order, "low1") })
	s.Go(High, func(context.Context) { order = append(order, "high1") })
	s.Go(Low, func(context.Context) {
		order = append(order, "low2")
		s.Go(High, func(context.Context) { order = append(order, "high2") })
		s.Go(Low, func(context.Context) { order = append(order, "low3") })
	})
	s.Wait()

	assert.Equal(t, []string{"high1", "low1", "low2", "high2", "low3"}, order)
}

func TestPool_HighPriorityFirst(t *testing.T) {
	p := NewPool(testutil.NewContext(t), 1)
	defer p.Close()

	// Park the only worker so everything below queues up behind it.
	release := make(chan struct{})
	started := make(chan struct{})
	p.Go(Low, func(context.Context) {
		close(started)
		<-release
	})
	<-started

	var mu sync.Mutex
	var order []string
	add := func(s string) Task {
		return func(context.Context) {
			mu.Lock()
			order = append(order, s)
			mu.Unlock()
		}
	}
	p.Go(Low, add("low"))
	p.Go(High, add("high"))
	close(release)
	p.Wait()

	assert.Equal(t, []string{"high", "low"}, order)
}

func TestPool_RunsConcurrently(t *testing.T) {
	p := NewPool(testutil.NewContext(t), 4)
	defer p.Close()

	var running, peak atomic.Int32
	for range 8 {
		p.Go(Low, func(context.Context) {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			running.Add(-1)
		})
	}
	p.Wait()

	assert.Greater(t, peak.Load(), int32(1))
	assert.LessOrEqual(t, peak.Load(), int32(4))
	assert.Zero(t, p.outstanding.Load())
}

func TestExecutors_RecoverPanics(t *testing.T) {
	var mu sync.Mutex
	var recovered []any
	handler := func(r any, stack []byte) {
		mu.Lock()
		defer mu.Unlock()
		recovered = append(recovered, r)
		assert.NotEmpty(t, stack)
	}

	p := NewPool(testutil.NewContext(t), 2, WithPanicHandler(handler))
	p.Go(Low, func(context.Context) { panic("boom") })
	var after atomic.Bool
	p.Go(Low, func(context.Context) { after.Store(true) })
	p.Wait()
	p.Close()

	s := NewSerial(testutil.NewContext(t), handler)
	s.Go(High, func(context.Context) { panic("bang") })
	s.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []any{"boom", "bang"}, recovered)
	assert.True(t, after.Load())
}

func TestPool_WaitWithNothingQueued(t *testing.T) {
	p := NewPool(testutil.NewContext(t), 2)
	done := make(chan struct{})
	go func() {
		p.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait blocked on an empty pool")
	}
	p.Close()

	// Tasks queued after Close are dropped rather than run.
	var ran atomic.Bool
	p.Go(Low, func(context.Context) { ran.Store(true) })
	p.Wait()
	require.False(t, ran.Load())
}
