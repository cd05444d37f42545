package runner

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Func adapts a blocking function into a Task. The first poll starts fn on
// its own goroutine with the context of that poll; later polls report Done
// once fn has returned. Use it for I/O (network round trips) so a cooperative
// Loop is never blocked by it.
func Func(fn func(ctx context.Context)) Task {
	return &funcTask{fn: fn}
}

type funcTask struct {
	fn    func(ctx context.Context)
	start sync.Once
	done  atomic.Bool
}

func (f *funcTask) Poll(ctx context.Context, wake func()) Status {
	f.start.Do(func() {
		go func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("offloaded func panicked", "panic", r)
				}
				f.done.Store(true)
				wake()
			}()
			f.fn(ctx)
		}()
	})
	if f.done.Load() {
		return Done
	}
	return Pending
}
