package runner

import (
	"context"
	"fmt"
	"log/slog"
)

// Status reports whether a task has run to completion.
type Status int

const (
	Pending Status = iota
	Done
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Task is a unit of asynchronous work.
// Poll advances the task as far as it can without blocking. When it returns
// Pending the task must arrange for wake to be called once it can make
// progress again. wake is safe to call from any goroutine, any number of times.
type Task interface {
	Poll(ctx context.Context, wake func()) Status
}

// TaskFunc adapts a function to the Task interface.
type TaskFunc func(ctx context.Context, wake func()) Status

// Poll implements Task.
func (f TaskFunc) Poll(ctx context.Context, wake func()) Status {
	return f(ctx, wake)
}

// Runner starts tasks. Implementations: Pool (background goroutines) and
// Loop (cooperative, driven by the host event loop).
//
// No ordering is guaranteed between independently spawned tasks. A task stops
// only by returning Done or by teardown of the runner.
type Runner interface {
	// SpawnRoot starts a new independent task, detached from the caller.
	SpawnRoot(t Task)
	// Spawn schedules additional work alongside an already running root,
	// e.g. a sub-worker created by a worker.
	Spawn(t Task)
}

// poll runs a single Poll, converting a panic into Done so one broken task
// cannot take down the runner.
func poll(ctx context.Context, t Task, wake func()) (st Status) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("task panicked", "task", fmt.Sprintf("%T", t), "panic", r)
			st = Done
		}
	}()
	return t.Poll(ctx, wake)
}

// cancelTask polls t once with a cancelled context so it can release what it
// holds, e.g. close its queue so senders see the worker is gone.
func cancelTask(t Task) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	poll(ctx, t, func() {})
}
