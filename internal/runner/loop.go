package runner

import (
	"context"
	"log/slog"
	"sync"
)

// Loop is a cooperative single-threaded scheduler. It has no goroutine of
// its own: tasks only run inside RunReady, which the host event loop calls
// (once per UI tick). Wakeups may arrive from any goroutine; they only
// re-queue the task.
type Loop struct {
	mu      sync.Mutex
	ready   []*loopTask
	tasks   map[*loopTask]struct{}
	running bool
	closed  bool
}

type loopTask struct {
	loop   *Loop
	task   Task
	queued bool
	done   bool
}

// NewLoop creates an empty cooperative scheduler.
func NewLoop() *Loop {
	return &Loop{tasks: make(map[*loopTask]struct{})}
}

// SpawnRoot implements Runner.
func (l *Loop) SpawnRoot(t Task) {
	l.add(t)
}

// Spawn implements Runner.
func (l *Loop) Spawn(t Task) {
	l.add(t)
}

func (l *Loop) add(t Task) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		slog.Warn("spawn on closed loop, cancelling task")
		cancelTask(t)
		return
	}
	lt := &loopTask{loop: l, task: t, queued: true}
	l.tasks[lt] = struct{}{}
	l.ready = append(l.ready, lt)
	l.mu.Unlock()
}

func (lt *loopTask) wake() {
	l := lt.loop
	l.mu.Lock()
	defer l.mu.Unlock()
	if lt.done || lt.queued || l.closed {
		return
	}
	lt.queued = true
	l.ready = append(l.ready, lt)
}

// RunReady polls every task that was ready when it was called, once each,
// and returns how many were polled. Tasks woken while it runs are polled on
// the next call. It must be called from the host loop only; a reentrant
// call does nothing.
func (l *Loop) RunReady(ctx context.Context) int {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		slog.Error("reentrant RunReady ignored")
		return 0
	}
	l.running = true
	batch := l.ready
	l.ready = nil
	for _, lt := range batch {
		lt.queued = false
	}
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
	}()

	for _, lt := range batch {
		if poll(ctx, lt.task, lt.wake) == Done {
			l.finish(lt)
		}
	}
	return len(batch)
}

func (l *Loop) finish(lt *loopTask) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lt.done = true
	delete(l.tasks, lt)
}

// Ready returns the number of tasks waiting to be polled.
func (l *Loop) Ready() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ready)
}

// Live returns the number of tasks that have not finished.
func (l *Loop) Live() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks)
}

// Shutdown polls every live task once with a cancelled context so it can
// release its resources, then drops them. Tasks spawned later get the same
// single cancelled poll instead of running.
func (l *Loop) Shutdown() {
	l.mu.Lock()
	l.closed = true
	tasks := make([]*loopTask, 0, len(l.tasks))
	for lt := range l.tasks {
		lt.done = true
		tasks = append(tasks, lt)
	}
	l.tasks = make(map[*loopTask]struct{})
	l.ready = nil
	l.mu.Unlock()

	for _, lt := range tasks {
		cancelTask(lt.task)
	}
}
