package runner

import (
	"context"
	"log/slog"
	"sync"
)

// Pool runs every task on its own goroutine. It may be used from any
// goroutine. Create one per process and tear it down with Shutdown.
type Pool struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
	live   int
}

// NewPool creates a background pool. Tasks observe a context that is
// cancelled by Shutdown.
func NewPool() *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{ctx: ctx, cancel: cancel}
}

// SpawnRoot implements Runner.
func (p *Pool) SpawnRoot(t Task) {
	p.spawn(t, "root")
}

// Spawn implements Runner.
func (p *Pool) Spawn(t Task) {
	p.spawn(t, "child")
}

// Live returns the number of tasks that have not finished.
func (p *Pool) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live
}

func (p *Pool) spawn(t Task, kind string) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		slog.Warn("spawn on closed pool, cancelling task", "kind", kind)
		cancelTask(t)
		return
	}
	p.live++
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer func() {
			p.mu.Lock()
			p.live--
			p.mu.Unlock()
			p.wg.Done()
		}()

		// buffered(1) so wake never blocks and coalesces
		signal := make(chan struct{}, 1)
		wake := func() {
			select {
			case signal <- struct{}{}:
			default:
			}
		}

		for {
			if poll(p.ctx, t, wake) == Done {
				return
			}
			select {
			case <-p.ctx.Done():
				// one last poll so the task can observe cancellation and release its queue
				poll(p.ctx, t, func() {})
				return
			case <-signal:
			}
		}
	}()
}

// Shutdown cancels every task and waits for them to return or for ctx to end.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
