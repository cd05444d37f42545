package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ppiankov/hedgehog/internal/bridge"
	"github.com/ppiankov/hedgehog/internal/config"
	"github.com/ppiankov/hedgehog/internal/runner"
)

// host owns the runner workers are spawned on.
type host struct {
	runner runner.Runner
	loop   *runner.Loop // set in cooperative mode
	pool   *runner.Pool // set in pool mode
}

func newHost(kind string) (*host, error) {
	switch kind {
	case config.RunnerPool:
		p := runner.NewPool()
		return &host{runner: p, pool: p}, nil
	case config.RunnerCooperative:
		l := runner.NewLoop()
		return &host{runner: l, loop: l}, nil
	default:
		return nil, fmt.Errorf("unknown runner %q", kind)
	}
}

// runReady advances cooperative tasks; a no-op for the pool.
func (h *host) runReady(ctx context.Context) {
	if h.loop != nil {
		h.loop.RunReady(ctx)
	}
}

func (h *host) shutdown() {
	if h.loop != nil {
		h.loop.Shutdown()
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.pool.Shutdown(ctx); err != nil {
		slog.Warn("runner shutdown timed out", "live_tasks", h.pool.Live(), "error", err)
	}
}

// await pumps b every interval until its outstanding request settles.
func await[M, S any](ctx context.Context, h *host, b *bridge.Bridge[M, S], interval time.Duration) (bridge.Snapshot[S], error) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		h.runReady(ctx)
		b.Pump()
		if b.Kind() != bridge.Awaiting {
			return b.State(), nil
		}
		select {
		case <-ctx.Done():
			return b.State(), ctx.Err()
		case <-t.C:
		}
	}
}
