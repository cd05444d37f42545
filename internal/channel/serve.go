package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ppiankov/hedgehog/internal/runner"
)

// pollBudget bounds how many envelopes one Poll handles before yielding, so
// a busy worker cannot starve other tasks on a cooperative loop.
const pollBudget = 64

// Handler is the worker contract. For every Request it must eventually call
// Reply.Send exactly once or Reply.Drop; it must never write twice.
// Notifications carry no reply. Handle must not block: long work goes to a
// task spawned on the worker's runner, which then owns the reply.
type Handler[M any] interface {
	Handle(ctx context.Context, msg Message[M])
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc[M any] func(ctx context.Context, msg Message[M])

// Handle implements Handler.
func (f HandlerFunc[M]) Handle(ctx context.Context, msg Message[M]) {
	f(ctx, msg)
}

// Serve returns the worker loop for rx as a task: it hands every envelope to
// h and finishes once all senders are closed and the queue is drained. When
// the runner cancels ctx the loop closes rx and drops the replies of
// requests still queued, so requesters see a closed reply slot.
func Serve[M any](rx *Receiver[M], h Handler[M]) runner.Task {
	return &server[M]{rx: rx, h: h}
}

type server[M any] struct {
	rx *Receiver[M]
	h  Handler[M]
}

func (s *server[M]) Poll(ctx context.Context, wake func()) runner.Status {
	for handled := 0; ; {
		if ctx.Err() != nil {
			s.shutdown()
			return runner.Done
		}

		msg, st := s.rx.TryRecv()
		switch st {
		case Ready:
			s.handle(ctx, msg)
			handled++
			if handled >= pollBudget {
				wake()
				return runner.Pending
			}
		case Closed:
			slog.Debug("worker out of messages")
			s.rx.Close()
			return runner.Done
		case Empty:
			s.rx.Notify(wake)
			// an envelope or close may have landed before Notify took effect
			if s.rx.Len() > 0 || s.rx.Drained() {
				continue
			}
			return runner.Pending
		}
	}
}

func (s *server[M]) handle(ctx context.Context, msg Message[M]) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("worker handler panicked", "id", msg.ID, "panic", r)
			if msg.Reply != nil {
				msg.Reply.Drop()
			}
		}
	}()
	s.h.Handle(ctx, msg)
}

func (s *server[M]) shutdown() {
	s.rx.Close()
	dropped := 0
	for {
		msg, st := s.rx.TryRecv()
		if st != Ready {
			break
		}
		if msg.Reply != nil {
			msg.Reply.Drop()
			dropped++
		}
	}
	slog.Debug("worker cancelled", "dropped_requests", dropped)
}

// Respond writes v as the reply to msg. A reply superseded by a newer
// request is an expected outcome and only logged at debug level.
func Respond[M any](msg Message[M], v M) {
	if msg.Reply == nil {
		slog.Warn("reply to notification ignored", "id", msg.ID, "payload", fmt.Sprintf("%T", v))
		return
	}
	switch err := msg.Reply.Send(v); {
	case err == nil:
		slog.Debug("replied", "id", msg.ID)
	case errors.Is(err, ErrDiscarded):
		slog.Debug("reply discarded, request superseded", "id", msg.ID)
	default:
		slog.Warn("failed to send reply", "id", msg.ID, "error", err)
	}
}
