// Package bridge lets a synchronous, poll-driven loop talk to an asynchronous
// worker: at most one request is outstanding per bridge, and its reply is
// folded into accumulated state by a single-use reducer when the loop pumps.
//
// A Bridge is owned by one goroutine (the presentation loop). It has no
// internal locking; callers using it from several goroutines must
// synchronize externally.
package bridge

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ppiankov/hedgehog/internal/channel"
	"github.com/ppiankov/hedgehog/internal/runner"
)

var (
	// ErrReducerConsumed is returned when a reducer is invoked twice.
	ErrReducerConsumed = errors.New("bridge: reducer already consumed")

	// ErrResponseClosed is the Error message used when a worker closed the
	// reply slot without writing a value.
	ErrResponseClosed = errors.New("response channel closed unexpectedly")
)

// Bridge mediates one polling consumer and one worker.
type Bridge[M, S any] struct {
	tx     *channel.Sender[M]
	runner runner.Runner
	st     state[M, S]
}

// New returns a bridge in Init that sends to the worker behind tx.
// r may be nil when the caller never needs the bridge's runner.
func New[M, S any](tx *channel.Sender[M], r runner.Runner) *Bridge[M, S] {
	return &Bridge[M, S]{
		tx:     tx,
		runner: r,
		st:     state[M, S]{kind: Init},
	}
}

// Start creates a worker queue, spawns h's loop on r as a root task and
// returns a bridge connected to it.
func Start[M, S any](r runner.Runner, h channel.Handler[M]) *Bridge[M, S] {
	tx, rx := channel.NewPair[M]()
	r.SpawnRoot(channel.Serve(rx, h))
	return New[M, S](tx, r)
}

// Runner returns the runner the bridge was created with.
func (b *Bridge[M, S]) Runner() runner.Runner {
	return b.runner
}

// Send issues a request and arms reduce to fold its reply. An outstanding
// request is cancelled first: its reply slot is closed so a late reply is
// discarded, and its prior state (not its reducer) carries over. If the
// envelope cannot be enqueued the bridge moves to Error and the error is
// returned. Send never blocks.
func (b *Bridge[M, S]) Send(payload M, reduce Reducer[M, S]) error {
	prev := b.st
	b.st = state[M, S]{kind: Updating}

	var prior Option[S]
	switch prev.kind {
	case Init:
	case Awaiting:
		prev.pending.Close()
		prior = prev.prior
		slog.Debug("superseding outstanding request", "request_id", prev.requestID)
	case Updating:
		slog.Error("send observed bridge in updating state, which should be impossible")
	case Complete:
		prior = Some(prev.value)
	case Error:
	}

	msg, pending := channel.NewRequest(payload)
	b.st = state[M, S]{
		kind:      Awaiting,
		pending:   pending,
		requestID: msg.ID,
		prior:     prior,
		reducer:   &oneShot[M, S]{fn: reduce},
	}

	if err := b.tx.TrySend(msg); err != nil {
		pending.Close()
		slog.Warn("failed to send request", "request_id", msg.ID, "error", err)
		b.st = state[M, S]{kind: Error, err: fmt.Sprintf("send request: %v", err)}
		return fmt.Errorf("send request: %w", err)
	}
	slog.Debug("request sent", "request_id", msg.ID)
	return nil
}

// Notify sends payload to the worker as a notification. It does not touch
// the bridge's state.
func (b *Bridge[M, S]) Notify(payload M) error {
	if err := b.tx.TrySend(channel.NewNotification(payload)); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	return nil
}

// Pump checks once, without blocking, for the outstanding reply. It returns
// true when the state changed: the reply was folded (Complete, or Error if
// the reducer failed) or the worker closed the slot without a value (Error).
func (b *Bridge[M, S]) Pump() bool {
	if b.st.kind != Awaiting {
		return false
	}

	reply, status := b.st.pending.TryRecv()
	switch status {
	case channel.Empty:
		return false
	case channel.Closed:
		slog.Warn("response channel closed unexpectedly", "request_id", b.st.requestID)
		b.st = state[M, S]{kind: Error, err: ErrResponseClosed.Error()}
		return true
	}

	prev := b.st
	b.st = state[M, S]{kind: Updating}
	slog.Debug("bridge handling incoming message", "request_id", prev.requestID)

	next, err := prev.reducer.call(reply, prev.prior)

	if b.st.kind != Updating {
		// the reducer called Send on this bridge; keep the newer request and
		// hand it the fold result as its prior state
		slog.Error("bridge state changed while reducing", "request_id", prev.requestID, "state", b.st.kind)
		if err == nil && b.st.kind == Awaiting {
			b.st.prior = Some(next)
		}
		return true
	}

	if err != nil {
		slog.Warn("reducer rejected reply", "request_id", prev.requestID, "error", err)
		b.st = state[M, S]{kind: Error, err: fmt.Sprintf("reduce reply: %v", err)}
		return true
	}
	b.st = state[M, S]{kind: Complete, value: next}
	return true
}

// State returns a read-only view of the current state.
func (b *Bridge[M, S]) State() Snapshot[S] {
	snap := Snapshot[S]{Kind: b.st.kind}
	switch b.st.kind {
	case Awaiting:
		snap.Prior = b.st.prior
		snap.RequestID = b.st.requestID
	case Complete:
		snap.Value = b.st.value
	case Error:
		snap.Err = b.st.err
	}
	return snap
}

// Kind returns the current state variant.
func (b *Bridge[M, S]) Kind() Kind {
	return b.st.kind
}

// Value returns the folded state when Complete.
func (b *Bridge[M, S]) Value() (S, bool) {
	if b.st.kind != Complete {
		var zero S
		return zero, false
	}
	return b.st.value, true
}

// Close cancels an outstanding request and releases the bridge's send
// endpoint. Later Sends fail into Error.
func (b *Bridge[M, S]) Close() {
	if b.st.kind == Awaiting {
		b.st.pending.Close()
	}
	b.tx.Close()
}
