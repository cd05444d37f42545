package channel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/hedgehog/internal/runner"
)

func TestReply_SendThenTryRecv(t *testing.T) {
	reply, pending := NewReply[int]()

	if _, st := pending.TryRecv(); st != Empty {
		t.Fatalf("expected empty, got %s", st)
	}
	if err := reply.Send(7); err != nil {
		t.Fatalf("send: %v", err)
	}
	v, st := pending.TryRecv()
	if st != Ready || v != 7 {
		t.Fatalf("expected ready 7, got %s %d", st, v)
	}
	// read-once
	if _, st := pending.TryRecv(); st != Closed {
		t.Fatalf("second read should be closed, got %s", st)
	}
}

func TestReply_WriteAtMostOnce(t *testing.T) {
	reply, _ := NewReply[int]()
	if err := reply.Send(1); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if err := reply.Send(2); !errors.Is(err, ErrAlreadySent) {
		t.Fatalf("expected ErrAlreadySent, got %v", err)
	}
}

func TestReply_SendAfterCancelIsDiscarded(t *testing.T) {
	reply, pending := NewReply[int]()
	pending.Close()

	if err := reply.Send(1); !errors.Is(err, ErrDiscarded) {
		t.Fatalf("expected ErrDiscarded, got %v", err)
	}
	if _, st := pending.TryRecv(); st != Closed {
		t.Fatalf("expected closed, got %s", st)
	}
}

func TestReply_CloseDiscardsUnreadValue(t *testing.T) {
	reply, pending := NewReply[int]()
	if err := reply.Send(5); err != nil {
		t.Fatal(err)
	}
	pending.Close()
	if _, st := pending.TryRecv(); st != Closed {
		t.Fatalf("value written before cancel must not be delivered, got %s", st)
	}
}

func TestReply_DropIsObservedAsClosed(t *testing.T) {
	reply, pending := NewReply[string]()
	reply.Drop()
	reply.Drop() // idempotent

	if _, st := pending.TryRecv(); st != Closed {
		t.Fatalf("expected closed, got %s", st)
	}
	if err := reply.Send("late"); !errors.Is(err, ErrAlreadySent) {
		t.Fatalf("expected ErrAlreadySent after drop, got %v", err)
	}
}

func TestReply_CloseHandsBackUnreadValue(t *testing.T) {
	reply, pending := NewReply[int]()
	var discarded []int
	if err := reply.SendOr(9, func(v int) { discarded = append(discarded, v) }); err != nil {
		t.Fatal(err)
	}
	pending.Close()
	pending.Close() // idempotent

	if len(discarded) != 1 || discarded[0] != 9 {
		t.Fatalf("unread value should be handed to the hook once, got %v", discarded)
	}
	if _, st := pending.TryRecv(); st != Closed {
		t.Fatalf("expected closed, got %s", st)
	}
}

func TestReply_SendOrAfterCancel(t *testing.T) {
	reply, pending := NewReply[int]()
	pending.Close()

	var discarded int
	err := reply.SendOr(3, func(v int) { discarded = v })
	if !errors.Is(err, ErrDiscarded) {
		t.Fatalf("expected ErrDiscarded, got %v", err)
	}
	if discarded != 3 {
		t.Fatalf("rejected value should be handed to the hook, got %d", discarded)
	}
}

func TestReply_ReadValueIsNotDiscarded(t *testing.T) {
	reply, pending := NewReply[int]()
	called := false
	_ = reply.SendOr(1, func(int) { called = true })

	if _, st := pending.TryRecv(); st != Ready {
		t.Fatalf("expected ready, got %s", st)
	}
	pending.Close()
	if called {
		t.Fatal("hook must not run for a value the requester read")
	}
}

func TestQueue_TrySendFull(t *testing.T) {
	tx, rx := NewPairSize[int](2)
	for i := 0; i < 2; i++ {
		if err := tx.TrySend(NewNotification(i)); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	if err := tx.TrySend(NewNotification(3)); !errors.Is(err, ErrFull) {
		t.Fatalf("expected ErrFull, got %v", err)
	}
	if rx.Len() != 2 {
		t.Fatalf("expected 2 queued, got %d", rx.Len())
	}
}

func TestQueue_DefaultCapacity(t *testing.T) {
	tx, _ := NewPair[int]()
	for i := 0; i < DefaultCapacity; i++ {
		if err := tx.TrySend(NewNotification(i)); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	if err := tx.TrySend(NewNotification(-1)); !errors.Is(err, ErrFull) {
		t.Fatalf("expected ErrFull at capacity %d, got %v", DefaultCapacity, err)
	}
}

func TestQueue_SendAfterReceiverClosed(t *testing.T) {
	tx, rx := NewPair[int]()
	rx.Close()
	if err := tx.TrySend(NewNotification(1)); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestQueue_ClosesWhenAllSendersClosed(t *testing.T) {
	tx, rx := NewPair[int]()
	clone := tx.Clone()

	if err := tx.TrySend(NewNotification(1)); err != nil {
		t.Fatal(err)
	}
	tx.Close()
	tx.Close() // idempotent

	if err := tx.TrySend(NewNotification(2)); !errors.Is(err, ErrClosed) {
		t.Fatalf("closed handle should fail, got %v", err)
	}
	if err := clone.TrySend(NewNotification(2)); err != nil {
		t.Fatalf("clone should still send: %v", err)
	}
	clone.Close()

	for _, want := range []int{1, 2} {
		msg, st := rx.TryRecv()
		if st != Ready {
			t.Fatalf("expected ready, got %s", st)
		}
		if msg.Payload != want {
			t.Fatalf("expected %d, got %d", want, msg.Payload)
		}
	}
	if _, st := rx.TryRecv(); st != Closed {
		t.Fatalf("expected closed after drain, got %s", st)
	}
	if !rx.Drained() {
		t.Fatal("receiver should report drained")
	}
}

func TestQueue_CloneOfClosedSender(t *testing.T) {
	tx, _ := NewPair[int]()
	tx.Close()
	c := tx.Clone()
	if err := c.TrySend(NewNotification(1)); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestQueue_NotifyFiresOnSend(t *testing.T) {
	tx, rx := NewPair[int]()
	var fired atomic.Int32
	rx.Notify(func() { fired.Add(1) })

	_ = tx.TrySend(NewNotification(1))
	_ = tx.TrySend(NewNotification(2))

	if got := fired.Load(); got != 1 {
		t.Fatalf("waker is one-shot, expected 1 call, got %d", got)
	}
}

func TestMessage_RequestAndNotification(t *testing.T) {
	req, pending := NewRequest("ping")
	if !req.IsRequest() || pending == nil {
		t.Fatal("request should carry a reply slot")
	}
	n := NewNotification("ping")
	if n.IsRequest() {
		t.Fatal("notification should not carry a reply slot")
	}
	if req.ID == "" || n.ID == "" || req.ID == n.ID {
		t.Fatalf("expected distinct ids, got %q and %q", req.ID, n.ID)
	}
}

func echoHandler(seen *atomic.Int32) Handler[int] {
	return HandlerFunc[int](func(_ context.Context, msg Message[int]) {
		seen.Add(1)
		if msg.IsRequest() {
			Respond(msg, msg.Payload+1)
		}
	})
}

func TestServe_RepliesOnCooperativeLoop(t *testing.T) {
	loop := runner.NewLoop()
	tx, rx := NewPair[int]()
	var seen atomic.Int32
	loop.SpawnRoot(Serve(rx, echoHandler(&seen)))

	ctx := context.Background()
	loop.RunReady(ctx) // parks on the empty queue

	req, pending := NewRequest(1)
	if err := tx.TrySend(req); err != nil {
		t.Fatal(err)
	}
	if err := tx.TrySend(NewNotification(10)); err != nil {
		t.Fatal(err)
	}
	if loop.Ready() != 1 {
		t.Fatalf("send should wake the worker, ready=%d", loop.Ready())
	}
	loop.RunReady(ctx)

	v, st := pending.TryRecv()
	if st != Ready || v != 2 {
		t.Fatalf("expected reply 2, got %s %d", st, v)
	}
	if seen.Load() != 2 {
		t.Fatalf("expected 2 envelopes handled, got %d", seen.Load())
	}

	tx.Close()
	loop.RunReady(ctx)
	if loop.Live() != 0 {
		t.Fatal("worker should exit once all senders are closed")
	}
}

func TestServe_PanicDropsReply(t *testing.T) {
	loop := runner.NewLoop()
	tx, rx := NewPair[int]()
	loop.SpawnRoot(Serve(rx, HandlerFunc[int](func(_ context.Context, msg Message[int]) {
		if msg.Payload < 0 {
			panic("negative")
		}
		Respond(msg, msg.Payload)
	})))

	bad, badPending := NewRequest(-1)
	good, goodPending := NewRequest(3)
	_ = tx.TrySend(bad)
	_ = tx.TrySend(good)
	loop.RunReady(context.Background())

	if _, st := badPending.TryRecv(); st != Closed {
		t.Fatalf("panicking request should see a closed slot, got %s", st)
	}
	if v, st := goodPending.TryRecv(); st != Ready || v != 3 {
		t.Fatalf("worker should survive the panic, got %s %d", st, v)
	}
	if loop.Live() != 1 {
		t.Fatal("worker should still be running")
	}
}

func TestServe_YieldsAfterBudget(t *testing.T) {
	loop := runner.NewLoop()
	tx, rx := NewPair[int]()
	var seen atomic.Int32
	loop.SpawnRoot(Serve(rx, echoHandler(&seen)))

	for i := 0; i < pollBudget+10; i++ {
		_ = tx.TrySend(NewNotification(i))
	}
	loop.RunReady(context.Background())
	if got := seen.Load(); got != pollBudget {
		t.Fatalf("expected %d handled in one poll, got %d", pollBudget, got)
	}
	loop.RunReady(context.Background())
	if got := seen.Load(); got != pollBudget+10 {
		t.Fatalf("expected all handled after second poll, got %d", got)
	}
}

func TestServe_CancelDropsQueuedRequests(t *testing.T) {
	loop := runner.NewLoop()
	tx, rx := NewPair[int]()
	loop.SpawnRoot(Serve(rx, echoHandler(new(atomic.Int32))))

	req, pending := NewRequest(1)
	_ = tx.TrySend(req)
	loop.Shutdown()

	if _, st := pending.TryRecv(); st != Closed {
		t.Fatalf("queued request should be dropped on cancel, got %s", st)
	}
	if err := tx.TrySend(NewNotification(2)); !errors.Is(err, ErrClosed) {
		t.Fatalf("worker gone, expected ErrClosed, got %v", err)
	}
}

func TestServe_OnPool(t *testing.T) {
	pool := runner.NewPool()
	defer func() { _ = pool.Shutdown(context.Background()) }()

	tx, rx := NewPair[int]()
	pool.SpawnRoot(Serve(rx, echoHandler(new(atomic.Int32))))

	for i := 0; i < 5; i++ {
		req, pending := NewRequest(i)
		if err := tx.TrySend(req); err != nil {
			t.Fatal(err)
		}
		if v := waitReply(t, pending); v != i+1 {
			t.Fatalf("expected %d, got %d", i+1, v)
		}
	}
}

func waitReply[M any](t *testing.T, pending *Pending[M]) M {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		v, st := pending.TryRecv()
		switch st {
		case Ready:
			return v
		case Closed:
			t.Fatal("reply slot closed")
		}
		if time.Now().After(deadline) {
			t.Fatal("no reply in time")
		}
		time.Sleep(time.Millisecond)
	}
}
