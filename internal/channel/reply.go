package channel

import "sync"

// RecvStatus is the outcome of a non-blocking receive.
type RecvStatus int

const (
	Empty RecvStatus = iota
	Ready
	Closed
)

func (s RecvStatus) String() string {
	switch s {
	case Empty:
		return "empty"
	case Ready:
		return "ready"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

type slotState int

const (
	slotOpen slotState = iota
	slotFilled
	slotDropped
	slotCancelled
	slotTaken
)

type slot[M any] struct {
	mu      sync.Mutex
	state   slotState
	value   M
	discard func(M) // called with a written value the requester never read
}

// Reply is the write side of a single-use reply slot, held by the worker.
type Reply[M any] struct {
	s *slot[M]
}

// Pending is the read side of a single-use reply slot, held by the requester.
type Pending[M any] struct {
	s *slot[M]
}

// NewReply creates a reply slot pair.
func NewReply[M any]() (*Reply[M], *Pending[M]) {
	s := &slot[M]{}
	return &Reply[M]{s: s}, &Pending[M]{s: s}
}

// Send writes the reply. It fails with ErrDiscarded if the requester has
// closed the slot and with ErrAlreadySent if the slot was already written
// or dropped. Workers treat ErrDiscarded as a normal outcome.
func (r *Reply[M]) Send(v M) error {
	return r.SendOr(v, nil)
}

// SendOr is Send for values that own resources. onDiscard is called with v
// whenever v never reaches the requester: right away when the write fails,
// or later when the requester closes the slot before reading it.
func (r *Reply[M]) SendOr(v M, onDiscard func(M)) error {
	s := r.s
	s.mu.Lock()
	var err error
	switch s.state {
	case slotOpen:
		s.value = v
		s.discard = onDiscard
		s.state = slotFilled
	case slotCancelled:
		err = ErrDiscarded
	default:
		err = ErrAlreadySent
	}
	s.mu.Unlock()

	if err != nil && onDiscard != nil {
		onDiscard(v)
	}
	return err
}

// Drop closes the slot without a value. The requester observes Closed.
// Dropping an already written or cancelled slot does nothing.
func (r *Reply[M]) Drop() {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == slotOpen {
		s.state = slotDropped
	}
}

// TryRecv checks the slot without blocking. Ready is returned at most once;
// after that, or after the worker dropped the slot, it returns Closed.
func (p *Pending[M]) TryRecv() (M, RecvStatus) {
	var zero M
	s := p.s
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case slotOpen:
		return zero, Empty
	case slotFilled:
		v := s.value
		s.value = zero
		s.discard = nil
		s.state = slotTaken
		return v, Ready
	default:
		return zero, Closed
	}
}

// Close cancels the slot. A later Reply.Send fails with ErrDiscarded and a
// value already written but not read is discarded, through the hook given
// to SendOr if there was one.
func (p *Pending[M]) Close() {
	var zero M
	s := p.s
	s.mu.Lock()
	var (
		unread  M
		discard func(M)
	)
	switch s.state {
	case slotOpen:
		s.state = slotCancelled
	case slotFilled:
		unread, discard = s.value, s.discard
		s.value, s.discard = zero, nil
		s.state = slotCancelled
	}
	s.mu.Unlock()

	if discard != nil {
		discard(unread)
	}
}
