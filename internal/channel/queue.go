package channel

import (
	"sync"
	"sync/atomic"
)

// DefaultCapacity is the depth of a worker's inbound queue.
const DefaultCapacity = 255

type queue[M any] struct {
	ch chan Message[M]

	// mu orders sends against close(ch); senders hold it shared.
	mu      sync.RWMutex
	senders int
	closed  atomic.Bool // set under mu, read without it

	gone     chan struct{} // closed by the receiver
	goneOnce sync.Once

	wmu   sync.Mutex
	waker func()
}

// wake fires the registered waker, if any. The waker is one-shot.
func (q *queue[M]) wake() {
	q.wmu.Lock()
	w := q.waker
	q.waker = nil
	q.wmu.Unlock()
	if w != nil {
		w()
	}
}

// Sender is a send endpoint into a worker's inbound queue. Several handles
// may exist (see Clone); the queue closes when all of them are closed.
type Sender[M any] struct {
	q      *queue[M]
	once   sync.Once
	closed atomic.Bool
}

// Receiver is the single receive endpoint owned by a worker.
type Receiver[M any] struct {
	q *queue[M]
}

// NewPair creates a queue with DefaultCapacity.
func NewPair[M any]() (*Sender[M], *Receiver[M]) {
	return NewPairSize[M](DefaultCapacity)
}

// NewPairSize creates a queue holding up to size envelopes.
func NewPairSize[M any](size int) (*Sender[M], *Receiver[M]) {
	if size < 1 {
		size = 1
	}
	q := &queue[M]{
		ch:      make(chan Message[M], size),
		senders: 1,
		gone:    make(chan struct{}),
	}
	return &Sender[M]{q: q}, &Receiver[M]{q: q}
}

// TrySend enqueues msg without blocking. It returns ErrFull when the queue
// is at capacity and ErrClosed when the worker is gone or this handle was
// closed. On error the envelope was not delivered.
func (s *Sender[M]) TrySend(msg Message[M]) error {
	if s.closed.Load() {
		return ErrClosed
	}
	q := s.q
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed.Load() {
		return ErrClosed
	}
	select {
	case <-q.gone:
		return ErrClosed
	default:
	}

	select {
	case q.ch <- msg:
	default:
		return ErrFull
	}
	q.wake()
	return nil
}

// Clone returns another handle to the same queue. Cloning a closed handle
// returns a closed handle.
func (s *Sender[M]) Clone() *Sender[M] {
	c := &Sender[M]{q: s.q}
	if s.closed.Load() {
		c.closed.Store(true)
		return c
	}
	q := s.q
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed.Load() {
		c.closed.Store(true)
		return c
	}
	q.senders++
	return c
}

// Close releases this handle. When the last handle is closed the worker
// receives "no more messages" after draining what is queued. Close is
// idempotent.
func (s *Sender[M]) Close() {
	s.once.Do(func() {
		s.closed.Store(true)
		q := s.q
		q.mu.Lock()
		q.senders--
		if q.senders == 0 && !q.closed.Load() {
			q.closed.Store(true)
			close(q.ch)
		}
		q.mu.Unlock()
		q.wake()
	})
}

// TryRecv takes the next envelope without blocking.
func (r *Receiver[M]) TryRecv() (Message[M], RecvStatus) {
	select {
	case msg, ok := <-r.q.ch:
		if !ok {
			return Message[M]{}, Closed
		}
		return msg, Ready
	default:
		return Message[M]{}, Empty
	}
}

// Notify registers fn to be called once when an envelope is enqueued or the
// queue closes. It replaces any previous registration.
func (r *Receiver[M]) Notify(fn func()) {
	r.q.wmu.Lock()
	r.q.waker = fn
	r.q.wmu.Unlock()
}

// Len returns the number of queued envelopes.
func (r *Receiver[M]) Len() int {
	return len(r.q.ch)
}

// Drained reports whether every sender is closed and nothing is left queued.
func (r *Receiver[M]) Drained() bool {
	return r.q.closed.Load() && len(r.q.ch) == 0
}

// Close marks the worker as gone. Senders fail with ErrClosed from now on;
// envelopes already queued can still be taken with TryRecv.
func (r *Receiver[M]) Close() {
	r.q.goneOnce.Do(func() {
		close(r.q.gone)
	})
}
