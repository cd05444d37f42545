// Package channel provides the request/reply messaging contract between a
// presentation loop and its workers: envelopes, single-use reply slots, the
// bounded inbound queue and the worker loop that drains it.
package channel

import (
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrClosed is returned when sending into a queue whose receiver has gone
	// away or whose senders were all closed, and by Recv once a queue is
	// closed and drained.
	ErrClosed = errors.New("channel: closed")

	// ErrFull is returned by TrySend when the queue is at capacity.
	ErrFull = errors.New("channel: queue full")

	// ErrDiscarded is returned by Reply.Send when the requester closed its
	// side first, usually because a newer request superseded this one.
	ErrDiscarded = errors.New("channel: reply discarded by requester")

	// ErrAlreadySent is returned by Reply.Send on a second write.
	ErrAlreadySent = errors.New("channel: reply already sent")
)

// Message is an envelope carrying a payload to a worker. A Request carries a
// reply slot and expects exactly one reply; a Notification has none.
type Message[M any] struct {
	ID      string
	Payload M
	Reply   *Reply[M] // nil for notifications
}

// IsRequest reports whether the message expects a reply.
func (m Message[M]) IsRequest() bool {
	return m.Reply != nil
}

// NewRequest wraps payload in a request envelope and returns the pending
// side of its reply slot.
func NewRequest[M any](payload M) (Message[M], *Pending[M]) {
	reply, pending := NewReply[M]()
	return Message[M]{
		ID:      uuid.NewString(),
		Payload: payload,
		Reply:   reply,
	}, pending
}

// NewNotification wraps payload in a fire-and-forget envelope.
func NewNotification[M any](payload M) Message[M] {
	return Message[M]{
		ID:      uuid.NewString(),
		Payload: payload,
	}
}
