package bridge

import (
	"fmt"
	"log/slog"

	"github.com/ppiankov/hedgehog/internal/channel"
)

// Kind identifies the variant of a bridge's state.
type Kind int

const (
	Init Kind = iota
	Awaiting
	Updating
	Complete
	Error
)

func (k Kind) String() string {
	switch k {
	case Init:
		return "INIT"
	case Awaiting:
		return "AWAITING"
	case Updating:
		return "UPDATING"
	case Complete:
		return "COMPLETE"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Option holds a value that may be absent.
type Option[S any] struct {
	value S
	ok    bool
}

// Some returns a present Option.
func Some[S any](v S) Option[S] {
	return Option[S]{value: v, ok: true}
}

// None returns an absent Option.
func None[S any]() Option[S] {
	return Option[S]{}
}

// Get returns the value and whether it is present.
func (o Option[S]) Get() (S, bool) {
	return o.value, o.ok
}

// IsSome reports whether a value is present.
func (o Option[S]) IsSome() bool {
	return o.ok
}

// OrElse returns the value, or def when absent.
func (o Option[S]) OrElse(def S) S {
	if o.ok {
		return o.value
	}
	return def
}

func (o Option[S]) String() string {
	if !o.ok {
		return "None"
	}
	return fmt.Sprint(o.value)
}

// Reducer folds a reply and the optional prior state into a new state.
// Returning an error moves the bridge to Error instead of Complete.
type Reducer[M, S any] func(reply M, prior Option[S]) (S, error)

// oneShot enforces that a reducer runs at most once.
type oneShot[M, S any] struct {
	fn Reducer[M, S]
}

func (o *oneShot[M, S]) call(reply M, prior Option[S]) (next S, err error) {
	if o.fn == nil {
		return next, ErrReducerConsumed
	}
	fn := o.fn
	o.fn = nil

	defer func() {
		if r := recover(); r != nil {
			slog.Error("reducer panicked", "panic", r)
			err = fmt.Errorf("reducer panicked: %v", r)
		}
	}()
	return fn(reply, prior)
}

// state is the internal state value. Which fields are meaningful depends on kind.
type state[M, S any] struct {
	kind Kind

	// Awaiting
	pending   *channel.Pending[M]
	requestID string
	prior     Option[S]
	reducer   *oneShot[M, S]

	// Complete
	value S

	// Error
	err string
}

// Snapshot is the read-only view of a bridge's state.
type Snapshot[S any] struct {
	Kind      Kind
	Value     S         // set when Kind == Complete
	Prior     Option[S] // set when Kind == Awaiting
	RequestID string    // set when Kind == Awaiting
	Err       string    // set when Kind == Error
}
