package app

import (
	"fmt"

	"github.com/ppiankov/hedgehog/internal/auth"
	"github.com/ppiankov/hedgehog/internal/bridge"
	"github.com/ppiankov/hedgehog/internal/channel"
	"github.com/ppiankov/hedgehog/internal/service"
)

// ServiceState is what the UI folds out of echo service replies.
type ServiceState struct {
	Counter uint32
	Auth    *channel.Sender[auth.Message] // latest auth worker, if any
}

func (s ServiceState) String() string {
	return fmt.Sprint(s.Counter)
}

// foldService adds echoed values to the counter and records spawned auth
// workers.
func foldService(reply service.Message, prior bridge.Option[ServiceState]) (ServiceState, error) {
	next := prior.OrElse(ServiceState{})
	switch r := reply.(type) {
	case service.Echo:
		next.Counter += r.N
	case service.AuthStarted:
		next.Auth = r.Tx
	default:
		return next, fmt.Errorf("unexpected service reply %T", reply)
	}
	return next, nil
}

// AuthSession is what the UI folds out of auth worker replies.
type AuthSession struct {
	AuthorizeURL string
	Instance     string
	Username     string
}

func (s AuthSession) String() string {
	switch {
	case s.Username != "":
		return "logged in as " + s.Username
	case s.AuthorizeURL != "":
		return "waiting for code"
	default:
		return "not registered"
	}
}

// FoldAuth records the authorize URL and the signed-in account. A Failed
// reply becomes an error.
func FoldAuth(reply auth.Message, prior bridge.Option[AuthSession]) (AuthSession, error) {
	next := prior.OrElse(AuthSession{})
	switch r := reply.(type) {
	case auth.AuthorizeURL:
		next.AuthorizeURL = r.URL
		next.Username = ""
	case auth.Authenticated:
		next.Instance = r.Instance
		next.Username = r.Username
	case auth.Failed:
		return next, fmt.Errorf("%s", r.Reason)
	default:
		return next, fmt.Errorf("unexpected auth reply %T", reply)
	}
	return next, nil
}

// describe renders a bridge state for display.
func describe[S fmt.Stringer](snap bridge.Snapshot[S]) string {
	switch snap.Kind {
	case bridge.Init:
		return "Init (not run yet)"
	case bridge.Awaiting:
		last := "None"
		if p, ok := snap.Prior.Get(); ok {
			last = p.String()
		}
		return fmt.Sprintf("Awaiting (last value: %s)", last)
	case bridge.Updating:
		return "Updating"
	case bridge.Complete:
		return "Complete: " + snap.Value.String()
	case bridge.Error:
		return "Error: " + snap.Err
	default:
		return snap.Kind.String()
	}
}

// lastSession returns the most recent auth session the bridge knows about.
func lastSession(snap bridge.Snapshot[AuthSession]) AuthSession {
	switch snap.Kind {
	case bridge.Complete:
		return snap.Value
	case bridge.Awaiting:
		return snap.Prior.OrElse(AuthSession{})
	default:
		return AuthSession{}
	}
}
