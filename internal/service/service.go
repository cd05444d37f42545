// Package service implements the background echo worker the UI talks to
// through a bridge. Besides echoing it hands out auth workers on demand.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/ppiankov/hedgehog/internal/auth"
	"github.com/ppiankov/hedgehog/internal/channel"
	"github.com/ppiankov/hedgehog/internal/runner"
)

// DefaultStep is added to every echoed value unless configured otherwise.
const DefaultStep = 1

// Message is the envelope payload understood by the service.
type Message interface {
	serviceMessage()
}

// Echo asks for N plus the current step. The reply is an Echo too.
type Echo struct {
	N uint32
}

// StartAuth asks the service to spawn an auth worker. Replied with
// AuthStarted.
type StartAuth struct{}

// AuthStarted carries the send endpoint of a freshly spawned auth worker.
// The receiver owns Tx and closes it when done. If the reply is superseded
// before it is read, Tx is closed by the service.
type AuthStarted struct {
	Tx *channel.Sender[auth.Message]
}

// Configure changes the echo step. Usually sent as a notification; as a
// request it is answered with the applied Configure.
type Configure struct {
	Step uint32
}

func (Echo) serviceMessage()        {}
func (StartAuth) serviceMessage()   {}
func (AuthStarted) serviceMessage() {}
func (Configure) serviceMessage()   {}

// Config holds service configuration.
type Config struct {
	Step uint32
	Auth *auth.Client // client handed to spawned auth workers
}

// Service handles service messages.
type Service struct {
	runner runner.Runner
	auth   *auth.Client
	step   atomic.Uint32
}

// New creates a service that spawns sub-workers on r.
func New(r runner.Runner, cfg Config) *Service {
	s := &Service{runner: r, auth: cfg.Auth}
	if cfg.Step == 0 {
		cfg.Step = DefaultStep
	}
	s.step.Store(cfg.Step)
	return s
}

// Start spawns the service loop on r as a root task and returns its send
// endpoint.
func Start(r runner.Runner, cfg Config) *channel.Sender[Message] {
	tx, rx := channel.NewPair[Message]()
	r.SpawnRoot(channel.Serve(rx, New(r, cfg)))
	slog.Debug("echo service started", "step", cfg.Step)
	return tx
}

// Step returns the current echo step.
func (s *Service) Step() uint32 {
	return s.step.Load()
}

// Handle implements channel.Handler.
func (s *Service) Handle(_ context.Context, msg channel.Message[Message]) {
	switch p := msg.Payload.(type) {
	case Echo:
		if !msg.IsRequest() {
			slog.Warn("echo sent as notification, nothing to reply to", "n", p.N)
			return
		}
		respond(msg, Echo{N: p.N + s.step.Load()})

	case StartAuth:
		if !msg.IsRequest() {
			slog.Warn("start auth sent as notification ignored")
			return
		}
		if s.auth == nil {
			slog.Warn("auth requested but no client configured")
			msg.Reply.Drop()
			return
		}
		tx := auth.Start(s.runner, s.auth)
		// if the UI never reads the reply, nobody will talk to this worker
		release := func(Message) { tx.Close() }
		if err := msg.Reply.SendOr(AuthStarted{Tx: tx}, release); err != nil {
			if errors.Is(err, channel.ErrDiscarded) {
				slog.Debug("auth start superseded", "id", msg.ID)
				return
			}
			slog.Warn("failed to reply auth start", "id", msg.ID, "error", err)
		}

	case Configure:
		if p.Step == 0 {
			slog.Warn("ignoring zero echo step")
		} else {
			s.step.Store(p.Step)
			slog.Info("echo step changed", "step", p.Step)
		}
		if msg.IsRequest() {
			respond(msg, Configure{Step: s.step.Load()})
		}

	default:
		slog.Warn("unhandled service message", "type", fmt.Sprintf("%T", msg.Payload))
		if msg.Reply != nil {
			msg.Reply.Drop()
		}
	}
}

func respond(msg channel.Message[Message], v Message) {
	channel.Respond(msg, v)
}
