// Package auth implements the login worker: it registers an application on
// an instance, hands out the authorization URL, and exchanges the code the
// user pastes back for an access token.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ppiankov/hedgehog/internal/channel"
	"github.com/ppiankov/hedgehog/internal/runner"
)

// Worker handles auth messages. Network round trips are offloaded to tasks
// on its runner, so Handle never blocks.
type Worker struct {
	client *Client
	runner runner.Runner

	mu  sync.Mutex
	reg *Registration
}

// NewWorker creates a worker that offloads requests onto r.
func NewWorker(c *Client, r runner.Runner) *Worker {
	return &Worker{client: c, runner: r}
}

// Start spawns a worker on r alongside the current root and returns its
// send endpoint.
func Start(r runner.Runner, c *Client) *channel.Sender[Message] {
	tx, rx := channel.NewPair[Message]()
	r.Spawn(channel.Serve(rx, NewWorker(c, r)))
	slog.Debug("auth worker started")
	return tx
}

// Handle implements channel.Handler.
func (w *Worker) Handle(_ context.Context, msg channel.Message[Message]) {
	if !msg.IsRequest() {
		slog.Warn("unhandled auth notification", "type", fmt.Sprintf("%T", msg.Payload))
		return
	}

	switch p := msg.Payload.(type) {
	case Initialize:
		w.runner.Spawn(runner.Func(func(ctx context.Context) {
			respond(msg, w.initialize(ctx, p.Instance))
		}))
	case SubmitCode:
		w.mu.Lock()
		reg := w.reg
		w.mu.Unlock()
		if reg == nil {
			respond(msg, Failed{Reason: "no registration, initialize first"})
			return
		}
		w.runner.Spawn(runner.Func(func(ctx context.Context) {
			respond(msg, w.submit(ctx, reg, p.Code))
		}))
	default:
		respond(msg, Failed{Reason: fmt.Sprintf("unexpected request %T", msg.Payload)})
	}
}

func (w *Worker) initialize(ctx context.Context, instance string) Message {
	slog.Debug("registering app", "instance", instance)
	reg, err := w.client.Register(ctx, instance)
	if err != nil {
		slog.Warn("registration failed", "instance", instance, "error", err)
		return Failed{Reason: err.Error()}
	}

	w.mu.Lock()
	w.reg = reg
	w.mu.Unlock()

	u := reg.AuthorizeURL()
	slog.Debug("authorize url", "url", u)
	return AuthorizeURL{URL: u}
}

func (w *Worker) submit(ctx context.Context, reg *Registration, code string) Message {
	token, err := w.client.ExchangeCode(ctx, reg, code)
	if err != nil {
		slog.Warn("code exchange failed", "instance", reg.Instance, "error", err)
		return Failed{Reason: err.Error()}
	}
	acct, err := w.client.VerifyCredentials(ctx, reg.Instance, token)
	if err != nil {
		slog.Warn("verify credentials failed", "instance", reg.Instance, "error", err)
		return Failed{Reason: err.Error()}
	}
	slog.Info("authenticated", "instance", reg.Instance, "username", acct.Username)
	return Authenticated{Instance: reg.Instance, Username: acct.Username}
}

func respond(msg channel.Message[Message], v Message) {
	channel.Respond(msg, v)
}
