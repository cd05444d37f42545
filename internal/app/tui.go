// Package app is the terminal front end. Its bubbletea model pumps the
// service and auth bridges on every tick and renders their states.
package app

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ppiankov/hedgehog/internal/auth"
	"github.com/ppiankov/hedgehog/internal/bridge"
	"github.com/ppiankov/hedgehog/internal/channel"
	"github.com/ppiankov/hedgehog/internal/runner"
	"github.com/ppiankov/hedgehog/internal/service"
	"github.com/ppiankov/hedgehog/internal/store"
)

// DefaultTick is the pump interval when Config.Tick is unset.
const DefaultTick = 100 * time.Millisecond

type tickMsg time.Time

type focus int

const (
	focusNone focus = iota
	focusLabel
	focusAuth
)

// Config wires the model to its workers.
type Config struct {
	Runner  runner.Runner
	Loop    *runner.Loop // set when tasks run cooperatively inside the tick
	Service *channel.Sender[service.Message]
	Store   *store.Store // nil disables persistence
	Fields  store.Fields
	Tick    time.Duration
}

// Model is the bubbletea model of the main screen.
type Model struct {
	ctx   context.Context
	tick  time.Duration
	loop  *runner.Loop
	store *store.Store

	svc    *bridge.Bridge[service.Message, ServiceState]
	auth   *bridge.Bridge[auth.Message, AuthSession]
	authTx *channel.Sender[auth.Message]
	known  AuthSession // last completed auth session

	input  textinput.Model
	focus  focus
	fields store.Fields
	value  float64

	frame    int
	width    int
	height   int
	quitting bool
	saveErr  error
}

// New creates the model. ctx is handed to cooperative tasks and bounds the
// final save.
func New(ctx context.Context, cfg Config) Model {
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	if cfg.Fields.Label == "" {
		cfg.Fields.Label = store.DefaultLabel
	}
	ti := textinput.New()
	ti.CharLimit = 256
	ti.Width = 48

	return Model{
		ctx:    ctx,
		tick:   cfg.Tick,
		loop:   cfg.Loop,
		store:  cfg.Store,
		svc:    bridge.New[service.Message, ServiceState](cfg.Service, cfg.Runner),
		input:  ti,
		fields: cfg.Fields,
		value:  2.7,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tickCmd(m.tick)
}

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m.quit()
		}
		if m.focus != focusNone {
			return m.updateInput(msg)
		}
		switch msg.String() {
		case "q":
			return m.quit()
		case "e":
			m.invokeEcho()
		case "+":
			m.value++
		case "a":
			m.startAuth()
		case "tab":
			return m.focusOn(focusLabel, m.fields.Label)
		case "enter":
			if m.auth != nil {
				return m.focusOn(focusAuth, m.authDefault())
			}
		}

	case tickMsg:
		m.pump()
		m.frame++
		return m, tickCmd(m.tick)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}

	return m, nil
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.blur()
		return m, nil
	case "tab":
		if m.focus == focusLabel && m.auth != nil {
			m.fields.Label = m.input.Value()
			return m.focusOn(focusAuth, m.authDefault())
		}
		m.commit()
		return m, nil
	case "enter":
		m.commit()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) focusOn(f focus, value string) (tea.Model, tea.Cmd) {
	m.focus = f
	m.input.SetValue(value)
	m.input.CursorEnd()
	switch f {
	case focusLabel:
		m.input.Placeholder = "write something"
	case focusAuth:
		if m.known.AuthorizeURL == "" {
			m.input.Placeholder = "instance, e.g. mastodon.social"
		} else {
			m.input.Placeholder = "authorization code"
		}
	}
	return m, m.input.Focus()
}

func (m *Model) blur() {
	m.focus = focusNone
	m.input.Blur()
	m.input.SetValue("")
}

// commit applies the focused input and leaves input mode.
func (m *Model) commit() {
	v := strings.TrimSpace(m.input.Value())
	switch m.focus {
	case focusLabel:
		m.fields.Label = m.input.Value()
	case focusAuth:
		if v != "" {
			m.submitAuth(v)
		}
	}
	m.blur()
}

func (m *Model) invokeEcho() {
	if err := m.svc.Send(service.Echo{N: 1}, foldService); err != nil {
		slog.Warn("echo request failed", "error", err)
	}
}

func (m *Model) startAuth() {
	if err := m.svc.Send(service.StartAuth{}, foldService); err != nil {
		slog.Warn("start auth failed", "error", err)
	}
}

func (m *Model) submitAuth(v string) {
	if m.auth == nil {
		return
	}
	var err error
	if m.known.AuthorizeURL == "" || m.known.Username != "" {
		m.fields.Instance = v
		m.known = AuthSession{}
		err = m.auth.Send(auth.Initialize{Instance: v}, FoldAuth)
	} else {
		err = m.auth.Send(auth.SubmitCode{Code: v}, FoldAuth)
	}
	if err != nil {
		slog.Warn("auth request failed", "error", err)
	}
}

func (m Model) authDefault() string {
	if m.known.AuthorizeURL == "" {
		return m.fields.Instance
	}
	return ""
}

// pump advances cooperative tasks and folds any replies that arrived.
func (m *Model) pump() {
	if m.loop != nil {
		m.loop.RunReady(m.ctx)
	}

	if m.svc.Pump() {
		if st, ok := m.svc.Value(); ok && st.Auth != nil && st.Auth != m.authTx {
			m.attachAuth(st.Auth)
		}
	}
	if m.auth != nil && m.auth.Pump() {
		if s, ok := m.auth.Value(); ok {
			m.known = s
			if s.Username != "" {
				m.fields.Username = s.Username
			}
		}
	}
}

// attachAuth replaces the auth bridge with one talking to tx.
func (m *Model) attachAuth(tx *channel.Sender[auth.Message]) {
	if m.auth != nil {
		m.auth.Close()
	}
	m.auth = bridge.New[auth.Message, AuthSession](tx, m.svc.Runner())
	m.authTx = tx
	m.known = AuthSession{}
	slog.Debug("auth session attached")

	if m.focus == focusNone {
		m.focus = focusAuth
		m.input.SetValue(m.fields.Instance)
		m.input.CursorEnd()
		m.input.Placeholder = "instance, e.g. mastodon.social"
		m.input.Focus()
	}
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	return m.Finish(), tea.Quit
}

// Finish saves the UI fields and closes the bridges. Only the first call
// does anything; the quit keys call it, and the host calls it again after
// the program ended, which covers a program killed by a signal.
func (m Model) Finish() Model {
	if m.quitting {
		return m
	}
	m.quitting = true
	if m.focus == focusLabel {
		m.fields.Label = m.input.Value()
	}
	if m.store != nil {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(m.ctx), 2*time.Second)
		defer cancel()
		if err := m.store.SaveFields(ctx, m.fields); err != nil {
			slog.Error("save ui fields", "error", err)
			m.saveErr = err
		}
	}
	if m.auth != nil {
		m.auth.Close()
	}
	m.svc.Close()
	return m
}

// Fields returns the UI fields as they would be saved.
func (m Model) Fields() store.Fields {
	return m.fields
}

// SaveErr returns the error of the save performed on quit, if any.
func (m Model) SaveErr() error {
	return m.saveErr
}
