// Package ui binds the state store to a terminal interface: a channel
// sidebar, a message pane, and a composer, plus login and signup forms in
// front of them. It holds only ephemeral presentation state; everything
// durable lives in the store.
package ui

import (
	"context"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/parleychat/parley"
	"github.com/parleychat/parley/session"
	"github.com/parleychat/parley/state"
)

// modal enumerates the channel management prompts.
type modal int

const (
	modalNone modal = iota
	modalAdd
	modalRename
	modalDelete
)

// Model is the Bubble Tea model for the whole client.
type Model struct {
	transport parley.Transport
	session   *session.Session
	guard     *session.Guard
	store     *state.Store
	events    <-chan parley.Event
	keys      KeyMap

	screen session.View

	// login / signup form
	username   textinput.Model
	password   textinput.Model
	focusPass  bool
	formErr    string
	submitting bool

	// chat screen
	composer    textinput.Model
	viewport    viewport.Model
	modal       modal
	modalInput  textinput.Model
	modalErr    string
	targetID    string // channel the rename/delete modal refers to
	pendingName string // name submitted from the add/rename modal
	inlineErr   string

	connected bool
	degraded  bool
	sending   bool

	width  int
	height int
	ready  bool
}

// New builds the client model. events is fed by the transport's push
// subscription; the model drains it through its own command loop.
func New(t parley.Transport, sess *session.Session, store *state.Store, events <-chan parley.Event) Model {
	username := textinput.New()
	username.Placeholder = "username"
	username.Focus()
	username.CharLimit = 64

	password := textinput.New()
	password.Placeholder = "password"
	password.EchoMode = textinput.EchoPassword
	password.CharLimit = 64

	composer := textinput.New()
	composer.Placeholder = "message…"
	composer.CharLimit = 400

	modalInput := textinput.New()
	modalInput.CharLimit = parley.ChannelNameMax

	guard := session.NewGuard(sess)

	return Model{
		transport:  t,
		session:    sess,
		guard:      guard,
		store:      store,
		events:     events,
		keys:       DefaultKeyMap(),
		screen:     guard.Resolve(session.ViewChat),
		username:   username,
		password:   password,
		composer:   composer,
		modalInput: modalInput,
	}
}

// Init starts draining push events.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), textinput.Blink)
}

// Messages produced by commands.

type pushEventMsg struct {
	ev parley.Event
	ok bool
}

type authResultMsg struct {
	auth *parley.AuthResponse
	err  error
}

type bulkResultMsg struct {
	data *parley.BulkData
	err  error
}

type sendResultMsg struct{ err error }

type createResultMsg struct {
	ch  *parley.Channel
	err error
}

type renameResultMsg struct{ err error }

type deleteResultMsg struct{ err error }

// waitForEvent blocks on the push channel and resolves to one event. The
// update loop re-issues it after every delivery. A closed channel means
// the reconnect budget ran out.
func waitForEvent(events <-chan parley.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		return pushEventMsg{ev: ev, ok: ok}
	}
}

func (m Model) loginCmd(creds parley.Credentials, signup bool) tea.Cmd {
	return func() tea.Msg {
		var (
			auth *parley.AuthResponse
			err  error
		)
		if signup {
			auth, err = m.transport.Signup(context.Background(), creds)
		} else {
			auth, err = m.transport.Login(context.Background(), creds)
		}
		return authResultMsg{auth: auth, err: err}
	}
}

func (m Model) bulkFetchCmd() tea.Cmd {
	return func() tea.Msg {
		data, err := m.transport.BulkFetch(context.Background())
		return bulkResultMsg{data: data, err: err}
	}
}

func (m Model) sendCmd(msg parley.OutgoingMessage) tea.Cmd {
	return func() tea.Msg {
		return sendResultMsg{err: m.transport.SendMessage(context.Background(), msg)}
	}
}

func (m Model) createChannelCmd(name string) tea.Cmd {
	return func() tea.Msg {
		ch, err := m.transport.CreateChannel(context.Background(), name)
		return createResultMsg{ch: ch, err: err}
	}
}

func (m Model) renameChannelCmd(id, name string) tea.Cmd {
	return func() tea.Msg {
		return renameResultMsg{err: m.transport.RenameChannel(context.Background(), id, name)}
	}
}

func (m Model) deleteChannelCmd(id string) tea.Cmd {
	return func() tea.Msg {
		return deleteResultMsg{err: m.transport.DeleteChannel(context.Background(), id)}
	}
}

// CanSend reports whether the composer accepts a submit right now: the
// socket must be up and no send may be in flight.
func (m Model) CanSend() bool {
	return m.connected && !m.sending && !m.degraded
}
