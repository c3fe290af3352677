package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/parleychat/parley"
	"github.com/parleychat/parley/session"
	"github.com/parleychat/parley/state"
)

// Update drives the whole client: user input, resolved request results,
// and push events all arrive here and are applied to completion before the
// next message is handled.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg), nil

	case pushEventMsg:
		return m.handlePushEvent(msg)

	case authResultMsg:
		return m.handleAuthResult(msg)

	case bulkResultMsg:
		return m.handleBulkResult(msg)

	case sendResultMsg:
		m.sending = false
		if msg.err != nil {
			// the draft stays in the composer for another try
			m.inlineErr = msg.err.Error()
			return m, nil
		}
		m.composer.Reset()
		m.inlineErr = ""
		return m, nil

	case createResultMsg:
		return m.handleCreateResult(msg)

	case renameResultMsg:
		if msg.err != nil && !parley.IsNotFound(msg.err) {
			m.modalErr = msg.err.Error()
			return m, nil
		}
		if msg.err == nil {
			m.store.RenameChannel(m.targetID, m.pendingName)
		}
		// NotFound means the channel is already gone; the push event
		// will have cleaned up
		m.closeModal()
		return m, nil

	case deleteResultMsg:
		if msg.err != nil && !parley.IsNotFound(msg.err) {
			m.modalErr = msg.err.Error()
			return m, nil
		}
		m.store.RemoveChannel(m.targetID)
		m.closeModal()
		m.refreshMessages(true)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleResize(msg tea.WindowSizeMsg) Model {
	m.width = msg.Width
	m.height = msg.Height

	vpWidth := msg.Width - sidebarWidth - 3
	vpHeight := msg.Height - 5
	if vpWidth < 20 {
		vpWidth = 20
	}
	if vpHeight < 3 {
		vpHeight = 3
	}

	if !m.ready {
		m.viewport = viewport.New(vpWidth, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = vpWidth
		m.viewport.Height = vpHeight
	}
	m.composer.Width = vpWidth - 4
	m.refreshMessages(true)
	return m
}

func (m Model) handlePushEvent(msg pushEventMsg) (tea.Model, tea.Cmd) {
	if !msg.ok {
		// reconnect budget exhausted; degraded mode, not fatal
		m.connected = false
		m.degraded = true
		return m, nil
	}

	if msg.ev.Kind == parley.EventConnectionChanged {
		m.connected = msg.ev.Connected
		return m, waitForEvent(m.events)
	}

	before := m.store.Snapshot().ActiveChannelID
	m.store.Apply(msg.ev)

	// scroll to the newest message when the active channel's pane grew,
	// and rebuild if the channel list or active channel changed
	switch msg.ev.Kind {
	case parley.EventNewMessage:
		if msg.ev.Message != nil && msg.ev.Message.ChannelID == before {
			m.refreshMessages(true)
		}
	default:
		m.refreshMessages(m.store.Snapshot().ActiveChannelID != before)
	}

	return m, waitForEvent(m.events)
}

func (m Model) handleAuthResult(msg authResultMsg) (tea.Model, tea.Cmd) {
	m.submitting = false
	if msg.err != nil {
		m.formErr = msg.err.Error()
		return m, nil
	}

	m.formErr = ""
	m.store.SetCurrentUser(msg.auth.Username)
	m.screen = m.guard.AfterLogin()
	m.store.BulkLoadStarted()
	return m, m.bulkFetchCmd()
}

func (m Model) handleBulkResult(msg bulkResultMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.store.BulkLoadFailed(msg.err.Error())
		if parley.IsUnauthorized(msg.err) {
			m.screen = m.guard.Logout()
		}
		return m, nil
	}

	m.store.BulkLoadSucceeded(*msg.data)
	// messages pushed before the fetch landed are waiting on their
	// channels, which are known now
	m.transport.ReplayPending()
	m.composer.Focus()
	m.refreshMessages(true)
	return m, nil
}

func (m Model) handleCreateResult(msg createResultMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.modalErr = msg.err.Error()
		return m, nil
	}

	// optimistic activation: make the new channel current before its
	// push event lands; the event is then a duplicate the store drops
	m.store.AddChannel(*msg.ch)
	m.store.SetActiveChannel(msg.ch.ID)
	m.closeModal()
	m.refreshMessages(true)
	return m, nil
}

func (m *Model) closeModal() {
	m.modal = modalNone
	m.modalErr = ""
	m.pendingName = ""
	m.targetID = ""
	m.modalInput.Reset()
	m.modalInput.Blur()
	m.composer.Focus()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}

	switch m.screen {
	case session.ViewLogin, session.ViewSignup:
		return m.handleFormKey(msg)
	default:
		if m.modal != modalNone {
			return m.handleModalKey(msg)
		}
		return m.handleChatKey(msg)
	}
}

func (m Model) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab", "shift+tab":
		m.focusPass = !m.focusPass
		if m.focusPass {
			m.username.Blur()
			m.password.Focus()
		} else {
			m.password.Blur()
			m.username.Focus()
		}
		return m, nil

	case "ctrl+s":
		// toggle between login and signup
		if m.screen == session.ViewLogin {
			m.screen = session.ViewSignup
		} else {
			m.screen = session.ViewLogin
		}
		m.formErr = ""
		return m, nil

	case "enter":
		if m.submitting {
			return m, nil
		}
		creds := parley.Credentials{
			Username: strings.TrimSpace(m.username.Value()),
			Password: m.password.Value(),
		}
		if creds.Username == "" || creds.Password == "" {
			m.formErr = "username and password are required"
			return m, nil
		}
		m.submitting = true
		m.formErr = ""
		return m, m.loginCmd(creds, m.screen == session.ViewSignup)
	}

	var cmd tea.Cmd
	if m.focusPass {
		m.password, cmd = m.password.Update(msg)
	} else {
		m.username, cmd = m.username.Update(msg)
	}
	return m, cmd
}

func (m Model) handleModalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Cancel) {
		m.closeModal()
		return m, nil
	}

	if msg.String() == "enter" {
		switch m.modal {
		case modalDelete:
			return m, m.deleteChannelCmd(m.targetID)

		case modalAdd, modalRename:
			name := strings.TrimSpace(m.modalInput.Value())
			if err := m.validateName(name); err != nil {
				m.modalErr = err.Error()
				return m, nil
			}
			m.pendingName = name
			if m.modal == modalAdd {
				return m, m.createChannelCmd(name)
			}
			return m, m.renameChannelCmd(m.targetID, name)
		}
	}

	var cmd tea.Cmd
	m.modalInput, cmd = m.modalInput.Update(msg)
	return m, cmd
}

// validateName runs the advisory pre-submit check against the channels
// currently known. The channel being renamed does not conflict with
// itself.
func (m Model) validateName(name string) error {
	snap := m.store.Snapshot()
	others := make([]*parley.Channel, 0, len(snap.Channels))
	for i := range snap.Channels {
		if snap.Channels[i].ID == m.targetID {
			continue
		}
		others = append(others, &snap.Channels[i])
	}
	return parley.ValidateChannelName(name, others)
}

func (m Model) handleChatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	snap := m.store.Snapshot()

	switch {
	case key.Matches(msg, m.keys.Logout):
		m.screen = m.guard.Logout()
		m.username.Reset()
		m.password.Reset()
		m.username.Focus()
		m.password.Blur()
		m.focusPass = false
		m.composer.Reset()
		return m, nil

	case key.Matches(msg, m.keys.NextChannel):
		m.activateOffset(snap, 1)
		return m, nil

	case key.Matches(msg, m.keys.PrevChannel):
		m.activateOffset(snap, -1)
		return m, nil

	case key.Matches(msg, m.keys.AddChannel):
		m.modal = modalAdd
		m.modalInput.Reset()
		m.modalInput.Placeholder = "channel name"
		m.modalInput.Focus()
		m.composer.Blur()
		return m, nil

	case key.Matches(msg, m.keys.RenameChannel):
		if ch := activeChannel(snap); ch != nil {
			m.modal = modalRename
			m.targetID = ch.ID
			m.modalInput.SetValue(ch.Name)
			m.modalInput.Focus()
			m.composer.Blur()
		}
		return m, nil

	case key.Matches(msg, m.keys.DeleteChannel):
		ch := activeChannel(snap)
		if ch == nil {
			return m, nil
		}
		if !ch.Removable {
			m.inlineErr = "this channel cannot be deleted"
			return m, nil
		}
		m.modal = modalDelete
		m.targetID = ch.ID
		m.composer.Blur()
		return m, nil

	case key.Matches(msg, m.keys.ScrollUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.ScrollDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Send):
		return m.submitMessage(snap)
	}

	var cmd tea.Cmd
	m.composer, cmd = m.composer.Update(msg)
	return m, cmd
}

// submitMessage validates and sends the composer content. Nothing leaves
// the machine while disconnected or while a send is in flight.
func (m Model) submitMessage(snap state.Snapshot) (tea.Model, tea.Cmd) {
	body := strings.TrimSpace(m.composer.Value())
	if body == "" {
		return m, nil
	}
	if snap.ActiveChannelID == "" {
		return m, nil
	}
	if !m.CanSend() {
		m.inlineErr = "not connected; message not sent"
		return m, nil
	}

	m.sending = true
	m.inlineErr = ""
	return m, m.sendCmd(parley.OutgoingMessage{
		Body:      body,
		ChannelID: snap.ActiveChannelID,
	})
}

// activateOffset moves the active channel up or down the list.
func (m *Model) activateOffset(snap state.Snapshot, delta int) {
	n := len(snap.Channels)
	if n == 0 {
		return
	}
	idx := 0
	for i, ch := range snap.Channels {
		if ch.ID == snap.ActiveChannelID {
			idx = i
			break
		}
	}
	idx = (idx + delta + n) % n
	m.store.SetActiveChannel(snap.Channels[idx].ID)
	m.refreshMessages(true)
}

func activeChannel(snap state.Snapshot) *parley.Channel {
	for i := range snap.Channels {
		if snap.Channels[i].ID == snap.ActiveChannelID {
			return &snap.Channels[i]
		}
	}
	return nil
}

// refreshMessages rebuilds the viewport from the active channel's
// messages; gotoBottom pins the view to the newest one.
func (m *Model) refreshMessages(gotoBottom bool) {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderMessages())
	if gotoBottom {
		m.viewport.GotoBottom()
	}
}
