package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/parleychat/parley/session"
	"github.com/parleychat/parley/state"
)

const sidebarWidth = 22

func (m Model) View() string {
	if !m.ready {
		return "starting…"
	}

	switch m.screen {
	case session.ViewLogin:
		return m.renderForm("Log in", "ctrl+s: sign up instead")
	case session.ViewSignup:
		return m.renderForm("Sign up", "ctrl+s: log in instead")
	default:
		return m.renderChat()
	}
}

func (m Model) renderForm(title, toggleHint string) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")
	b.WriteString(m.username.View())
	b.WriteString("\n")
	b.WriteString(m.password.View())
	b.WriteString("\n\n")

	if m.submitting {
		b.WriteString(statusStyle.Render("signing in…"))
	} else if m.formErr != "" {
		b.WriteString(errStyle.Render(m.formErr))
	}
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("enter: submit • tab: switch field • " + toggleHint + " • ctrl+c: quit"))

	box := modalStyle.Render(b.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func (m Model) renderChat() string {
	snap := m.store.Snapshot()

	switch snap.Status {
	case state.StatusIdle, state.StatusLoading:
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			statusStyle.Render("loading channels…"))
	case state.StatusFailed:
		msg := errStyle.Render("could not load chat: "+snap.LoadError) + "\n\n" +
			helpStyle.Render("ctrl+l: back to login • ctrl+c: quit")
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, msg)
	}

	if m.modal != modalNone {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.renderModal(snap))
	}

	sidebar := m.renderSidebar(snap)
	main := m.renderMain(snap)
	body := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, main)

	return lipgloss.JoinVertical(lipgloss.Left, m.renderStatusBar(snap), body)
}

func (m Model) renderStatusBar(snap state.Snapshot) string {
	conn := "online"
	if m.degraded {
		conn = "connection lost, restart to reconnect"
	} else if !m.connected {
		conn = "reconnecting…"
	}

	left := usernameStyle.Render(m.session.Username())
	var right string
	if m.degraded || !m.connected {
		right = bannerStyle.Render(conn)
	} else {
		right = statusStyle.Render(conn)
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func (m Model) renderSidebar(snap state.Snapshot) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Channels"))
	b.WriteString("\n")

	for _, ch := range snap.Channels {
		name := "# " + ch.Name
		if len(name) > sidebarWidth-2 {
			name = name[:sidebarWidth-2]
		}
		if ch.ID == snap.ActiveChannelID {
			b.WriteString(cursorStyle.Render("> ") + activeChannelStyle.Render(name))
		} else {
			b.WriteString("  " + channelStyle.Render(name))
		}
		b.WriteString("\n")
	}

	return sidebarStyle.Width(sidebarWidth).Height(m.height - 2).Render(b.String())
}

func (m Model) renderMain(snap state.Snapshot) string {
	composer := m.composer.View()

	var notice string
	if m.inlineErr != "" {
		notice = errStyle.Render(m.inlineErr)
	} else if m.sending {
		notice = statusStyle.Render("sending…")
	} else {
		notice = helpStyle.Render("ctrl+n/p: channels • ctrl+a: add • ctrl+r: rename • ctrl+d: delete • ctrl+l: logout")
	}

	return lipgloss.JoinVertical(lipgloss.Left, m.viewport.View(), composer, notice)
}

// renderMessages formats the active channel's messages for the viewport.
func (m Model) renderMessages() string {
	msgs := m.store.ActiveMessages()
	if len(msgs) == 0 {
		return statusStyle.Render("no messages yet")
	}

	var b strings.Builder
	for _, msg := range msgs {
		b.WriteString(usernameStyle.Render(msg.Username))
		b.WriteString(": ")
		b.WriteString(msg.Body)
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderModal(snap state.Snapshot) string {
	var b strings.Builder

	switch m.modal {
	case modalAdd:
		b.WriteString(titleStyle.Render("Add channel"))
		b.WriteString("\n")
		b.WriteString(m.modalInput.View())
	case modalRename:
		b.WriteString(titleStyle.Render("Rename channel"))
		b.WriteString("\n")
		b.WriteString(m.modalInput.View())
	case modalDelete:
		name := m.targetID
		if ch := activeChannel(snap); ch != nil {
			name = ch.Name
		}
		b.WriteString(titleStyle.Render("Delete channel"))
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("Delete #%s and all its messages?", name))
	}

	b.WriteString("\n\n")
	if m.modalErr != "" {
		b.WriteString(errStyle.Render(m.modalErr))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("enter: confirm • esc: cancel"))

	return modalStyle.Render(b.String())
}
