package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the chat screen bindings.
type KeyMap struct {
	NextChannel   key.Binding
	PrevChannel   key.Binding
	AddChannel    key.Binding
	RenameChannel key.Binding
	DeleteChannel key.Binding
	Send          key.Binding
	ScrollUp      key.Binding
	ScrollDown    key.Binding
	Logout        key.Binding
	Quit          key.Binding
	Cancel        key.Binding
}

// DefaultKeyMap keeps everything on control sequences so plain typing goes
// to the composer.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		NextChannel: key.NewBinding(
			key.WithKeys("ctrl+n", "down"),
			key.WithHelp("ctrl+n", "next channel"),
		),
		PrevChannel: key.NewBinding(
			key.WithKeys("ctrl+p", "up"),
			key.WithHelp("ctrl+p", "previous channel"),
		),
		AddChannel: key.NewBinding(
			key.WithKeys("ctrl+a"),
			key.WithHelp("ctrl+a", "add channel"),
		),
		RenameChannel: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "rename channel"),
		),
		DeleteChannel: key.NewBinding(
			key.WithKeys("ctrl+d"),
			key.WithHelp("ctrl+d", "delete channel"),
		),
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "scroll up"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdn", "scroll down"),
		),
		Logout: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("ctrl+l", "log out"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
	}
}
