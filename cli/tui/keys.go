package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Reset      key.Binding
	GetPose    key.Binding
	Initialize key.Binding
	Quit       key.Binding
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Reset, k.GetPose, k.Initialize, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var keys = keyMap{
	Reset: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reset"),
	),
	GetPose: key.NewBinding(
		key.WithKeys("g"),
		key.WithHelp("g", "get pose"),
	),
	Initialize: key.NewBinding(
		key.WithKeys("i"),
		key.WithHelp("i", "initialize"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c", "esc"),
		key.WithHelp("q", "quit"),
	),
}
