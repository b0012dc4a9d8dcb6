package record

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings for the record phase.
type KeyMap struct {
	Toggle key.Binding
	Stop   key.Binding
	Cancel key.Binding
}

// DefaultKeyMap returns the default key bindings for the record phase.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Toggle: key.NewBinding(
			key.WithKeys(" ", "space"),
			key.WithHelp("space", "pause/resume"),
		),
		Stop: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "stop and process"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "discard"),
		),
	}
}

// ShortHelp returns the short help bindings for the record phase.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Stop, k.Cancel}
}

// FullHelp returns the full help bindings for the record phase.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Toggle, k.Stop, k.Cancel},
	}
}
