package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the keyboard bindings.
type keyMap struct {
	Quit        key.Binding
	Help        key.Binding
	CycleTheme  key.Binding
	Tab         key.Binding
	ShiftTab    key.Binding
	ViewTuners  key.Binding
	ViewLogs    key.Binding
	ViewVersion key.Binding
	Preferences key.Binding

	Up     key.Binding
	Down   key.Binding
	Top    key.Binding
	Bottom key.Binding

	Kill         key.Binding
	Refresh      key.Binding
	ToggleFollow key.Binding
	Update       key.Binding

	Confirm key.Binding
	Cancel  key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		Quit:        key.NewBinding(key.WithKeys("ctrl+c", "q"), key.WithHelp("q", "Quit")),
		Help:        key.NewBinding(key.WithKeys("?", "h"), key.WithHelp("?", "Help and about")),
		CycleTheme:  key.NewBinding(key.WithKeys("T"), key.WithHelp("T", "Cycle theme")),
		Tab:         key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "Next view")),
		ShiftTab:    key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "Previous view")),
		ViewTuners:  key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "Tuners")),
		ViewLogs:    key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "Logs")),
		ViewVersion: key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "Version")),
		Preferences: key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "Preferences")),

		Up:     key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/up", "Move up")),
		Down:   key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/down", "Move down")),
		Top:    key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "Go to top")),
		Bottom: key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "Go to bottom")),

		Kill:         key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "Kill tuner process")),
		Refresh:      key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "Refresh now")),
		ToggleFollow: key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "Toggle follow")),
		Update:       key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "Update server")),

		Confirm: key.NewBinding(key.WithKeys("enter", "y"), key.WithHelp("y/enter", "Confirm")),
		Cancel:  key.NewBinding(key.WithKeys("esc", "n"), key.WithHelp("esc", "Close")),
	}
}

// ShortHelp returns key bindings for the footer.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Preferences, k.Help, k.Quit}
}

// FullHelp returns key bindings grouped for the help overlay.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab, k.ShiftTab, k.ViewTuners, k.ViewLogs, k.ViewVersion},
		{k.Up, k.Down, k.Top, k.Bottom},
		{k.Kill, k.Refresh, k.ToggleFollow, k.Update},
		{k.Preferences, k.CycleTheme, k.Help, k.Quit},
	}
}
