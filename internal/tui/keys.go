package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Submit key.Binding
	Focus  key.Binding
	Blur   key.Binding
	Up     key.Binding
	Down   key.Binding
	Toggle key.Binding
	Delete key.Binding
	Reload key.Binding
	Help   key.Binding
	Quit   key.Binding
	Force  key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "add task")),
		Focus:  key.NewBinding(key.WithKeys("tab", "a"), key.WithHelp("tab/a", "new task")),
		Blur:   key.NewBinding(key.WithKeys("tab", "esc"), key.WithHelp("tab/esc", "back to list")),
		Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Toggle: key.NewBinding(key.WithKeys(" ", "enter"), key.WithHelp("space", "toggle")),
		Delete: key.NewBinding(key.WithKeys("d", "x", "delete"), key.WithHelp("d", "delete")),
		Reload: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Help:   key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more")),
		Quit:   key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
		Force:  key.NewBinding(key.WithKeys("ctrl+c")),
	}
}

// formKeys is the help shown while the input has focus.
type formKeys struct{ k keyMap }

func (f formKeys) ShortHelp() []key.Binding {
	return []key.Binding{f.k.Submit, f.k.Blur}
}

func (f formKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{f.ShortHelp()}
}

// listKeys is the help shown while the list has focus.
type listKeys struct{ k keyMap }

func (l listKeys) ShortHelp() []key.Binding {
	return []key.Binding{l.k.Toggle, l.k.Delete, l.k.Focus, l.k.Help, l.k.Quit}
}

func (l listKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{l.k.Up, l.k.Down, l.k.Toggle, l.k.Delete},
		{l.k.Focus, l.k.Reload, l.k.Help, l.k.Quit},
	}
}
