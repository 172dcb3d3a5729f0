package update

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up         key.Binding
	Down       key.Binding
	Start      key.Binding
	Done       key.Binding
	Cancel     key.Binding
	Permission key.Binding
	Palette    key.Binding
	Help       key.Binding
	Quit       key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:         key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
		Down:       key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
		Start:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "start")),
		Done:       key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "done")),
		Cancel:     key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "cancel")),
		Permission: key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "enable notifications")),
		Palette:    key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "command")),
		Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Done, k.Palette, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.Start, k.Done, k.Cancel},
		{k.Permission, k.Palette, k.Help, k.Quit},
	}
}
