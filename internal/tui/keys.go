package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Left   key.Binding
	Right  key.Binding
	Mark   key.Binding
	Top    key.Binding
	Bottom key.Binding

	Treemap   key.Binding
	ZoomIn    key.Binding
	ZoomOut   key.Binding
	ZoomReset key.Binding
	Parent    key.Binding
	Rebuild   key.Binding

	Refresh    key.Binding
	RefreshAll key.Binding
	Stop       key.Binding
	Continue   key.Binding

	Cleanup    key.Binding
	OpenWith   key.Binding
	Copy       key.Binding
	WriteCache key.Binding
	ReadCache  key.Binding
	Settings   key.Binding
	Feedback   key.Binding

	Help key.Binding
	Quit key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Left:   key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "collapse")),
		Right:  key.NewBinding(key.WithKeys("right", "l", "enter"), key.WithHelp("→/l", "expand")),
		Mark:   key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "mark")),
		Top:    key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("g", "top")),
		Bottom: key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("G", "bottom")),

		Treemap:   key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "treemap")),
		ZoomIn:    key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "zoom in")),
		ZoomOut:   key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "zoom out")),
		ZoomReset: key.NewBinding(key.WithKeys("0"), key.WithHelp("0", "zoom reset")),
		Parent:    key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "select parent")),
		Rebuild:   key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "rebuild treemap")),

		Refresh:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh selected")),
		RefreshAll: key.NewBinding(key.WithKeys("f5", "ctrl+r"), key.WithHelp("F5", "refresh all")),
		Stop:       key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop reading")),
		Continue:   key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "continue reading")),

		Cleanup:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "cleanups")),
		OpenWith:   key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open with")),
		Copy:       key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy path")),
		WriteCache: key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "write cache")),
		ReadCache:  key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "read cache")),
		Settings:   key.NewBinding(key.WithKeys("S"), key.WithHelp("S", "settings")),
		Feedback:   key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "feedback")),

		Help: key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Up, k.Down, k.Treemap, k.Cleanup, k.Refresh, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right, k.Mark, k.Top, k.Bottom},
		{k.Treemap, k.ZoomIn, k.ZoomOut, k.ZoomReset, k.Parent, k.Rebuild},
		{k.Refresh, k.RefreshAll, k.Stop, k.Continue, k.WriteCache, k.ReadCache},
		{k.Cleanup, k.OpenWith, k.Copy, k.Settings, k.Feedback, k.Help, k.Quit},
	}
}
