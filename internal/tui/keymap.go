package tui

import "charm.land/bubbles/v2/key"

// keyMap holds the inbox key bindings.
type keyMap struct {
	quit          key.Binding
	reload        key.Binding
	toggleHelp    key.Binding
	moveUp        key.Binding
	moveDown      key.Binding
	open          key.Binding
	back          key.Binding
	toggleRead    key.Binding
	markAllRead   key.Binding
	archive       key.Binding
	deleteItem    key.Binding
	unreadOnly    key.Binding
	toggleConnect key.Binding
	toggleSim     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		quit:          key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		reload:        key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "reload")),
		toggleHelp:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		moveUp:        key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
		moveDown:      key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
		open:          key.NewBinding(key.WithKeys("enter", "i"), key.WithHelp("enter", "details")),
		back:          key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		toggleRead:    key.NewBinding(key.WithKeys("r", "space"), key.WithHelp("r", "read/unread")),
		markAllRead:   key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "mark all read")),
		archive:       key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "archive")),
		deleteItem:    key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		unreadOnly:    key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "unread only")),
		toggleConnect: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "connect/disconnect")),
		toggleSim:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "simulate")),
	}
}

// ShortHelp returns the bindings shown in the footer.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.open, k.toggleRead, k.archive, k.toggleConnect, k.toggleHelp, k.quit}
}

// FullHelp returns every binding grouped by purpose.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.moveUp, k.moveDown, k.open, k.back, k.unreadOnly, k.reload},
		{k.toggleRead, k.markAllRead, k.archive, k.deleteItem},
		{k.toggleConnect, k.toggleSim, k.toggleHelp, k.quit},
	}
}
