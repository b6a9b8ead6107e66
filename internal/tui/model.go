package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/hylla/mauflow/internal/app"
	"github.com/hylla/mauflow/internal/domain"
)

// Service is the notification surface the inbox drives.
type Service interface {
	ListForUser(ctx context.Context, userID string, filter app.NotificationFilter) []domain.Notification
	MarkAsRead(ctx context.Context, id string) error
	MarkAsUnread(ctx context.Context, id string) error
	Archive(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	MarkAllAsRead(ctx context.Context, userID string) (int, error)
}

type inputMode int

const (
	modeList inputMode = iota
	modeDetail
)

// loadedMsg carries a fresh notification list.
type loadedMsg struct {
	items []domain.Notification
}

// actionMsg reports the result of a mutating key.
type actionMsg struct {
	notice string
	err    error
}

// snapshotMsg carries a live delivery snapshot.
type snapshotMsg app.DeliverySnapshot

// feed bridges delivery callbacks into the program; only the latest snapshot is kept.
type feed struct {
	updates chan app.DeliverySnapshot
	done    chan struct{}
	stop    func()
	once    sync.Once
}

func newFeed(ch Channel, userID string) *feed {
	f := &feed{
		updates: make(chan app.DeliverySnapshot, 1),
		done:    make(chan struct{}),
	}
	f.stop = ch.Subscribe(context.Background(), userID, f.push)
	return f
}

func (f *feed) push(s app.DeliverySnapshot) {
	select {
	case <-f.updates:
	default:
	}
	select {
	case f.updates <- s:
	default:
	}
}

// next waits for the next snapshot; it returns nil once the feed is closed.
func (f *feed) next() tea.Cmd {
	return func() tea.Msg {
		select {
		case s := <-f.updates:
			return snapshotMsg(s)
		case <-f.done:
			return nil
		}
	}
}

func (f *feed) close() {
	f.once.Do(func() {
		f.stop()
		close(f.done)
	})
}

// Model is the notification inbox.
type Model struct {
	svc         Service
	userID      string
	channel     Channel
	threads     ThreadSource
	displayName func(string) string
	now         func() time.Time
	simInterval time.Duration

	feed *feed
	md   *markdownRenderer

	keys keyMap
	help help.Model

	width  int
	height int

	items      []domain.Notification
	selected   int
	mode       inputMode
	unreadOnly bool
	status     app.ConnectionStatus
	simulating bool
	notice     string
	err        error
}

// NewModel builds an inbox for userID.
func NewModel(svc Service, userID string, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false
	m := Model{
		svc:         svc,
		userID:      userID,
		displayName: func(id string) string { return id },
		now:         time.Now,
		keys:        newKeyMap(),
		help:        h,
		md:          &markdownRenderer{},
		status:      app.StatusDisconnected,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	if m.channel != nil {
		m.feed = newFeed(m.channel, userID)
		m.status = m.channel.Status()
		m.simulating = m.channel.Simulating()
	}
	return m
}

// Init loads the inbox and starts following the delivery feed.
func (m Model) Init() tea.Cmd {
	if m.feed == nil {
		return m.loadCmd()
	}
	return tea.Batch(m.loadCmd(), m.feed.next())
}

func (m Model) loadCmd() tea.Cmd {
	return func() tea.Msg {
		return loadedMsg{items: m.list()}
	}
}

func (m Model) list() []domain.Notification {
	return m.svc.ListForUser(context.Background(), m.userID, app.NotificationFilter{
		UnreadOnly:       m.unreadOnly,
		ApplyPreferences: true,
	})
}

// Update handles messages and key input.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case loadedMsg:
		m.setItems(msg.items)
		return m, nil

	case actionMsg:
		m.err = msg.err
		if msg.err == nil {
			m.notice = msg.notice
		}
		m.setItems(m.list())
		return m, nil

	case snapshotMsg:
		m.status = msg.Status
		if m.channel != nil {
			m.simulating = m.channel.Simulating()
		}
		m.setItems(m.list())
		if m.feed == nil {
			return m, nil
		}
		return m, m.feed.next()

	case tea.KeyPressMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		if m.feed != nil {
			m.feed.close()
		}
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.reload):
		m.notice = ""
		return m, m.loadCmd()
	}

	if m.mode == modeDetail {
		switch {
		case key.Matches(msg, m.keys.back):
			m.mode = modeList
			return m, nil
		case key.Matches(msg, m.keys.toggleRead), key.Matches(msg, m.keys.archive), key.Matches(msg, m.keys.deleteItem):
			m.mode = modeList
			return m.handleKey(msg)
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.moveUp):
		if m.selected > 0 {
			m.selected--
		}
	case key.Matches(msg, m.keys.moveDown):
		if m.selected < len(m.items)-1 {
			m.selected++
		}
	case key.Matches(msg, m.keys.open):
		n, ok := m.current()
		if !ok {
			return m, nil
		}
		m.mode = modeDetail
		if !n.IsRead {
			return m, m.mutate("", func(ctx context.Context) error { return m.svc.MarkAsRead(ctx, n.ID) })
		}
	case key.Matches(msg, m.keys.toggleRead):
		n, ok := m.current()
		if !ok {
			return m, nil
		}
		if n.IsRead {
			return m, m.mutate("marked unread", func(ctx context.Context) error { return m.svc.MarkAsUnread(ctx, n.ID) })
		}
		return m, m.mutate("marked read", func(ctx context.Context) error { return m.svc.MarkAsRead(ctx, n.ID) })
	case key.Matches(msg, m.keys.markAllRead):
		userID := m.userID
		return m, func() tea.Msg {
			count, err := m.svc.MarkAllAsRead(context.Background(), userID)
			return actionMsg{notice: fmt.Sprintf("marked %d read", count), err: err}
		}
	case key.Matches(msg, m.keys.archive):
		n, ok := m.current()
		if !ok {
			return m, nil
		}
		return m, m.mutate("archived", func(ctx context.Context) error { return m.svc.Archive(ctx, n.ID) })
	case key.Matches(msg, m.keys.deleteItem):
		n, ok := m.current()
		if !ok {
			return m, nil
		}
		return m, m.mutate("deleted", func(ctx context.Context) error { return m.svc.Delete(ctx, n.ID) })
	case key.Matches(msg, m.keys.unreadOnly):
		m.unreadOnly = !m.unreadOnly
		m.selected = 0
		return m, m.loadCmd()
	case key.Matches(msg, m.keys.toggleConnect):
		if m.channel == nil {
			m.notice = "live delivery unavailable"
			return m, nil
		}
		if m.channel.Status() == app.StatusDisconnected {
			m.channel.Connect()
		} else {
			m.channel.Disconnect()
		}
		m.status = m.channel.Status()
	case key.Matches(msg, m.keys.toggleSim):
		if m.channel == nil {
			m.notice = "live delivery unavailable"
			return m, nil
		}
		if m.channel.Simulating() {
			m.channel.StopSimulation()
			m.notice = "simulation stopped"
		} else if m.channel.StartSimulation(m.userID, m.simInterval) {
			m.notice = "simulation started"
		}
		m.simulating = m.channel.Simulating()
	}
	return m, nil
}

func (m Model) mutate(notice string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return actionMsg{notice: notice, err: fn(context.Background())}
	}
}

func (m *Model) setItems(items []domain.Notification) {
	selectedID := ""
	if n, ok := m.current(); ok {
		selectedID = n.ID
	}
	m.items = items
	for i, n := range items {
		if n.ID == selectedID {
			m.selected = i
			return
		}
	}
	m.selected = clamp(m.selected, 0, max(len(items)-1, 0))
	if m.mode == modeDetail {
		m.mode = modeList
	}
}

func (m Model) current() (domain.Notification, bool) {
	if m.selected < 0 || m.selected >= len(m.items) {
		return domain.Notification{}, false
	}
	return m.items[m.selected], true
}

func (m Model) unreadCount() int {
	count := 0
	for _, n := range m.items {
		if !n.IsRead {
			count++
		}
	}
	return count
}

var (
	accent      = lipgloss.Color("62")
	muted       = lipgloss.Color("241")
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(accent)
	mutedStyle  = lipgloss.NewStyle().Foreground(muted)
	unreadStyle = lipgloss.NewStyle().Bold(true)
	cursorStyle = lipgloss.NewStyle().Foreground(accent).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(accent).Padding(0, 1)
)

// View renders the inbox.
func (m Model) View() tea.View {
	v := tea.NewView(m.render())
	v.AltScreen = true
	return v
}

func (m Model) render() string {
	var body string
	if m.mode == modeDetail {
		body = m.renderDetail()
	} else {
		body = m.renderList()
	}

	sections := []string{m.renderHeader(), body}
	if m.err != nil {
		sections = append(sections, errorStyle.Render("error: "+m.err.Error()))
	} else if m.notice != "" {
		sections = append(sections, mutedStyle.Render(m.notice))
	}
	h := m.help
	if m.width > 0 {
		h.SetWidth(m.width)
	}
	sections = append(sections, h.View(m.keys))

	content := strings.Join(sections, "\n\n")
	if m.height > 0 {
		content = fitLines(content, m.height)
	}
	return content
}

func (m Model) renderHeader() string {
	status := string(m.status)
	if m.simulating {
		status += " · simulating"
	}
	filter := ""
	if m.unreadOnly {
		filter = " · unread only"
	}
	return fmt.Sprintf("%s  %s",
		titleStyle.Render(fmt.Sprintf("Inbox: %s (%d unread)", m.displayName(m.userID), m.unreadCount())),
		mutedStyle.Render(status+filter),
	)
}

func (m Model) renderList() string {
	if len(m.items) == 0 {
		return mutedStyle.Render("No notifications.")
	}
	now := m.now()
	lines := make([]string, 0, len(m.items))
	for i, n := range m.items {
		marker := "  "
		if !n.IsRead {
			marker = "● "
		}
		line := fmt.Sprintf("%s%-18s %s  %s", marker, n.Type, n.Title, mutedStyle.Render(relativeTime(now, n.CreatedAt)))
		if !n.IsRead {
			line = unreadStyle.Render(line)
		}
		if i == m.selected {
			line = cursorStyle.Render("›") + line
		} else {
			line = " " + line
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderDetail() string {
	n, ok := m.current()
	if !ok {
		return mutedStyle.Render("No notification selected.")
	}
	now := m.now()
	rows := []string{
		titleStyle.Render(n.Title),
		n.Message,
		"",
		mutedStyle.Render(fmt.Sprintf("type: %s", n.Type)),
		mutedStyle.Render(fmt.Sprintf("from: %s", m.sender(n))),
		mutedStyle.Render(fmt.Sprintf("received: %s", relativeTime(now, n.CreatedAt))),
	}
	if n.ResourceID != "" {
		rows = append(rows, mutedStyle.Render(fmt.Sprintf("task: %s", n.ResourceID)))
	}
	detail := panelStyle.Render(strings.Join(rows, "\n"))

	thread := m.renderThread(n, now)
	if thread == "" {
		return detail
	}
	return detail + "\n\n" + thread
}

func (m Model) sender(n domain.Notification) string {
	if n.SenderID == "" {
		return "system"
	}
	return m.displayName(n.SenderID)
}

func (m Model) renderThread(n domain.Notification, now time.Time) string {
	if m.threads == nil || n.ResourceID == "" {
		return ""
	}
	comments := m.threads.List(context.Background(), n.ResourceID)
	markdown := threadMarkdown(comments, m.displayName, now)
	if markdown == "" {
		return mutedStyle.Render("No comments on this task.")
	}
	width := 80
	if m.width > 0 {
		width = m.width - 4
	}
	return titleStyle.Render("Thread") + "\n" + m.md.render(markdown, width)
}

// fitLines trims content to at most maxLines lines.
func fitLines(content string, maxLines int) string {
	lines := strings.Split(content, "\n")
	if len(lines) <= maxLines {
		return content
	}
	return strings.Join(lines[:maxLines], "\n")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
