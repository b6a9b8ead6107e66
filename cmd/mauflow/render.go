package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/hylla/mauflow/internal/adapters/storage/sqlite"
	"github.com/hylla/mauflow/internal/domain"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	unreadStyle = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("212"))
	mutedStyle  = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("241"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
)

// newTable builds the bordered table every list command shares.
func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func printTable(w io.Writer, t *table.Table, rows int, empty string) {
	if rows == 0 {
		_, _ = fmt.Fprintln(w, empty)
		return
	}
	_, _ = fmt.Fprintln(w, t.String())
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func renderMembers(w io.Writer, members []domain.TeamMember) {
	t := newTable("ID", "NAME", "ROLE", "HANDLE", "ONLINE")
	for _, m := range members {
		online := "no"
		if m.IsOnline {
			online = "yes"
		}
		t.Row(m.ID, m.Name, string(m.Role.Name), "@"+m.MentionHandle(), online)
	}
	printTable(w, t, len(members), "no team members")
}

func renderDelegations(w io.Writer, list []domain.TaskDelegation) {
	t := newTable("ID", "TASK", "FROM", "TO", "STATUS", "PRIORITY", "DELEGATED")
	for _, d := range list {
		t.Row(d.ID, d.TaskID, d.DelegatorID, d.AssigneeID, string(d.Status), string(d.Priority), stamp(d.DelegatedAt))
	}
	printTable(w, t, len(list), "no delegations")
}

func renderNotifications(w io.Writer, list []domain.Notification) {
	t := newTable("ID", "TYPE", "MESSAGE", "CREATED", "READ")
	for _, n := range list {
		read := "unread"
		if n.IsRead {
			read = "read"
		}
		t.Row(n.ID, string(n.Type), n.Message, stamp(n.CreatedAt), read)
	}
	t.StyleFunc(func(row, _ int) lipgloss.Style {
		switch {
		case row == table.HeaderRow:
			return headerStyle
		case row >= 0 && row < len(list) && !list[row].IsRead:
			return unreadStyle
		default:
			return mutedStyle
		}
	})
	printTable(w, t, len(list), "no notifications")
}

func renderStats(w io.Writer, stats domain.NotificationStats) {
	t := newTable("TYPE", "COUNT")
	for _, nt := range domain.NotificationTypes {
		t.Row(string(nt), strconv.Itoa(stats.ByType[nt]))
	}
	_, _ = fmt.Fprintf(w, "total: %d  unread: %d  read: %d\n", stats.Total, stats.Unread, stats.Read)
	_, _ = fmt.Fprintln(w, t.String())
}

func renderPreferences(w io.Writer, prefs domain.NotificationPreferences) {
	t := newTable("TYPE", "ENABLED")
	for _, nt := range domain.NotificationTypes {
		t.Row(string(nt), strconv.FormatBool(prefs.Allows(nt)))
	}
	_, _ = fmt.Fprintln(w, t.String())
	q := prefs.QuietHours
	_, _ = fmt.Fprintf(w, "quiet hours: %s %s-%s\n", onOff(q.Enabled), q.StartTime, q.EndTime)
}

func renderComments(w io.Writer, list []domain.TaskComment, name func(string) string) {
	t := newTable("ID", "AUTHOR", "COMMENT", "CREATED", "REPLY TO")
	for _, c := range list {
		content := c.Content
		if c.IsEdited {
			content += " (edited)"
		}
		parent := c.ParentID
		if parent == "" {
			parent = "-"
		}
		t.Row(c.ID, name(c.AuthorID), content, stamp(c.CreatedAt), parent)
	}
	printTable(w, t, len(list), "no comments")
}

func renderAttachments(w io.Writer, list []domain.TaskAttachment) {
	t := newTable("ID", "FILE", "SIZE", "TYPE", "UPLOADER")
	for _, a := range list {
		t.Row(a.ID, a.FileName, humanSize(a.FileSize), a.MimeType, a.UploaderID)
	}
	printTable(w, t, len(list), "no attachments")
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGT"[exp])
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

// describeError prefixes collaboration errors with their user message and recovery hint.
func describeError(err error) error {
	ce, ok := domain.AsCollaborationError(err)
	if !ok {
		return err
	}
	msg := strings.TrimSpace(ce.UserMessage)
	if msg == "" {
		msg = ce.Message
	}
	if hint := ce.RecoverySuggestion(); hint != "" {
		return fmt.Errorf("%s %s: %w", msg, hint, err)
	}
	if msg == ce.Message {
		return err
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func renderStorageItems(w io.Writer, items []sqlite.Item) {
	t := newTable("KEY", "SIZE", "UPDATED")
	for _, it := range items {
		t.Row(it.Key, humanSize(int64(it.Size)), stamp(it.UpdatedAt))
	}
	printTable(w, t, len(items), "no stored keys")
}
