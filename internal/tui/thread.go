package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/hylla/mauflow/internal/domain"
)

// markdownRenderer caches a glamour renderer for the current wrap width.
type markdownRenderer struct {
	width    int
	renderer *glamour.TermRenderer
}

// render converts markdown into styled terminal text, falling back to the raw input on failure.
func (r *markdownRenderer) render(markdown string, width int) string {
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return ""
	}
	wrapWidth := max(width, 24)
	if r.renderer == nil || r.width != wrapWidth {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(wrapWidth),
		)
		if err != nil {
			return markdown
		}
		r.renderer = renderer
		r.width = wrapWidth
	}
	rendered, err := r.renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimRight(rendered, "\n")
}

// threadMarkdown lays out a task's comments with replies indented under their parent.
func threadMarkdown(comments []domain.TaskComment, name func(string) string, now time.Time) string {
	if len(comments) == 0 {
		return ""
	}
	children := map[string][]domain.TaskComment{}
	var roots []domain.TaskComment
	known := map[string]bool{}
	for _, c := range comments {
		known[c.ID] = true
	}
	for _, c := range comments {
		if c.ParentID != "" && known[c.ParentID] {
			children[c.ParentID] = append(children[c.ParentID], c)
			continue
		}
		roots = append(roots, c)
	}

	var b strings.Builder
	var write func(c domain.TaskComment, depth int)
	write = func(c domain.TaskComment, depth int) {
		prefix := strings.Repeat("> ", depth)
		edited := ""
		if c.IsEdited {
			edited = " _(edited)_"
		}
		fmt.Fprintf(&b, "%s**%s** · %s%s\n%s\n", prefix, name(c.AuthorID), relativeTime(now, c.CreatedAt), edited, prefix)
		for _, line := range strings.Split(strings.TrimSpace(c.Content), "\n") {
			fmt.Fprintf(&b, "%s%s\n", prefix, line)
		}
		b.WriteString("\n")
		for _, child := range children[c.ID] {
			write(child, depth+1)
		}
	}
	for _, c := range roots {
		write(c, 0)
	}
	return b.String()
}

// relativeTime renders a compact age such as "just now", "5m ago", or "3d ago".
func relativeTime(now, at time.Time) string {
	d := now.Sub(at)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d/(24*time.Hour)))
	default:
		return at.Format("2006-01-02")
	}
}
