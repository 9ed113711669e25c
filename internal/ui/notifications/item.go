package notifications

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/agri-advisor/internal/model"
	agrisync "github.com/nhle/agri-advisor/internal/sync"
	"github.com/nhle/agri-advisor/internal/theme"
)

// Item wraps a model.Notification so it can be used in a bubbles/list.
type Item struct {
	Notification model.Notification
}

// FilterValue returns the string used for fuzzy filtering.
func (i Item) FilterValue() string { return i.Notification.Title }

// Title returns the notification title.
func (i Item) Title() string { return i.Notification.Title }

// Description returns the notification body.
func (i Item) Description() string { return i.Notification.Message }

// ItemDelegate implements list.ItemDelegate for notification rows.
type ItemDelegate struct {
	// now is swapped in tests.
	now func() time.Time
}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 2 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 1 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws the title line and the message line of one notification.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(Item)
	if !ok {
		return
	}
	n := it.Notification

	now := time.Now()
	if d.now != nil {
		now = d.now()
	}

	marker := theme.PriorityStyle(n.Priority).Render("●")
	if n.IsRead {
		marker = " "
	}

	ago := theme.DimmedStyle.Render(agrisync.TimeAgo(n.CreatedAt, now))
	title := fmt.Sprintf("%s %s %s  %s", marker, priorityLabel(n.Priority), n.Title, ago)

	width := max(m.Width()-4, 10)
	body := "  " + truncate(strings.Join(strings.Fields(n.Message), " "), width-2)

	if n.IsRead {
		title = theme.DimmedStyle.Render(title)
		body = theme.DimmedStyle.Render(body)
	}

	line := lipgloss.JoinVertical(lipgloss.Left, title, body)
	if index == m.Index() {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

// priorityLabel returns a short label for the given priority.
func priorityLabel(p model.Priority) string {
	switch p {
	case model.PriorityUrgent:
		return "[URGENT]"
	case model.PriorityHigh:
		return "[HIGH]"
	case model.PriorityLow:
		return "[low]"
	default:
		return ""
	}
}

func truncate(s string, width int) string {
	r := []rune(s)
	if width <= 0 || len(r) <= width {
		return s
	}
	return string(r[:max(width-1, 0)]) + "…"
}
