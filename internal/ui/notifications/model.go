package notifications

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/agri-advisor/internal/keys"
	"github.com/nhle/agri-advisor/internal/model"
	"github.com/nhle/agri-advisor/internal/theme"
)

// MarkReadMsg asks the app to mark one notification read.
type MarkReadMsg struct {
	ID int
}

// MarkAllReadMsg asks the app to mark every notification read.
type MarkAllReadMsg struct{}

// DeleteMsg asks the app to delete one notification.
type DeleteMsg struct {
	ID int
}

// CloseMsg is dispatched when the panel is dismissed.
type CloseMsg struct{}

// Model is the notification panel.
type Model struct {
	list    list.Model
	keys    *keys.KeyMap
	unread  int
	loading bool
	width   int
	height  int
}

// New creates an empty panel.
func New(km *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, max(height-4, 0))
	l.Title = "Notifications"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	return Model{list: l, keys: km, width: width, height: height}
}

// SetLoading toggles the "Loading..." placeholder shown while the list
// is empty.
func (m *Model) SetLoading(loading bool) {
	m.loading = loading
}

// SetState replaces the displayed list and unread count, keeping the
// cursor on the same row where possible.
func (m *Model) SetState(ns []model.Notification, unread int) tea.Cmd {
	m.unread = unread

	items := make([]list.Item, len(ns))
	for i, n := range ns {
		items[i] = Item{Notification: n}
	}
	idx := m.list.Index()
	cmd := m.list.SetItems(items)
	if len(items) > 0 {
		m.list.Select(min(idx, len(items)-1))
	}
	return cmd
}

// Selected returns the highlighted notification.
func (m Model) Selected() (model.Notification, bool) {
	it, ok := m.list.SelectedItem().(Item)
	if !ok {
		return model.Notification{}, false
	}
	return it.Notification, true
}

// Len returns the number of listed notifications.
func (m Model) Len() int {
	return len(m.list.Items())
}

// Update handles messages for the panel.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if kmsg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(kmsg, m.keys.Back), key.Matches(kmsg, m.keys.Notifications):
			return m, func() tea.Msg { return CloseMsg{} }

		case key.Matches(kmsg, m.keys.MarkRead):
			n, ok := m.Selected()
			if !ok || n.IsRead {
				return m, nil
			}
			return m, func() tea.Msg { return MarkReadMsg{ID: n.ID} }

		case key.Matches(kmsg, m.keys.MarkAllRead):
			if m.unread == 0 {
				return m, nil
			}
			return m, func() tea.Msg { return MarkAllReadMsg{} }

		case key.Matches(kmsg, m.keys.Delete):
			n, ok := m.Selected()
			if !ok {
				return m, nil
			}
			return m, func() tea.Msg { return DeleteMsg{ID: n.ID} }
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the panel.
func (m Model) View() string {
	var body string
	switch {
	case m.Len() == 0 && m.loading:
		body = theme.TitleStyle.Render("Notifications") + "\n" + theme.DimmedStyle.Render("Loading...")
	case m.Len() == 0:
		body = theme.TitleStyle.Render("Notifications") + "\n" + theme.DimmedStyle.Render("No notifications yet")
	default:
		body = m.list.View()
	}

	footer := "m: mark read  d: delete  esc: close"
	if m.unread > 0 {
		footer = fmt.Sprintf("%d unread  M: mark all as read  %s", m.unread, footer)
	}

	return theme.PanelStyle.
		Width(max(m.width-4, 0)).
		Render(lipgloss.JoinVertical(lipgloss.Left, body, "", theme.HelpStyle.Render(footer)))
}

// SetSize updates the panel dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(max(width-8, 0), max(height-8, 0))
}
