package notifications

import (
	"bytes"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/agri-advisor/internal/keys"
	"github.com/nhle/agri-advisor/internal/model"
)

func sample() []model.Notification {
	now := time.Now()
	return []model.Notification{
		{ID: 1, Title: "Frost warning", Message: "Cover seedlings tonight", Priority: model.PriorityUrgent, CreatedAt: now.Add(-2 * time.Minute)},
		{ID: 2, Title: "Maize price up", Message: "Up 4% this week", Priority: model.PriorityNormal, CreatedAt: now.Add(-3 * time.Hour), IsRead: true},
	}
}

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func run(cmd tea.Cmd) tea.Msg {
	if cmd == nil {
		return nil
	}
	return cmd()
}

func TestPanel_Actions(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 100, 40)
	m.SetState(sample(), 1)
	require.Equal(t, 2, m.Len())

	_, cmd := m.Update(keyMsg("m"))
	assert.Equal(t, MarkReadMsg{ID: 1}, run(cmd))

	_, cmd = m.Update(keyMsg("M"))
	assert.Equal(t, MarkAllReadMsg{}, run(cmd))

	_, cmd = m.Update(keyMsg("d"))
	assert.Equal(t, DeleteMsg{ID: 1}, run(cmd))

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, CloseMsg{}, run(cmd))
}

func TestPanel_NoOpActions(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 100, 40)

	// Empty list: nothing selected.
	_, cmd := m.Update(keyMsg("m"))
	assert.Nil(t, run(cmd))
	_, cmd = m.Update(keyMsg("d"))
	assert.Nil(t, run(cmd))

	// Nothing unread: mark-all is hidden.
	ns := sample()
	ns[0].IsRead = true
	m.SetState(ns, 0)
	_, cmd = m.Update(keyMsg("M"))
	assert.Nil(t, run(cmd))

	// Already read: no mark-read request.
	_, cmd = m.Update(keyMsg("m"))
	assert.Nil(t, run(cmd))
}

func TestPanel_View(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 100, 40)

	m.SetLoading(true)
	assert.Contains(t, m.View(), "Loading...")

	m.SetLoading(false)
	assert.Contains(t, m.View(), "No notifications yet")

	m.SetState(sample(), 1)
	assert.Contains(t, m.View(), "1 unread")
}

func TestPanel_KeepsCursor(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 100, 40)
	m.SetState(sample(), 1)
	m, _ = m.Update(keyMsg("j"))

	n, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, 2, n.ID)

	// The second row disappears: the cursor clamps to the last row.
	m.SetState(sample()[:1], 1)
	n, ok = m.Selected()
	require.True(t, ok)
	assert.Equal(t, 1, n.ID)
}

func TestItemDelegate_Render(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	d := ItemDelegate{now: func() time.Time { return now }}

	items := []list.Item{
		Item{Notification: model.Notification{
			ID: 1, Title: "Frost warning", Message: "Cover\nseedlings tonight",
			Priority: model.PriorityUrgent, CreatedAt: now.Add(-5 * time.Minute),
		}},
	}
	l := list.New(items, d, 80, 10)

	var buf bytes.Buffer
	d.Render(&buf, l, 0, items[0])

	out := buf.String()
	assert.Contains(t, out, "Frost warning")
	assert.Contains(t, out, "[URGENT]")
	assert.Contains(t, out, "5m ago")
	assert.Contains(t, out, "Cover seedlings tonight")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
