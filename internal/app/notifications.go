package app

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	agrisync "github.com/nhle/agri-advisor/internal/sync"
)

// syncUpdateMsg tags a synchronizer update with its source so updates
// from a stopped synchronizer are ignored.
type syncUpdateMsg struct {
	source *agrisync.Synchronizer
	state  agrisync.State
}

// panelOpenedMsg is sent when the lazy list fetch finishes.
type panelOpenedMsg struct {
	source *agrisync.Synchronizer
	err    error
}

// actionDoneMsg is sent when a notification action call finishes.
type actionDoneMsg struct {
	source *agrisync.Synchronizer
	op     string
	err    error
}

func waitForSync(s *agrisync.Synchronizer) tea.Cmd {
	wait := s.WaitForUpdate()
	return func() tea.Msg {
		msg, ok := wait().(agrisync.UpdateMsg)
		if !ok {
			return nil
		}
		return syncUpdateMsg{source: s, state: msg.State}
	}
}

// startSync creates and starts the synchronizer for userID.
func (m *Model) startSync(userID int) tea.Cmd {
	opts := []agrisync.Option{
		agrisync.WithInterval(m.deps.PollInterval),
		agrisync.WithLogger(m.logger),
	}
	if m.deps.Cache != nil {
		opts = append(opts, agrisync.WithCache(m.deps.Cache, userID))
	}

	s := agrisync.New(m.deps.Client, m.deps.Session, opts...)
	s.Start()

	m.syncer = s
	m.syncUserID = userID
	m.syncState = agrisync.State{}
	m.panel.SetState(nil, 0)
	m.logger.Debug("notification sync started", zap.Int("user_id", userID))

	return waitForSync(s)
}

// stopSync discards the synchronizer, if any.
func (m *Model) stopSync() {
	if m.syncer == nil {
		return
	}
	m.syncer.Stop()
	m.syncer = nil
	m.syncUserID = 0
	m.syncState = agrisync.State{}
	if m.currentView == ViewNotifications {
		m.currentView = ViewDashboard
	}
	m.logger.Debug("notification sync stopped")
}

func (m *Model) applySyncState(st agrisync.State) {
	m.syncState = st
	m.dashboard.SetState(st)
	m.panel.SetState(st.Notifications, st.UnreadCount)
}

// openPanel shows the notification panel and hydrates it on first use.
func (m *Model) openPanel() tea.Cmd {
	if m.syncer == nil {
		return nil
	}
	m.previousView = m.currentView
	m.currentView = ViewNotifications
	return m.fetchList()
}

func (m *Model) fetchList() tea.Cmd {
	s := m.syncer
	m.panel.SetLoading(len(s.Notifications()) == 0)
	return func() tea.Msg {
		return panelOpenedMsg{source: s, err: s.Open(context.Background())}
	}
}

func (m Model) markRead(id int) tea.Cmd {
	return m.action("mark read", func(ctx context.Context, s *agrisync.Synchronizer) error {
		return s.MarkAsRead(ctx, id)
	})
}

func (m Model) markAllRead() tea.Cmd {
	return m.action("mark all read", func(ctx context.Context, s *agrisync.Synchronizer) error {
		return s.MarkAllAsRead(ctx)
	})
}

func (m Model) deleteNotification(id int) tea.Cmd {
	return m.action("delete", func(ctx context.Context, s *agrisync.Synchronizer) error {
		return s.Delete(ctx, id)
	})
}

func (m Model) action(op string, run func(context.Context, *agrisync.Synchronizer) error) tea.Cmd {
	s := m.syncer
	if s == nil {
		return nil
	}
	return func() tea.Msg {
		return actionDoneMsg{source: s, op: op, err: run(context.Background(), s)}
	}
}

// handleActionDone refetches the list after a failed action while the
// panel is still open. Failures are not surfaced otherwise.
func (m Model) handleActionDone(msg actionDoneMsg) (tea.Model, tea.Cmd) {
	if msg.source != m.syncer || msg.err == nil {
		return m, nil
	}
	if m.currentView == ViewNotifications {
		return m, m.fetchList()
	}
	return m, nil
}
