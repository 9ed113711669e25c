package app

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/agri-advisor/internal/api"
	"github.com/nhle/agri-advisor/internal/session"
)

// sessionChangedMsg is delivered whenever the session manager notifies.
type sessionChangedMsg struct{}

// sessionInitializedMsg is delivered once startup validation settles.
type sessionInitializedMsg struct{}

// authResultMsg carries the outcome of a login or register attempt.
type authResultMsg struct {
	op  string
	err error
}

// waitForSession blocks until the next session notification.
func waitForSession(ch <-chan session.Snapshot) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return sessionChangedMsg{}
	}
}

func initializeSession(mgr *session.Manager) tea.Cmd {
	return func() tea.Msg {
		// Validation failures are handled inside the manager.
		_ = mgr.Initialize(context.Background())
		return sessionInitializedMsg{}
	}
}

func loginCmd(mgr *session.Manager, email, password string) tea.Cmd {
	return func() tea.Msg {
		err := mgr.Login(context.Background(), email, password)
		return authResultMsg{op: "login", err: err}
	}
}

func registerCmd(mgr *session.Manager, req api.RegisterRequest) tea.Cmd {
	return func() tea.Msg {
		err := mgr.Register(context.Background(), req)
		return authResultMsg{op: "register", err: err}
	}
}

func (m Model) handleAuthResult(msg authResultMsg) (tea.Model, tea.Cmd) {
	if errors.Is(msg.err, session.ErrSuperseded) {
		return m, nil
	}
	if msg.err != nil {
		m.logger.Info("authentication failed", zap.String("op", msg.op), zap.Error(msg.err))
		cmd := m.loginView.Fail(authMessage(msg.op, msg.err))
		return m, cmd
	}
	return m, m.applySession(m.deps.Session.Snapshot())
}

// applySession routes on snap and keeps the synchronizer bound to the
// signed-in user.
func (m *Model) applySession(snap session.Snapshot) tea.Cmd {
	m.snap = snap

	var cmds []tea.Cmd

	if snap.User == nil || snap.User.ID != m.syncUserID {
		m.stopSync()
	}
	if snap.User != nil && m.syncer == nil {
		cmds = append(cmds, m.startSync(snap.User.ID))
	}

	var claims *session.Claims
	if c, err := session.ParseClaims(snap.Token); err == nil {
		claims = &c
	}
	m.dashboard.SetUser(snap.User, claims)

	switch session.RequireAuth(snap) {
	case session.Wait:
		m.currentView = ViewLoading
	case session.RedirectLogin:
		if m.currentView != ViewLogin {
			m.currentView = ViewLogin
			cmds = append(cmds, m.loginView.Reset())
		}
	case session.Allow:
		switch m.currentView {
		case ViewLoading, ViewLogin:
			m.currentView = ViewDashboard
		case ViewAdmin:
			if session.RequireAdmin(snap) != session.Allow {
				m.currentView = ViewDashboard
			}
		}
	}

	return tea.Batch(cmds...)
}

// openAdmin applies the admin guard.
func (m *Model) openAdmin() tea.Cmd {
	switch session.RequireAdmin(m.snap) {
	case session.Allow:
		m.previousView = m.currentView
		m.currentView = ViewAdmin
	case session.Deny:
		m.status = session.AdminRequiredMessage
	}
	return nil
}

func authMessage(op string, err error) string {
	var se *session.Error
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	if op == "register" {
		return session.MsgRegistrationFailed
	}
	return session.MsgLoginFailed
}
