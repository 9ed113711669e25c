package app

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/nhle/agri-advisor/internal/keys"
	"github.com/nhle/agri-advisor/internal/logging"
	"github.com/nhle/agri-advisor/internal/session"
	agrisync "github.com/nhle/agri-advisor/internal/sync"
	"github.com/nhle/agri-advisor/internal/theme"
	"github.com/nhle/agri-advisor/internal/ui"
	"github.com/nhle/agri-advisor/internal/ui/dashboard"
	helpview "github.com/nhle/agri-advisor/internal/ui/help"
	"github.com/nhle/agri-advisor/internal/ui/login"
	"github.com/nhle/agri-advisor/internal/ui/notifications"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewLoading ViewState = iota
	ViewLogin
	ViewDashboard
	ViewNotifications
	ViewAdmin
	ViewHelp
)

// Deps are the collaborators the root model drives.
type Deps struct {
	Session *session.Manager
	Client  agrisync.Client

	// Cache is optional. When set, every synchronizer writes through it.
	Cache agrisync.Cache

	PollInterval time.Duration
	Logger       *zap.Logger
}

// Model is the root Bubble Tea model. It routes between views based on
// the session state and owns the notification synchronizer of the
// signed-in user.
type Model struct {
	deps   Deps
	logger *zap.Logger
	keys   *keys.KeyMap
	layout ui.Layout
	ready  bool

	currentView  ViewState
	previousView ViewState

	spinner   spinner.Model
	loginView login.Model
	dashboard dashboard.Model
	panel     notifications.Model
	helpView  helpview.Model

	snap       session.Snapshot
	sessCh     <-chan session.Snapshot
	sessCancel func()

	syncer     *agrisync.Synchronizer
	syncUserID int
	syncState  agrisync.State

	// status is shown on the right of the status bar until the next key.
	status string
}

// New creates the root model and subscribes to session changes.
func New(deps Deps) Model {
	km := keys.DefaultKeyMap()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.ColorGreen)

	ch, cancel := deps.Session.Subscribe()

	return Model{
		deps:        deps,
		logger:      logging.OrNop(deps.Logger),
		keys:        km,
		layout:      ui.NewLayout(80, 24),
		currentView: ViewLoading,
		spinner:     sp,
		loginView:   login.New(km, 80, 24),
		dashboard:   dashboard.New(80, 24),
		panel:       notifications.New(km, 80, 24),
		helpView:    helpview.New(km, 80, 24),
		snap:        deps.Session.Snapshot(),
		sessCh:      ch,
		sessCancel:  cancel,
	}
}

// Init starts session validation and the loading spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		waitForSession(m.sessCh),
		initializeSession(m.deps.Session),
		m.loginView.Init(),
	)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.Width, m.layout.ContentHeight()
		m.loginView.SetSize(w, h)
		m.dashboard.SetSize(w, h)
		m.panel.SetSize(w, h)
		m.helpView.SetSize(w, h)
		return m, nil

	case tea.FocusMsg:
		if m.syncer != nil {
			m.syncer.SetVisible(true)
		}
		return m, nil

	case tea.BlurMsg:
		if m.syncer != nil {
			m.syncer.SetVisible(false)
		}
		return m, nil

	case spinner.TickMsg:
		var cmds []tea.Cmd
		if m.currentView == ViewLoading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
		if m.loginView.Submitting() {
			var cmd tea.Cmd
			m.loginView, cmd = m.loginView.Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case sessionChangedMsg:
		cmd := m.applySession(m.deps.Session.Snapshot())
		return m, tea.Batch(cmd, waitForSession(m.sessCh))

	case sessionInitializedMsg:
		return m, m.applySession(m.deps.Session.Snapshot())

	case login.LoginRequestMsg:
		return m, loginCmd(m.deps.Session, msg.Email, msg.Password)

	case login.RegisterRequestMsg:
		return m, registerCmd(m.deps.Session, msg.Request)

	case authResultMsg:
		return m.handleAuthResult(msg)

	case login.QuitMsg:
		return m, m.quit()

	case syncUpdateMsg:
		if msg.source != m.syncer {
			return m, nil
		}
		m.applySyncState(msg.state)
		return m, waitForSync(m.syncer)

	case panelOpenedMsg:
		if msg.source != m.syncer {
			return m, nil
		}
		m.panel.SetLoading(false)
		return m, nil

	case actionDoneMsg:
		return m.handleActionDone(msg)

	case notifications.CloseMsg:
		m.currentView = ViewDashboard
		return m, nil

	case notifications.MarkReadMsg:
		return m, m.markRead(msg.ID)

	case notifications.MarkAllReadMsg:
		return m, m.markAllRead()

	case notifications.DeleteMsg:
		return m, m.deleteNotification(msg.ID)

	case tea.KeyMsg:
		m.status = ""

		if msg.String() == "ctrl+c" {
			return m, m.quit()
		}
		// The login form owns every other key.
		if m.currentView == ViewLogin {
			break
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, m.quit()

		case key.Matches(msg, m.keys.Help):
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewHelp
			return m, nil

		case key.Matches(msg, m.keys.Logout):
			if m.snap.IsAuthenticated() {
				m.deps.Session.Logout()
				return m, m.applySession(m.deps.Session.Snapshot())
			}

		case key.Matches(msg, m.keys.Refresh):
			if m.syncer != nil {
				m.syncer.Refresh()
				return m, nil
			}

		case key.Matches(msg, m.keys.Admin):
			return m, m.openAdmin()

		case key.Matches(msg, m.keys.Back):
			if m.currentView == ViewAdmin || m.currentView == ViewHelp {
				m.currentView = ViewDashboard
				return m, nil
			}

		case key.Matches(msg, m.keys.Notifications):
			if m.currentView == ViewDashboard {
				return m, m.openPanel()
			}
		}
	}

	return m.updateActiveView(msg)
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewLogin:
		m.loginView, cmd = m.loginView.Update(msg)
	case ViewNotifications:
		m.panel, cmd = m.panel.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	userName, badge := "", ""
	if u := m.snap.User; u != nil {
		userName = u.DisplayName()
		badge = agrisync.BadgeText(m.syncState.UnreadCount)
	}

	header := m.layout.RenderHeader("Agri Advisor", userName, badge)
	statusBar := m.layout.RenderStatusBar(m.keyHints(), m.status)

	return m.layout.RenderWithFrame(header, m.renderContent(), statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewLoading:
		return m.layout.Center(m.spinner.View() + " Validating session...")
	case ViewLogin:
		return m.layout.Center(m.loginView.View())
	case ViewDashboard:
		return m.layout.Center(m.dashboard.View())
	case ViewNotifications:
		return m.panel.View()
	case ViewAdmin:
		return m.layout.Center(m.dashboard.AdminView())
	case ViewHelp:
		return m.helpView.View()
	default:
		return ""
	}
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewLoading:
		return "ctrl+c quit"
	case ViewLogin:
		return "enter submit | tab next field | ctrl+n switch form | ctrl+c quit"
	case ViewNotifications:
		return "j/k move | m read | M all read | d delete | esc close"
	case ViewAdmin:
		return "esc back | L log out | q quit"
	case ViewHelp:
		return "? close help | esc back"
	default:
		return m.helpView.ShortView()
	}
}

// quit stops background work and exits.
func (m *Model) quit() tea.Cmd {
	m.stopSync()
	if m.sessCancel != nil {
		m.sessCancel()
	}
	return tea.Quit
}
