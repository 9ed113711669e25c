package app

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/agri-advisor/internal/api"
	"github.com/nhle/agri-advisor/internal/credential"
	"github.com/nhle/agri-advisor/internal/model"
	"github.com/nhle/agri-advisor/internal/session"
	agrisync "github.com/nhle/agri-advisor/internal/sync"
	"github.com/nhle/agri-advisor/internal/ui/login"
	"github.com/nhle/agri-advisor/internal/ui/notifications"
	"github.com/nhle/agri-advisor/tests/testutil"
)

const (
	testEmail    = "farmer@example.com"
	testPassword = "Secret123"
)

type harness struct {
	t       *testing.T
	backend *testutil.Backend
	mgr     *session.Manager
	tokens  credential.TokenStore
	m       Model
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	b := testutil.NewBackend(t)
	client := api.NewClient(b.BaseURL())
	tokens := credential.NewMemoryStore()
	mgr := session.New(client, tokens, nil)

	h := &harness{
		t:       t,
		backend: b,
		mgr:     mgr,
		tokens:  tokens,
		m:       New(Deps{Session: mgr, Client: client, PollInterval: time.Hour}),
	}
	t.Cleanup(func() { h.m.quit() })

	h.update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return h
}

// update feeds msg to the model and returns the resulting command.
func (h *harness) update(msg tea.Msg) tea.Cmd {
	h.t.Helper()
	next, cmd := h.m.Update(msg)
	m, ok := next.(Model)
	require.True(h.t, ok)
	h.m = m
	return cmd
}

func (h *harness) initialize() {
	h.t.Helper()
	h.update(initializeSession(h.mgr)())
}

func (h *harness) signIn() {
	h.t.Helper()
	cmd := h.update(login.LoginRequestMsg{Email: testEmail, Password: testPassword})
	require.NotNil(h.t, cmd)
	h.update(cmd())
}

func keyPress(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestApp_StartsValidating(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, ViewLoading, h.m.currentView)
	assert.Contains(t, h.m.View(), "Validating session...")
}

func TestApp_NoStoredTokenShowsLogin(t *testing.T) {
	h := newHarness(t)
	h.initialize()

	assert.Equal(t, ViewLogin, h.m.currentView)
	assert.Nil(t, h.m.syncer)
	assert.Contains(t, h.m.View(), "Sign in to Agri Advisor")
}

func TestApp_RestoredSessionShowsDashboard(t *testing.T) {
	h := newHarness(t)
	h.backend.AddUser(testEmail, testPassword, false)
	require.NoError(t, h.tokens.Set(h.backend.IssueToken(testEmail)))

	h.initialize()

	assert.Equal(t, ViewDashboard, h.m.currentView)
	require.NotNil(t, h.m.syncer)
	assert.Contains(t, h.m.View(), testEmail)
}

func TestApp_LoginStartsSync(t *testing.T) {
	h := newHarness(t)
	u := h.backend.AddUser(testEmail, testPassword, false)
	h.initialize()

	h.signIn()

	assert.Equal(t, ViewDashboard, h.m.currentView)
	require.NotNil(t, h.m.syncer)
	assert.Equal(t, u.ID, h.m.syncUserID)
}

func TestApp_LoginFailureShowsBanner(t *testing.T) {
	h := newHarness(t)
	h.backend.AddUser(testEmail, testPassword, false)
	h.initialize()

	cmd := h.update(login.LoginRequestMsg{Email: testEmail, Password: "Wrong123"})
	require.NotNil(t, cmd)
	h.update(cmd())

	assert.Equal(t, ViewLogin, h.m.currentView)
	assert.NotEmpty(t, h.m.loginView.Err())
	assert.Nil(t, h.m.syncer)
}

func TestApp_LogoutStopsSync(t *testing.T) {
	h := newHarness(t)
	h.backend.AddUser(testEmail, testPassword, false)
	h.initialize()
	h.signIn()
	s := h.m.syncer
	require.NotNil(t, s)

	h.update(keyPress("L"))

	assert.Equal(t, ViewLogin, h.m.currentView)
	assert.Nil(t, h.m.syncer)
	assert.False(t, h.mgr.IsAuthenticated())

	// Updates from the stopped synchronizer are ignored.
	h.update(syncUpdateMsg{source: s, state: agrisync.State{UnreadCount: 5}})
	assert.Zero(t, h.m.syncState.UnreadCount)
}

func TestApp_AdminGuard(t *testing.T) {
	tests := []struct {
		name      string
		superuser bool
		wantView  ViewState
		wantMsg   string
	}{
		{name: "regular user denied", superuser: false, wantView: ViewDashboard, wantMsg: session.AdminRequiredMessage},
		{name: "superuser allowed", superuser: true, wantView: ViewAdmin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.backend.AddUser(testEmail, testPassword, tt.superuser)
			h.initialize()
			h.signIn()

			h.update(keyPress("A"))

			assert.Equal(t, tt.wantView, h.m.currentView)
			assert.Equal(t, tt.wantMsg, h.m.status)
		})
	}
}

func TestApp_NotificationPanel(t *testing.T) {
	h := newHarness(t)
	h.backend.AddUser(testEmail, testPassword, false)
	h.backend.SetNotifications(
		model.Notification{ID: 1, Title: "Rain expected", Priority: model.PriorityHigh, CreatedAt: time.Now()},
		model.Notification{ID: 2, Title: "Maize price up", Priority: model.PriorityNormal, CreatedAt: time.Now()},
	)
	h.initialize()
	h.signIn()
	s := h.m.syncer
	require.Eventually(t, func() bool { return !s.State().LastPoll.IsZero() }, 5*time.Second, 10*time.Millisecond)

	cmd := h.update(keyPress("n"))
	require.NotNil(t, cmd)
	assert.Equal(t, ViewNotifications, h.m.currentView)

	h.update(cmd())
	h.update(syncUpdateMsg{source: s, state: s.State()})
	assert.Equal(t, 2, h.m.panel.Len())

	cmd = h.update(notifications.MarkReadMsg{ID: 1})
	require.NotNil(t, cmd)
	h.update(cmd())

	st := s.State()
	h.update(syncUpdateMsg{source: s, state: st})
	assert.Equal(t, 1, h.m.syncState.UnreadCount)
	assert.Contains(t, h.m.View(), "🔔")

	h.update(notifications.CloseMsg{})
	assert.Equal(t, ViewDashboard, h.m.currentView)
}

func TestApp_HelpToggle(t *testing.T) {
	h := newHarness(t)
	h.backend.AddUser(testEmail, testPassword, false)
	h.initialize()
	h.signIn()

	h.update(keyPress("?"))
	assert.Equal(t, ViewHelp, h.m.currentView)
	assert.Contains(t, h.m.View(), "Keyboard Shortcuts")

	h.update(keyPress("?"))
	assert.Equal(t, ViewDashboard, h.m.currentView)
}

func TestApp_FocusTogglesVisibility(t *testing.T) {
	h := newHarness(t)
	h.backend.AddUser(testEmail, testPassword, false)
	h.initialize()
	h.signIn()

	// Focus messages without a synchronizer are ignored; with one they
	// must not disturb the view.
	h.update(tea.BlurMsg{})
	h.update(tea.FocusMsg{})
	assert.Equal(t, ViewDashboard, h.m.currentView)
}

func TestAuthMessage(t *testing.T) {
	assert.Equal(t, "Incorrect email or password",
		authMessage("login", &session.Error{Op: "login", Message: "Incorrect email or password"}))
	assert.Equal(t, session.MsgLoginFailed, authMessage("login", assert.AnError))
	assert.Equal(t, session.MsgRegistrationFailed, authMessage("register", assert.AnError))
}
