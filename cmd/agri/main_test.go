package main

import (
	"bytes"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/agri-advisor/internal/credential"
	"github.com/nhle/agri-advisor/internal/model"
	"github.com/nhle/agri-advisor/tests/testutil"
)

const (
	testEmail    = "farmer@example.com"
	testPassword = "Secret123"
)

type cli struct {
	t       *testing.T
	backend *testutil.Backend
	tokens  *credential.KeyringStore
	config  string
}

func newCLI(t *testing.T) *cli {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("AGRI_CACHE_PATH", filepath.Join(dir, "cache.db"))
	t.Setenv("AGRI_LOG_LEVEL", "error")

	c := &cli{
		t:       t,
		backend: testutil.NewBackend(t),
		tokens:  credential.NewMemoryStore(),
		config:  filepath.Join(dir, "config.yaml"),
	}

	prev := openTokenStore
	openTokenStore = func(string) (credential.TokenStore, error) { return c.tokens, nil }
	t.Cleanup(func() { openTokenStore = prev })

	return c
}

// run executes the root command with args and returns its output.
func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()

	authEmail, authPassword = "", ""
	authFullName, authPhone, authLocation = "", "", ""
	listOffline = false

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(append([]string{"--config", c.config, "--api", c.backend.BaseURL()}, args...))

	err := execute()
	return buf.String(), err
}

func (c *cli) login() {
	c.t.Helper()
	_, err := c.run("login", "--email", testEmail, "--password", testPassword)
	require.NoError(c.t, err)
}

func signedToken(t *testing.T, userID int) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":     testEmail,
		"user_id": userID,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func TestLoginAndWhoami(t *testing.T) {
	c := newCLI(t)
	c.backend.AddUser(testEmail, testPassword, true)

	out, err := c.run("login", "--email", testEmail, "--password", testPassword)
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as "+testEmail)

	out, err = c.run("whoami")
	require.NoError(t, err)
	assert.Contains(t, out, testEmail)
	assert.Contains(t, out, "role: admin")
}

func TestLogin_Errors(t *testing.T) {
	c := newCLI(t)
	c.backend.AddUser(testEmail, testPassword, false)

	_, err := c.run("login", "--email", testEmail, "--password", "Wrong123")
	require.Error(t, err)
	assert.Equal(t, "Incorrect email or password", err.Error())

	_, err = c.run("login", "--email", "not-an-email", "--password", testPassword)
	require.Error(t, err)
	assert.Equal(t, "Invalid email format", err.Error())

	// Nothing was stored.
	_, err = c.tokens.Get()
	assert.ErrorIs(t, err, credential.ErrNotFound)
}

func TestRegister(t *testing.T) {
	c := newCLI(t)

	out, err := c.run("register", "--email", testEmail, "--password", testPassword, "--name", "Ada Farmer")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as Ada Farmer")

	_, err = c.run("register", "--email", testEmail, "--password", testPassword)
	require.Error(t, err)
	assert.Equal(t, "Email already registered", err.Error())

	_, err = c.run("register", "--email", "other@example.com", "--password", "weakpass")
	require.Error(t, err)
	assert.Equal(t, "Password must contain an uppercase letter", err.Error())
}

func TestLogout(t *testing.T) {
	c := newCLI(t)
	c.backend.AddUser(testEmail, testPassword, false)
	c.login()

	out, err := c.run("logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed out")

	_, err = c.run("whoami")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not signed in")
}

func TestNotifications(t *testing.T) {
	c := newCLI(t)
	c.backend.AddUser(testEmail, testPassword, false)
	c.backend.SetNotifications(
		model.Notification{ID: 1, Title: "Frost warning", Priority: model.PriorityUrgent, CreatedAt: time.Now()},
		model.Notification{ID: 2, Title: "Maize price up", Priority: model.PriorityNormal, CreatedAt: time.Now()},
	)
	c.login()

	out, err := c.run("notifications", "count")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)

	out, err = c.run("notifications", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Frost warning")
	assert.Contains(t, out, "Maize price up")
	assert.Contains(t, out, "2 unread")

	out, err = c.run("notifications", "read", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "1 unread")

	_, err = c.run("notifications", "delete", "2")
	require.NoError(t, err)
	assert.Len(t, c.backend.Notifications(), 1)

	_, err = c.run("notifications", "read", "abc")
	assert.EqualError(t, err, `invalid notification id "abc"`)
}

func TestNotifications_RequireSession(t *testing.T) {
	c := newCLI(t)

	_, err := c.run("notifications", "count")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not signed in")
	assert.Zero(t, c.backend.CountRequests(http.MethodGet, "/notifications/unread-count"))
}

func TestNotifications_Offline(t *testing.T) {
	c := newCLI(t)
	u := c.backend.AddUser(testEmail, testPassword, false)
	c.backend.NextToken = signedToken(t, u.ID)
	c.backend.SetNotifications(
		model.Notification{ID: 7, Title: "Rain expected", Priority: model.PriorityHigh, CreatedAt: time.Now()},
	)
	c.login()

	_, err := c.run("notifications", "list")
	require.NoError(t, err)

	// The backend is down; the cached copy is still readable.
	c.backend.Fail(http.MethodGet, "/notifications/", http.StatusServiceUnavailable, "maintenance")
	c.backend.Fail(http.MethodGet, "/v1/auth/me", http.StatusServiceUnavailable, "maintenance")

	out, err := c.run("notifications", "list", "--offline")
	require.NoError(t, err)
	assert.Contains(t, out, "Rain expected")
	assert.Contains(t, out, "1 unread")
}

func TestFailedCommandClosesCache(t *testing.T) {
	c := newCLI(t)
	c.backend.AddUser(testEmail, testPassword, false)
	c.login()

	_, err := c.run("notifications", "read", "abc")
	require.Error(t, err)
	assert.Nil(t, cache)

	// The database is free for the next invocation.
	out, err := c.run("notifications", "count")
	require.NoError(t, err)
	assert.Equal(t, "0\n", out)
	assert.Nil(t, cache)
}

func TestConfigSave(t *testing.T) {
	c := newCLI(t)

	out, err := c.run("config", "save")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved configuration to "+c.config)

	saved, err := model.LoadConfig(c.config)
	require.NoError(t, err)
	assert.Equal(t, c.backend.BaseURL(), saved.ResolvedBaseURL())

	out, err = c.run("config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, c.backend.BaseURL())
}

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs([]string{"3", "12"})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 12}, ids)

	_, err = parseIDs([]string{"0"})
	assert.Error(t, err)
}
