package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/agri-advisor/internal/model"
	"github.com/nhle/agri-advisor/internal/session"
	agrisync "github.com/nhle/agri-advisor/internal/sync"
	"github.com/nhle/agri-advisor/internal/theme"
)

// Model renders the signed-in landing page and the admin panel.
type Model struct {
	user   *model.User
	claims *session.Claims
	state  agrisync.State
	width  int
	height int
	now    func() time.Time
}

// New creates the dashboard.
func New(width, height int) Model {
	return Model{width: width, height: height, now: time.Now}
}

// SetUser sets the profile shown. nil clears it.
func (m *Model) SetUser(u *model.User, claims *session.Claims) {
	m.user = u
	m.claims = claims
}

// SetState records the latest synchronizer state.
func (m *Model) SetState(s agrisync.State) {
	m.state = s
}

// SetSize updates the dashboard dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// View renders the profile card and a notification summary.
func (m Model) View() string {
	if m.user == nil {
		return ""
	}
	u := m.user

	rows := [][2]string{
		{"Email", u.Email},
		{"Name", deref(u.FullName)},
		{"Phone", deref(u.Phone)},
		{"Location", deref(u.Location)},
	}
	if len(u.FavoriteCrops) > 0 {
		rows = append(rows, [2]string{"Crops", strings.Join(u.FavoriteCrops, ", ")})
	}
	if !u.CreatedAt.IsZero() {
		rows = append(rows, [2]string{"Member since", u.CreatedAt.Local().Format("Jan 2, 2006")})
	}

	profile := lipgloss.JoinVertical(lipgloss.Left,
		theme.TitleStyle.Render("Welcome, "+u.DisplayName()),
		renderRows(rows),
	)

	summary := theme.DimmedStyle.Render("No unread notifications")
	if n := m.state.UnreadCount; n > 0 {
		noun := "notifications"
		if n == 1 {
			noun = "notification"
		}
		summary = fmt.Sprintf("You have %d unread %s. Press n to view.", n, noun)
	}
	if !m.state.LastPoll.IsZero() {
		summary += "\n" + theme.DimmedStyle.Render("Checked "+agrisync.TimeAgo(m.state.LastPoll, m.now()))
	}

	return theme.PanelStyle.
		Width(m.panelWidth()).
		Render(lipgloss.JoinVertical(lipgloss.Left, profile, "", summary))
}

// AdminView renders the admin panel. Callers check RequireAdmin first.
func (m Model) AdminView() string {
	if m.user == nil {
		return ""
	}

	rows := [][2]string{
		{"User ID", fmt.Sprint(m.user.ID)},
		{"Superuser", fmt.Sprint(m.user.IsSuperuser)},
		{"Active", fmt.Sprint(m.user.IsActive)},
	}
	if m.claims != nil {
		if m.claims.Subject != "" {
			rows = append(rows, [2]string{"Token subject", m.claims.Subject})
		}
		if !m.claims.ExpiresAt.IsZero() {
			exp := m.claims.ExpiresAt.Local().Format(time.DateTime)
			if m.claims.Expired(m.now()) {
				exp += " (expired)"
			}
			rows = append(rows, [2]string{"Token expires", exp})
		}
	}

	return theme.PanelStyle.
		Width(m.panelWidth()).
		Render(lipgloss.JoinVertical(lipgloss.Left,
			theme.TitleStyle.Render("Administration"),
			renderRows(rows),
			"",
			theme.HelpStyle.Render("esc: back"),
		))
}

func (m Model) panelWidth() int {
	return min(max(m.width-4, 40), 80)
}

func renderRows(rows [][2]string) string {
	label := lipgloss.NewStyle().Width(14).Foreground(theme.ColorGray)
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		v := r[1]
		if v == "" {
			v = theme.DimmedStyle.Render("-")
		}
		lines = append(lines, label.Render(r[0])+v)
	}
	return strings.Join(lines, "\n")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
