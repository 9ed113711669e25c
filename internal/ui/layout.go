package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/agri-advisor/internal/theme"
)

// Layout tracks the terminal size and the fixed chrome around the content.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout for a width x height terminal with a
// one-line header and status bar.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentHeight is the height left between header and status bar.
func (l Layout) ContentHeight() int {
	return max(l.Height-l.HeaderHeight-l.StatusBarHeight, 0)
}

// RenderHeader renders the app title on the left and the user name and
// notification bell on the right. badge is omitted when empty.
func (l Layout) RenderHeader(title, userName, badge string) string {
	left := theme.HeaderStyle.Render(title)

	right := userName
	if right != "" {
		right += "  "
	}
	right = theme.HeaderStyle.Render(right + "🔔")
	if badge != "" {
		right = lipgloss.JoinHorizontal(lipgloss.Top, right, theme.BadgeStyle.Render(badge))
	}

	return l.fill(left, right, theme.HeaderStyle)
}

// RenderStatusBar renders the bottom bar with keyboard hints on the left
// and an optional status message on the right.
func (l Layout) RenderStatusBar(hints, status string) string {
	left := theme.StatusBarStyle.Render(hints)
	right := ""
	if status != "" {
		right = theme.StatusBarStyle.Render(status)
	}
	return l.fill(left, right, theme.StatusBarStyle)
}

// fill pads the gap between left and right with the style background.
func (l Layout) fill(left, right string, style lipgloss.Style) string {
	gap := max(l.Width-lipgloss.Width(left)-lipgloss.Width(right), 0)
	filler := lipgloss.NewStyle().
		Width(gap).
		Background(style.GetBackground()).
		Render("")
	return lipgloss.JoinHorizontal(lipgloss.Top, left, filler, right)
}

// Center places content in the middle of the content area.
func (l Layout) Center(content string) string {
	return lipgloss.Place(l.Width, l.ContentHeight(), lipgloss.Center, lipgloss.Center, content)
}

// RenderWithFrame stacks header, content and status bar.
func (l Layout) RenderWithFrame(header, content, statusBar string) string {
	content = lipgloss.NewStyle().
		Height(l.ContentHeight()).
		MaxHeight(l.ContentHeight()).
		Render(content)
	return lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
}
