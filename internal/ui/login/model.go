package login

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/agri-advisor/internal/api"
	"github.com/nhle/agri-advisor/internal/keys"
	"github.com/nhle/agri-advisor/internal/theme"
	"github.com/nhle/agri-advisor/internal/validate"
)

// Mode selects which form is shown.
type Mode int

const (
	ModeLogin Mode = iota
	ModeRegister
)

// LoginRequestMsg is dispatched when the sign-in form passes validation.
type LoginRequestMsg struct {
	Email    string
	Password string
}

// RegisterRequestMsg is dispatched when the sign-up form passes validation.
type RegisterRequestMsg struct {
	Request api.RegisterRequest
}

// QuitMsg is dispatched when the user aborts the form.
type QuitMsg struct{}

// formBindings holds field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	email           string
	password        string
	confirmPassword string
	fullName        string
	phone           string
	location        string
}

// Model is the sign-in / sign-up screen.
type Model struct {
	keys       *keys.KeyMap
	form       *huh.Form
	fb         *formBindings
	mode       Mode
	err        string
	submitting bool
	spinner    spinner.Model
	width      int
	height     int
}

// New creates the screen in sign-in mode.
func New(km *keys.KeyMap, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.ColorGreen)

	m := Model{
		keys:    km,
		fb:      &formBindings{},
		spinner: sp,
		width:   width,
		height:  height,
	}
	m.form = m.buildForm()
	return m
}

// Init starts the form.
func (m Model) Init() tea.Cmd {
	return m.form.Init()
}

// Mode returns the form currently shown.
func (m Model) Mode() Mode {
	return m.mode
}

// Err returns the banner message, if any.
func (m Model) Err() string {
	return m.err
}

// Submitting reports whether a request is in flight.
func (m Model) Submitting() bool {
	return m.submitting
}

// Reset clears every field and the banner and shows the sign-in form.
func (m *Model) Reset() tea.Cmd {
	*m.fb = formBindings{}
	m.mode = ModeLogin
	m.err = ""
	m.submitting = false
	m.form = m.buildForm()
	return m.form.Init()
}

// Fail shows msg in the banner and reopens the form. The email is kept.
func (m *Model) Fail(msg string) tea.Cmd {
	m.err = msg
	m.submitting = false
	m.fb.password = ""
	m.fb.confirmPassword = ""
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the screen.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.submitting {
		if _, ok := msg.(spinner.TickMsg); ok {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	if kmsg, ok := msg.(tea.KeyMsg); ok && key.Matches(kmsg, m.keys.SwitchForm) {
		if m.mode == ModeLogin {
			m.mode = ModeRegister
		} else {
			m.mode = ModeLogin
		}
		m.err = ""
		m.form = m.buildForm()
		return m, m.form.Init()
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		return m.submit()
	case huh.StateAborted:
		return m, func() tea.Msg { return QuitMsg{} }
	}

	return m, cmd
}

// submit re-checks the whole form, since per-field validation only runs
// on the fields the user visited.
func (m Model) submit() (Model, tea.Cmd) {
	email := strings.TrimSpace(m.fb.email)

	if m.mode == ModeLogin {
		if res := validate.LoginForm(email, m.fb.password); !res.Valid {
			cmd := m.Fail(firstError(res, "email", "password"))
			return m, cmd
		}
		m.submitting = true
		req := LoginRequestMsg{Email: email, Password: m.fb.password}
		return m, tea.Batch(m.spinner.Tick, func() tea.Msg { return req })
	}

	in := validate.RegisterInput{
		Email:           email,
		Password:        m.fb.password,
		ConfirmPassword: m.fb.confirmPassword,
	}
	if res := validate.RegisterForm(in); !res.Valid {
		cmd := m.Fail(firstError(res, "email", "password", "confirmPassword"))
		return m, cmd
	}
	profile := validate.ProfileInput{
		FullName: m.fb.fullName,
		Phone:    m.fb.phone,
		Location: m.fb.location,
	}
	validate.SanitizeFields(&profile.FullName, &profile.Phone, &profile.Location)
	if res := validate.ProfileForm(profile); !res.Valid {
		cmd := m.Fail(firstError(res, "phone"))
		return m, cmd
	}

	m.submitting = true
	req := RegisterRequestMsg{Request: api.RegisterRequest{
		Email:    email,
		Password: m.fb.password,
		FullName: optional(profile.FullName),
		Phone:    optional(profile.Phone),
		Location: optional(profile.Location),
	}}
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg { return req })
}

// View renders the screen.
func (m Model) View() string {
	title := "Sign in to Agri Advisor"
	if m.mode == ModeRegister {
		title = "Create an account"
	}

	parts := []string{theme.TitleStyle.Render(title)}
	if m.err != "" {
		parts = append(parts, theme.ErrorBannerStyle.Render(m.err), "")
	}

	if m.submitting {
		label := "Signing in..."
		if m.mode == ModeRegister {
			label = "Creating account..."
		}
		parts = append(parts, m.spinner.View()+" "+label)
	} else {
		parts = append(parts, m.form.View())
	}

	switchHint := "ctrl+n: create an account"
	if m.mode == ModeRegister {
		switchHint = "ctrl+n: back to sign in"
	}
	parts = append(parts, "", theme.HelpStyle.Render(switchHint))

	return theme.PanelStyle.
		Width(m.formWidth()).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetSize updates the screen dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	if m.form != nil {
		m.form = m.form.WithWidth(m.formWidth() - 6)
	}
}

func (m *Model) buildForm() *huh.Form {
	fb := m.fb

	var fields []huh.Field
	if m.mode == ModeLogin {
		fields = []huh.Field{
			huh.NewInput().
				Title("Email").
				Placeholder("you@farm.com").
				Value(&fb.email).
				Validate(func(s string) error {
					return fieldError(validate.LoginForm(strings.TrimSpace(s), fb.password), "email")
				}),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&fb.password).
				Validate(func(s string) error {
					return fieldError(validate.LoginForm(fb.email, s), "password")
				}),
		}
	} else {
		fields = []huh.Field{
			huh.NewInput().
				Title("Email").
				Placeholder("you@farm.com").
				Value(&fb.email).
				Validate(func(s string) error {
					return fieldError(validate.RegisterForm(validate.RegisterInput{Email: strings.TrimSpace(s)}), "email")
				}),
			huh.NewInput().
				Title("Password").
				Description("At least 8 characters with an uppercase letter and a number").
				EchoMode(huh.EchoModePassword).
				Value(&fb.password).
				Validate(func(s string) error {
					return fieldError(validate.RegisterForm(validate.RegisterInput{Password: s}), "password")
				}),
			huh.NewInput().
				Title("Confirm password").
				EchoMode(huh.EchoModePassword).
				Value(&fb.confirmPassword).
				Validate(func(s string) error {
					in := validate.RegisterInput{Password: fb.password, ConfirmPassword: s}
					return fieldError(validate.RegisterForm(in), "confirmPassword")
				}),
			huh.NewInput().
				Title("Full name").
				Placeholder("Optional").
				Value(&fb.fullName),
			huh.NewInput().
				Title("Phone").
				Placeholder("Optional").
				Value(&fb.phone).
				Validate(func(s string) error {
					return fieldError(validate.ProfileForm(validate.ProfileInput{Phone: strings.TrimSpace(s)}), "phone")
				}),
			huh.NewInput().
				Title("Location").
				Placeholder("Optional").
				Value(&fb.location),
		}
	}

	return huh.NewForm(
		huh.NewGroup(fields...),
	).WithWidth(m.formWidth() - 6).WithShowHelp(false)
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 70)
}

func fieldError(res validate.Result, field string) error {
	if msg := res.Error(field); msg != "" {
		return errors.New(msg)
	}
	return nil
}

func firstError(res validate.Result, fields ...string) string {
	for _, f := range fields {
		if msg := res.Error(f); msg != "" {
			return msg
		}
	}
	for _, msg := range res.Errors {
		return msg
	}
	return "Please check the form"
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
