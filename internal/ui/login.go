package ui

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/biblio/internal/failure"
)

// Login form field order.
const (
	loginTenant = iota
	loginEmail
	loginPassword
)

type loginSubmitMsg struct {
	tenant, email, password string
}

func newLoginForm(lastTenant, lastEmail string) *formModal {
	fields := []formField{
		newField("Tenant", lastTenant, "library code", 64),
		newField("Email", lastEmail, "you@example.org", 128),
		newPasswordField("Password"),
	}
	f := newFormModal("Sign in", fields, func(values []string) (tea.Cmd, error) {
		msg := loginSubmitMsg{tenant: values[loginTenant], email: values[loginEmail], password: values[loginPassword]}
		return func() tea.Msg { return msg }, nil
	})
	f.keepOpen = true
	f.hint = "Sign in with your library account."
	switch {
	case lastTenant == "":
		f.setFocus(loginTenant)
	case lastEmail == "":
		f.setFocus(loginEmail)
	default:
		f.setFocus(loginPassword)
	}
	return f
}

// startLogin sends the credentials. The form stays up until the backend
// answers.
func (m *Model) startLogin(msg loginSubmitMsg) tea.Cmd {
	if m.auth == nil || m.view != ViewLogin {
		return nil
	}
	m.login.errMsg = ""
	m.login.hint = "Signing in..."
	m.epoch++
	auth, epoch, parent := m.auth, m.epoch, m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, RequestTimeout)
		defer cancel()
		s, err := auth.Login(ctx, msg.tenant, msg.email, msg.password)
		return loginMsg{epoch: epoch, session: s, err: err}
	}
}

func (m *Model) handleLogin(msg loginMsg) tea.Cmd {
	if msg.epoch != m.epoch || m.view != ViewLogin {
		return nil
	}
	m.login.hint = "Sign in with your library account."
	m.login.fields[loginPassword].input.SetValue("")
	if msg.err != nil {
		m.login.errMsg = loginError(msg.err)
		m.login.setFocus(loginPassword)
		return nil
	}
	m.login.errMsg = ""
	m.session = msg.session
	m.log.Info().Str("user", msg.session.DisplayName).Msg("signed in from ui")
	return m.switchView(ViewDashboard)
}

func (m Model) renderLogin() string {
	styles := m.theme.Styles()
	logo := styles.Logo.Render("biblio") + "  " + styles.MutedText.Render("library desk")
	body := lipgloss.JoinVertical(lipgloss.Left, logo, "", m.login.body(styles))
	return placeModal(m.theme, m.width, m.height, 60, body)
}

// loginError words a failed login for the form.
func loginError(err error) string {
	switch failure.KindOf(err) {
	case failure.Unauthorized:
		return "Tenant, email or password not accepted."
	case failure.Network:
		return "Backend unreachable. Check the API address."
	}
	if msg := strings.TrimSpace(failure.MessageOf(err)); msg != "" {
		return msg
	}
	return "Sign-in failed."
}
