package ui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"

	"github.com/sidewalk-ota/otadash/internal/ota"
)

type loginForm struct {
	inputs     []textinput.Model
	focused    int
	submitting bool
}

func newLoginForm() loginForm {
	user := textinput.New()
	user.Placeholder = "username"
	user.Prompt = "User     "
	user.CharLimit = 128

	pass := textinput.New()
	pass.Placeholder = "password"
	pass.Prompt = "Password "
	pass.EchoMode = textinput.EchoPassword
	pass.EchoCharacter = '•'
	pass.CharLimit = 128

	return loginForm{inputs: []textinput.Model{user, pass}}
}

func (f *loginForm) focus(i int) {
	f.focused = (i + len(f.inputs)) % len(f.inputs)
	for idx := range f.inputs {
		if idx == f.focused {
			f.inputs[idx].Focus()
		} else {
			f.inputs[idx].Blur()
		}
	}
}

func (f loginForm) username() string { return strings.TrimSpace(f.inputs[0].Value()) }
func (f loginForm) password() string { return f.inputs[1].Value() }

func textinputBlink() tea.Cmd {
	return textinput.Blink
}

func (m Model) handleLoginKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.login.submitting {
		return m, nil
	}
	switch msg.String() {
	case "tab", "down":
		m.login.focus(m.login.focused + 1)
		return m, nil
	case "shift+tab", "up":
		m.login.focus(m.login.focused - 1)
		return m, nil
	case "enter":
		if m.login.focused == 0 {
			m.login.focus(1)
			return m, nil
		}
		username := m.login.username()
		if username == "" {
			m.notices.Error("Username is required")
			m.login.focus(0)
			return m, nil
		}
		m.login.submitting = true
		return m, loginCmd(m.ctx, m.api, username, m.login.password())
	}

	var cmd tea.Cmd
	m.login.inputs[m.login.focused], cmd = m.login.inputs[m.login.focused].Update(msg)
	return m, cmd
}

func (m Model) handleLoginResult(msg loginResultMsg) (tea.Model, tea.Cmd) {
	m.login.submitting = false
	if msg.err != nil {
		log.Warn().Err(msg.err).Str("username", msg.username).Msg("login failed")
		if errors.Is(msg.err, ota.ErrUnauthorized) {
			m.notices.Error("Wrong username or password")
		} else {
			m.notices.Error("Error while trying to log in")
		}
		m.login.inputs[1].SetValue("")
		m.login.focus(1)
		return m, nil
	}

	log.Info().Str("username", msg.username).Msg("logged in")
	m.notices.Success("Logged in as " + msg.username)
	m.login = newLoginForm()
	m.currentView = m.lastView
	if m.currentView == ViewLogin {
		m.currentView = ViewDevices
	}
	cmds := m.loadAll()
	switch m.currentView {
	case ViewActivity:
		cmds = append(cmds, m.loadActivity())
	case ViewSensors:
		cmds = append(cmds, m.sensors.Start())
	}
	return m, tea.Batch(cmds...)
}

func (m Model) renderLogin() string {
	styles := m.theme.Styles()
	var b strings.Builder
	b.WriteString(styles.Logo.Render("otadash"))
	b.WriteString(styles.MutedText.Render("  sign in to the OTA backend"))
	b.WriteString("\n\n")
	for _, in := range m.login.inputs {
		b.WriteString(in.View())
		b.WriteString("\n")
	}
	b.WriteString("\n")
	if m.login.submitting {
		b.WriteString(m.spinner.View() + styles.WarningText.Render(" signing in"))
	} else {
		b.WriteString(styles.MutedText.Render("tab switch field · enter sign in · ctrl+c quit"))
	}

	form := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.Accent)).
		Padding(1, 2).
		Width(52).
		Render(b.String())
	return lipgloss.Place(m.width, m.contentHeight(), lipgloss.Center, lipgloss.Center, form)
}
