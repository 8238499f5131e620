package ui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Modal is the interface for modal dialogs.
// The Update method returns the updated modal, a command, and a bool indicating if the modal should close.
type Modal interface {
	Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool)
	View(theme Theme, width, height int) string
}

// confirmedMsg is emitted when a confirm modal is accepted.
type confirmedMsg struct {
	action string
	ids    []string
}

type confirmModal struct {
	title  string
	body   string
	action string
	ids    []string
}

func (c confirmModal) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return c, nil, false
	}
	switch {
	case key.Matches(km, keys.Confirm), km.String() == "y":
		out := confirmedMsg{action: c.action, ids: c.ids}
		return c, func() tea.Msg { return out }, true
	case key.Matches(km, keys.Back), km.String() == "n":
		return c, nil, true
	}
	return c, nil, false
}

func (c confirmModal) View(theme Theme, width, height int) string {
	styles := theme.Styles()
	content := styles.AccentText.Bold(true).Render(c.title) + "\n\n" +
		styles.Text.Render(c.body) + "\n\n" +
		styles.MutedText.Render("enter/y confirm · esc/n cancel")
	return placeModal(theme, width, height, content)
}

// startTimeMsg carries the scheduled start chosen in the modal. A zero time
// means start immediately.
type startTimeMsg struct {
	at time.Time
}

const startTimeLayout = "2006-01-02 15:04"

type startTimeModal struct {
	input textinput.Model
	err   string
	now   func() time.Time
}

func newStartTimeModal(current time.Time, now func() time.Time) startTimeModal {
	in := textinput.New()
	in.Placeholder = startTimeLayout
	in.CharLimit = len(startTimeLayout)
	in.Width = len(startTimeLayout) + 1
	if !current.IsZero() {
		in.SetValue(current.Local().Format(startTimeLayout))
	}
	in.Focus()
	return startTimeModal{input: in, now: now}
}

func (s startTimeModal) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	if km, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(km, keys.Back):
			return s, nil, true
		case key.Matches(km, keys.Confirm):
			at, err := parseStartTime(s.input.Value(), s.now())
			if err != nil {
				s.err = err.Error()
				return s, nil, false
			}
			out := startTimeMsg{at: at}
			return s, func() tea.Msg { return out }, true
		}
	}
	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return s, cmd, false
}

func (s startTimeModal) View(theme Theme, width, height int) string {
	styles := theme.Styles()
	var b strings.Builder
	b.WriteString(styles.AccentText.Bold(true).Render("Schedule transfer start"))
	b.WriteString("\n\n")
	b.WriteString(s.input.View())
	b.WriteString("\n")
	if s.err != "" {
		b.WriteString(styles.DangerText.Render(s.err))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(styles.MutedText.Render("local time · empty starts now · esc cancel"))
	return placeModal(theme, width, height, b.String())
}

type startTimeError string

func (e startTimeError) Error() string { return string(e) }

// parseStartTime reads a local start time. Blank input means now.
func parseStartTime(value string, now time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	at, err := time.ParseInLocation(startTimeLayout, value, time.Local)
	if err != nil {
		return time.Time{}, startTimeError("use the format " + startTimeLayout)
	}
	if at.Before(now) {
		return time.Time{}, startTimeError("start time is in the past")
	}
	return at, nil
}

func placeModal(theme Theme, width, height int, content string) string {
	modal := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(theme.Accent)).
		Padding(1, 2).
		Width(48)
	return lipgloss.Place(
		width,
		height,
		lipgloss.Center,
		lipgloss.Center,
		modal.Render(content),
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(theme.Background)),
	)
}
