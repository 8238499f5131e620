package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

// renderHelp renders the help overlay.
func (m Model) renderHelp() string {
	styles := m.theme.Styles()

	sections := []helpSection{
		{"Views", []key.Binding{m.keys.Tab, m.keys.ViewDevices, m.keys.ViewTasks, m.keys.ViewFirmware, m.keys.ViewActivity, m.keys.ViewSensors}},
		{"Navigation", []key.Binding{m.keys.Up, m.keys.Down, m.keys.NextPage, m.keys.PrevPage}},
		{"Devices", []key.Binding{m.keys.Select, m.keys.Upload, m.keys.Schedule, m.keys.Start, m.keys.LocateTask, m.keys.ClearDraft}},
		{"Tasks", []key.Binding{m.keys.Select, m.keys.Expand, m.keys.NextDevice, m.keys.PrevDevice, m.keys.LocateDevice, m.keys.CancelTasks}},
		{"Firmware", []key.Binding{m.keys.ChooseFile, m.keys.SetCurrent, m.keys.Upload}},
		{"General", []key.Binding{m.keys.Refresh, m.keys.CycleTheme, m.keys.Logout, m.keys.Help, m.keys.Quit}},
	}

	var b strings.Builder

	b.WriteString(styles.Text.Bold(true).Render("Keyboard Shortcuts"))
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render(strings.Repeat("─", 30)))
	b.WriteString("\n\n")

	keyStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(m.theme.Warning)).
		Width(12)
	for i, section := range sections {
		b.WriteString(styles.AccentText.Bold(true).Render(section.title))
		b.WriteString("\n")
		for _, binding := range section.bindings {
			if m.session == nil && binding.Help().Desc == m.keys.Logout.Help().Desc {
				continue
			}
			h := binding.Help()
			b.WriteString(keyStyle.Render(h.Key))
			b.WriteString(styles.Text.Render(h.Desc))
			b.WriteString("\n")
		}
		if i < len(sections)-1 {
			b.WriteString("\n")
		}
	}

	modal := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.Accent)).
		Padding(1, 2).
		Width(44)

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		modal.Render(b.String()),
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(m.theme.Background)),
	)
}

type helpSection struct {
	title    string
	bindings []key.Binding
}
