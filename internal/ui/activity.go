package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sidewalk-ota/otadash/internal/logtail"
)

// renderActivity shows the newest log entries that fit, oldest first.
func (m Model) renderActivity() string {
	height := m.contentHeight()
	title := "Activity · " + m.cfg.LogPath()
	if m.activityErr != nil {
		return m.renderEmpty(title, "Cannot read log: "+m.activityErr.Error())
	}
	if len(m.activity) == 0 {
		return m.renderEmpty(title, "No activity logged yet")
	}

	visible := max(height-2, 1)
	entries := m.activity
	if len(entries) > visible {
		entries = entries[len(entries)-visible:]
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, m.formatEntry(e))
	}
	return m.renderTitledBox(title, strings.Join(lines, "\n"), m.width, height, false)
}

func (m Model) formatEntry(e logtail.Entry) string {
	styles := m.theme.Styles()
	if e.Level == "" && e.Time.IsZero() {
		return styles.FaintText.Render(e.Raw)
	}

	var levelStyle lipgloss.Style
	switch e.Level {
	case "error", "fatal", "panic":
		levelStyle = styles.DangerText
	case "warn":
		levelStyle = styles.WarningText
	case "info":
		levelStyle = styles.InfoText
	default:
		levelStyle = styles.MutedText
	}

	var b strings.Builder
	if !e.Time.IsZero() {
		b.WriteString(styles.MutedText.Render(e.Time.Local().Format("15:04:05")))
		b.WriteString(" ")
	}
	b.WriteString(levelStyle.Render(e.LevelTag()))
	if e.Component != "" {
		b.WriteString(" " + styles.AccentText.Render("["+e.Component+"]"))
	}
	b.WriteString(" " + styles.Text.Render(e.Message))
	for _, k := range e.Keys {
		b.WriteString(" " + styles.FaintText.Render(k+"=") + styles.MutedText.Render(e.Fields[k]))
	}
	if e.Error != "" {
		b.WriteString(" " + styles.DangerText.Render("error="+e.Error))
	}
	return b.String()
}
