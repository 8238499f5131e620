package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/sidewalk-ota/otadash/internal/notify"
	"github.com/sidewalk-ota/otadash/internal/ota"
)

// renderHeader renders the status bar with all information.
func (m Model) renderHeader() string {
	// Header uses Surface background
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	content := m.buildStatusContent(styles, bg)

	return lipgloss.NewStyle().
		Background(lipgloss.Color(m.theme.Surface)).
		Foreground(lipgloss.Color(m.theme.Text)).
		Width(m.width).
		MaxWidth(m.width).
		Render(content)
}

// buildStatusContent builds the status bar content string.
func (m Model) buildStatusContent(styles Styles, bg BgStyle) string {
	compact := m.width < LayoutCompactWidth
	var parts []string

	parts = append(parts, bg.Render("otadash", styles.Logo))

	if m.currentView == ViewLogin {
		parts = append(parts, bg.Render("signed out", styles.WarningText))
		return bg.Join(append(parts, m.renderNotices(styles, bg, compact)...), "  ")
	}

	// Backend reachability follows the list endpoints.
	devSnap, taskSnap := m.devices.Snapshot(), m.tasks.Snapshot()
	switch {
	case devSnap.IsOffline() || taskSnap.IsOffline():
		parts = append(parts, bg.Render("● OFFLINE", styles.DangerText))
	case devSnap.Loaded || taskSnap.Loaded:
		parts = append(parts, bg.Render("● ONLINE", styles.SuccessText))
	default:
		parts = append(parts, bg.Render("● CONNECTING", styles.WarningText))
	}
	if m.session == nil {
		parts = append(parts, bg.Render("mock", styles.FaintText))
	} else if user := m.session.Username(); user != "" && !compact {
		parts = append(parts, bg.Render(user, styles.MutedText))
	}

	active := 0
	for _, d := range m.devices.Rows() {
		if d.TransferStatus.Pollable() {
			active++
		}
	}
	parts = append(parts,
		bg.Render("Devices:", styles.MutedText)+bg.Space()+
			bg.Render(fmt.Sprintf("%d", m.devices.Len()), styles.Text))
	if active > 0 {
		color := lipgloss.Color(m.theme.StatusColors[string(ota.StatusTransferring)])
		parts = append(parts,
			bg.Render("Active:", styles.MutedText)+bg.Space()+
				bg.Render(fmt.Sprintf("%d", active), lipgloss.NewStyle().Foreground(color)))
	}
	parts = append(parts,
		bg.Render("Tasks:", styles.MutedText)+bg.Space()+
			bg.Render(fmt.Sprintf("%d", m.tasks.Len()), styles.Text))

	if m.loadingDevices || m.loadingTasks || m.loadingFiles || m.mutating > 0 {
		parts = append(parts, bg.Render(m.spinner.View(), styles.AccentText))
	}

	if ts := formatTimestamp(devSnap.LastUpdated, m.now()); ts != "" && !compact {
		parts = append(parts, bg.Render(ts, styles.MutedText))
	}

	parts = append(parts, m.renderNotices(styles, bg, compact)...)
	return bg.Join(parts, "  ")
}

// renderNotices renders the visible toasts, newest last.
func (m Model) renderNotices(styles Styles, bg BgStyle, compact bool) []string {
	notices := m.notices.Active(m.now())
	limit := 2
	if compact {
		limit = 1
	}
	if len(notices) > limit {
		notices = notices[len(notices)-limit:]
	}
	maxText := 60
	if compact {
		maxText = 30
	}
	out := make([]string, 0, len(notices))
	for _, n := range notices {
		var style lipgloss.Style
		var icon string
		switch n.Level {
		case notify.Error:
			style, icon = styles.DangerText, "✗"
		case notify.Success:
			style, icon = styles.SuccessText, "✓"
		default:
			style, icon = styles.InfoText, "•"
		}
		out = append(out, bg.Render(icon, style)+bg.Space()+bg.Render(truncate(n.Text, maxText), style))
	}
	return out
}

// formatTimestamp formats the last update time with relative indicator.
func formatTimestamp(at, now time.Time) string {
	if at.IsZero() {
		return ""
	}
	since := now.Sub(at)
	s := at.Local().Format("15:04:05")
	switch {
	case since < time.Minute:
		s += " (now)"
	case since < time.Hour:
		s += fmt.Sprintf(" (%dm ago)", int(since.Minutes()))
	case since < 24*time.Hour:
		s += fmt.Sprintf(" (%dh ago)", int(since.Hours()))
	}
	return s
}

// renderCommandBar renders the view tabs and key hints.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	var tabs []string
	if m.currentView != ViewLogin {
		for _, v := range []View{ViewDevices, ViewTasks, ViewFirmware, ViewActivity, ViewSensors} {
			label := fmt.Sprintf("%d %s", int(v)+1, v.String())
			if v == m.currentView {
				tabs = append(tabs, bg.Render(label, styles.AccentText.Bold(true)))
			} else {
				tabs = append(tabs, bg.Render(label, styles.FaintText))
			}
		}
	}

	h := m.help
	h.Styles.ShortKey = styles.AccentText
	h.Styles.ShortDesc = styles.MutedText
	h.Styles.ShortSeparator = styles.FaintText
	hints := h.ShortHelpView(m.keys.viewHelp(m.currentView))
	if m.picking {
		hints = bg.Render("esc", styles.AccentText) + bg.Space() + bg.Render("cancel upload", styles.MutedText)
	}

	segments := append(tabs, hints,
		bg.Render("T", styles.AccentText)+bg.Sep(":")+bg.Render(m.theme.Name, styles.FaintText))
	return styles.Header.Width(m.width).MaxWidth(m.width).Render(strings.Join(segments, bg.Spaces(2)))
}
