package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// Terminal width thresholds for responsive layouts.
const (
	// LayoutCompactWidth is the threshold below which compact mode is used.
	LayoutCompactWidth = 100
)

const (
	// ActivityLimit is the number of log lines the activity view keeps.
	ActivityLimit = 500

	// DefaultUIInterval is the toast and activity refresh interval.
	DefaultUIInterval = time.Second
)

// renderMain renders the full UI.
func (m Model) renderMain() string {
	var b strings.Builder

	// Header line 1: logo + status
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	// Header line 2: command bar
	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")

	// Main content
	b.WriteString(m.renderContent())

	return b.String()
}

// renderContent renders the main content area based on current view.
func (m Model) renderContent() string {
	if m.picking {
		return m.renderPicker()
	}
	switch m.currentView {
	case ViewDevices:
		return m.renderDevices()
	case ViewTasks:
		return m.renderTasks()
	case ViewFirmware:
		return m.renderFirmware()
	case ViewActivity:
		return m.renderActivity()
	case ViewSensors:
		return m.renderSensors()
	case ViewLogin:
		return m.renderLogin()
	default:
		return ""
	}
}

// contentHeight is the height left under the header and command bar.
func (m Model) contentHeight() int {
	return max(m.height-2, 6)
}

// colSpec describes a table column. Columns with a lower priority are
// dropped first when the terminal is too narrow.
type colSpec struct {
	title    string
	width    int
	priority int
}

// fitColumns picks the columns that fit in width, keeping their order, and
// returns them with the indexes of the cells to keep.
func fitColumns(specs []colSpec, width int) ([]table.Column, []int) {
	order := make([]int, len(specs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return specs[order[a]].priority > specs[order[b]].priority
	})

	chosen := make(map[int]bool, len(specs))
	used := 0
	for _, i := range order {
		// Cells carry one column of padding on each side.
		w := specs[i].width + 2
		if used+w > width && len(chosen) > 0 {
			continue
		}
		chosen[i] = true
		used += w
	}

	cols := make([]table.Column, 0, len(chosen))
	keep := make([]int, 0, len(chosen))
	for i, spec := range specs {
		if chosen[i] {
			cols = append(cols, table.Column{Title: spec.title, Width: spec.width})
			keep = append(keep, i)
		}
	}
	return cols, keep
}

func project(row []string, keep []int) table.Row {
	out := make(table.Row, len(keep))
	for i, idx := range keep {
		if idx < len(row) {
			out[i] = row[idx]
		}
	}
	return out
}

// renderTable renders one page of rows with the cursor on the given row.
func (m Model) renderTable(cols []table.Column, rows []table.Row, cursor, height int) string {
	t := table.New(
		table.WithColumns(cols),
		table.WithRows(rows),
		table.WithHeight(max(height, 2)),
		table.WithStyles(m.theme.TableStyles()),
		table.WithFocused(true),
	)
	t.SetCursor(cursor)
	return t.View()
}

// renderTitledBox renders content in a box with the title embedded in the top border.
func (m Model) renderTitledBox(title, content string, width, height int, focused bool) string {
	var borderColorStr, bgColorStr string
	if focused {
		borderColorStr = m.theme.BorderFocus
		bgColorStr = m.theme.PanelFocus
	} else {
		borderColorStr = m.theme.Border
		bgColorStr = m.theme.Panel
	}
	bg := NewBgStyle(bgColorStr)
	borderStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(borderColorStr))
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(m.theme.Text))

	innerWidth := max(width-2, 1)
	title = truncate(title, max(innerWidth-4, 0))
	titleLen := lipgloss.Width(title)
	leftPad := max((innerWidth-titleLen-2)/2, 0)
	rightPad := max(innerWidth-titleLen-2-leftPad, 0)

	topBorder := bg.Render("┌", borderStyle) +
		bg.Render(strings.Repeat("─", leftPad), borderStyle) +
		bg.Render(" "+title+" ", titleStyle) +
		bg.Render(strings.Repeat("─", rightPad), borderStyle) +
		bg.Render("┐", borderStyle)

	bottomBorder := bg.Render("└", borderStyle) +
		bg.Render(strings.Repeat("─", innerWidth), borderStyle) +
		bg.Render("┘", borderStyle)

	contentStyle := lipgloss.NewStyle().Width(innerWidth).MaxWidth(innerWidth).Background(bg.Color())

	contentLines := strings.Split(content, "\n")
	boxHeight := max(height-2, 0)

	lines := make([]string, 0, boxHeight)
	for i := 0; i < boxHeight; i++ {
		var line string
		if i < len(contentLines) {
			line = contentLines[i]
		}
		lines = append(lines,
			bg.Render("│", borderStyle)+
				contentStyle.Render(line)+
				bg.Render("│", borderStyle))
	}

	return topBorder + "\n" + strings.Join(lines, "\n") + "\n" + bottomBorder
}

// renderEmpty centers a muted message in the content area.
func (m Model) renderEmpty(title, text string) string {
	styles := m.theme.Styles()
	height := m.contentHeight()
	body := lipgloss.Place(max(m.width-2, 1), max(height-2, 1), lipgloss.Center, lipgloss.Center, styles.MutedText.Render(text))
	return m.renderTitledBox(title, body, m.width, height, true)
}

// rowMarker renders the leading cell: » for a located row, ✓ for a
// selected one.
func rowMarker(highlighted, selected bool) string {
	var b strings.Builder
	if highlighted {
		b.WriteString("»")
	} else {
		b.WriteString(" ")
	}
	if selected {
		b.WriteString("✓")
	}
	return b.String()
}

// formatDuration renders an elapsed transfer time like 1h02m03s.
func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	d = d.Round(time.Second)
	h := int(d.Hours())
	mins := int(d.Minutes()) % 60
	secs := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, mins, secs)
	}
	if mins > 0 {
		return fmt.Sprintf("%dm%02ds", mins, secs)
	}
	return fmt.Sprintf("%ds", secs)
}

// truncate truncates a string to max runes with ellipsis.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
