package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sidewalk-ota/otadash/internal/ota"
	"github.com/sidewalk-ota/otadash/internal/scroll"
	"github.com/sidewalk-ota/otadash/internal/tracker"
)

var taskColumns = []colSpec{
	{"", 2, 100},
	{"Task", 36, 99},
	{"Status", 12, 80},
	{"File", 22, 90},
	{"Size", 10, 30},
	{"Created (UTC)", 19, 50},
	{"Start (UTC)", 19, 40},
	{"Origin", 10, 20},
	{"Progress", 9, 98},
	{"Devices", 40, 95},
}

// maxExpandedRows bounds the device list under an expanded task.
const maxExpandedRows = 8

func (m Model) currentTask() (ota.TransferTask, bool) {
	start, end := m.locator.Bounds(scroll.Tasks)
	idx := start + m.taskCursor
	if idx < start || idx >= end || idx >= m.tasks.Len() {
		return ota.TransferTask{}, false
	}
	return m.tasks.At(idx), true
}

// selectedTaskIDs lists the selected tasks in table order, or the task under
// the cursor when nothing is selected.
func (m Model) selectedTaskIDs() []string {
	var ids []string
	for _, id := range m.tasks.IDs() {
		if m.selectedTasks[id] {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		if t, ok := m.currentTask(); ok {
			ids = append(ids, t.TaskID)
		}
	}
	return ids
}

func (m Model) handleTasksKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		page := m.locator.PageIndex(scroll.Tasks)
		m.moveCursor(scroll.Tasks, &m.taskCursor, -1)
		if page != m.locator.PageIndex(scroll.Tasks) {
			return m, m.trackVisibleTasks()
		}
	case key.Matches(msg, m.keys.Down):
		page := m.locator.PageIndex(scroll.Tasks)
		m.moveCursor(scroll.Tasks, &m.taskCursor, 1)
		if page != m.locator.PageIndex(scroll.Tasks) {
			return m, m.trackVisibleTasks()
		}
	case key.Matches(msg, m.keys.NextPage):
		m.locator.NextPage(scroll.Tasks)
		m.clampTaskCursor()
		return m, m.trackVisibleTasks()
	case key.Matches(msg, m.keys.PrevPage):
		m.locator.PrevPage(scroll.Tasks)
		m.clampTaskCursor()
		return m, m.trackVisibleTasks()

	case key.Matches(msg, m.keys.Select):
		if t, ok := m.currentTask(); ok {
			if m.selectedTasks[t.TaskID] {
				delete(m.selectedTasks, t.TaskID)
			} else {
				m.selectedTasks[t.TaskID] = true
			}
		}

	case key.Matches(msg, m.keys.Expand):
		t, ok := m.currentTask()
		if !ok {
			return m, nil
		}
		if m.expandedTask == t.TaskID {
			m.expandedTask = ""
		} else {
			m.expandedTask = t.TaskID
			m.taskDeviceCursor = 0
		}

	case key.Matches(msg, m.keys.NextDevice):
		if n := len(m.taskStatus.Devices(m.expandedTask)); n > 0 {
			m.taskDeviceCursor = (m.taskDeviceCursor + 1) % n
		}
	case key.Matches(msg, m.keys.PrevDevice):
		if n := len(m.taskStatus.Devices(m.expandedTask)); n > 0 {
			m.taskDeviceCursor = (m.taskDeviceCursor + n - 1) % n
		}

	case key.Matches(msg, m.keys.LocateDevice):
		devices := m.taskStatus.Devices(m.expandedTask)
		if m.taskDeviceCursor >= len(devices) {
			return m, nil
		}
		return m.locateDevice(devices[m.taskDeviceCursor].DeviceID)

	case key.Matches(msg, m.keys.CancelTasks):
		ids := m.selectedTaskIDs()
		if len(ids) == 0 {
			return m, nil
		}
		body := "Cancel task " + ids[0] + "?"
		if len(ids) > 1 {
			body = fmt.Sprintf("Cancel %d transfer tasks?", len(ids))
		}
		m.modal = confirmModal{title: "Cancel transfer", body: body, action: "cancel", ids: ids}
	}
	return m, nil
}

// locateTask switches to the tasks table and brings id into view.
func (m Model) locateTask(id string) (tea.Model, tea.Cmd) {
	cmd := m.locator.Locate(scroll.Tasks, id)
	if cmd == nil {
		m.notices.Info("Task " + id + " is not listed")
		return m, nil
	}
	m.currentView = ViewTasks
	m.lastView = ViewTasks
	m.taskCursor = m.rowOnPage(scroll.Tasks, m.tasks.IDs(), id)
	return m, tea.Batch(cmd, m.trackVisibleTasks())
}

// taskProgress renders the aggregate columns of a task.
func (m Model) taskProgress(id string) (progress, label string) {
	summary, ok := m.taskStatus.Summary(id)
	if !ok {
		return "-", "-"
	}
	if summary.Loading() {
		return "…", "loading"
	}
	label = summary.Label()
	if summary.Failed > 0 {
		label += fmt.Sprintf(" | unreachable: %d", summary.Failed)
	}
	return summary.Progress(), label
}

func (m Model) renderTasks() string {
	height := m.contentHeight()
	title := fmt.Sprintf("Transfer tasks (%d)", m.tasks.Len())
	snap := m.tasks.Snapshot()
	if m.tasks.Len() == 0 {
		switch {
		case m.loadingTasks && !snap.Loaded:
			return m.renderEmpty(title, m.spinner.View()+" Loading tasks...")
		case snap.LastError != nil:
			return m.renderEmpty(title, "Error while getting transfer tasks, press r to reload")
		default:
			return m.renderEmpty(title, "No transfer tasks")
		}
	}

	start, end := m.locator.Bounds(scroll.Tasks)
	page := m.tasks.Slice(start, end)
	highlight := m.locator.Highlighted(scroll.Tasks)

	cols, keep := fitColumns(taskColumns, m.width-4)
	rows := make([]table.Row, 0, len(page))
	for _, t := range page {
		static := m.rows.get(rowTasks, t.TaskID, m.tasks.Revision(t.TaskID), func() []string {
			return taskCells(t)
		})
		progress, label := m.taskProgress(t.TaskID)
		cells := make([]string, 0, len(taskColumns))
		cells = append(cells, rowMarker(t.TaskID == highlight, m.selectedTasks[t.TaskID]))
		cells = append(cells, static...)
		cells = append(cells, progress, label)
		rows = append(rows, project(cells, keep))
	}

	expanded := m.renderExpandedTask()
	tableHeight := height - 4 - lipgloss.Height(expanded)
	if expanded == "" {
		tableHeight = height - 4
	}
	body := m.renderTable(cols, rows, m.taskCursor, tableHeight)
	if expanded != "" {
		body += "\n" + expanded
	}
	body += "\n" + m.renderPagerLine(scroll.Tasks, m.taskStatus.Active(), "device statuses polling")
	return m.renderTitledBox(title, body, m.width, height, true)
}

// renderExpandedTask lists the device statuses of the expanded task.
func (m Model) renderExpandedTask() string {
	if m.expandedTask == "" {
		return ""
	}
	styles := m.theme.Styles()
	devices := m.taskStatus.Devices(m.expandedTask)

	var b strings.Builder
	b.WriteString(styles.AccentText.Bold(true).Render("Devices of " + m.expandedTask))
	if len(devices) == 0 {
		b.WriteString("\n" + styles.MutedText.Render("  scroll the task into view to load its devices"))
		return b.String()
	}

	first := 0
	if m.taskDeviceCursor >= maxExpandedRows {
		first = m.taskDeviceCursor - maxExpandedRows + 1
	}
	last := min(first+maxExpandedRows, len(devices))
	for i := first; i < last; i++ {
		d := devices[i]
		cursor := "  "
		name := styles.Text.Render(d.DeviceID)
		if i == m.taskDeviceCursor {
			cursor = styles.AccentText.Render("▸ ")
			name = styles.Selected.Render(d.DeviceID)
		}
		status := styles.StatusStyle(d.Status.String()).Render(d.Status.String())
		if d.Status == tracker.StatusUnknown {
			status = styles.MutedText.Render("…")
		}
		line := cursor + name + " " + status
		if d.Failed {
			line += " " + styles.DangerText.Render("unreachable")
		}
		b.WriteString("\n" + line)
	}
	if len(devices) > maxExpandedRows {
		b.WriteString("\n" + styles.FaintText.Render(fmt.Sprintf("  %d/%d · n/p to move · enter to open", m.taskDeviceCursor+1, len(devices))))
	}
	return b.String()
}
