package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sidewalk-ota/otadash/internal/mutation"
	"github.com/sidewalk-ota/otadash/internal/ota"
	"github.com/sidewalk-ota/otadash/internal/scroll"
)

var deviceColumns = []colSpec{
	{"", 2, 100},
	{"Device", 14, 99},
	{"Status", 13, 98},
	{"Progress", 8, 97},
	{"File", 22, 90},
	{"Size", 10, 40},
	{"Firmware", 18, 60},
	{"Started (UTC)", 19, 50},
	{"Ended (UTC)", 19, 30},
	{"Task", 36, 70},
	{"Duration", 9, 80},
}

// currentDevice returns the device under the cursor.
func (m Model) currentDevice() (ota.WirelessDevice, bool) {
	start, end := m.locator.Bounds(scroll.Devices)
	idx := start + m.deviceCursor
	if idx < start || idx >= end || idx >= m.devices.Len() {
		return ota.WirelessDevice{}, false
	}
	return m.devices.At(idx), true
}

// selectedDeviceIDs lists the selected devices in table order.
func (m Model) selectedDeviceIDs() []string {
	var ids []string
	for _, id := range m.devices.IDs() {
		if m.selectedDevices[id] {
			ids = append(ids, id)
		}
	}
	return ids
}

func (m Model) pendingDraft() mutation.Draft {
	d := m.draft
	d.DeviceIDs = m.selectedDeviceIDs()
	return d
}

func (m Model) handleDevicesKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(scroll.Devices, &m.deviceCursor, -1)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(scroll.Devices, &m.deviceCursor, 1)
	case key.Matches(msg, m.keys.NextPage):
		m.locator.NextPage(scroll.Devices)
		m.clampDeviceCursor()
	case key.Matches(msg, m.keys.PrevPage):
		m.locator.PrevPage(scroll.Devices)
		m.clampDeviceCursor()

	case key.Matches(msg, m.keys.Select):
		if d, ok := m.currentDevice(); ok {
			if m.selectedDevices[d.DeviceID] {
				delete(m.selectedDevices, d.DeviceID)
			} else {
				m.selectedDevices[d.DeviceID] = true
			}
		}

	case key.Matches(msg, m.keys.Upload):
		return m.openPicker()

	case key.Matches(msg, m.keys.Schedule):
		m.modal = newStartTimeModal(m.draft.StartTime, m.now)
		return m, textinput.Blink

	case key.Matches(msg, m.keys.Start):
		d := m.pendingDraft()
		if err := d.Validate(); err != nil {
			m.notices.Error(preconditionText(err))
			return m, nil
		}
		cmd := m.mutations.StartTransfer(d)
		if cmd != nil {
			m.mutating++
		}
		return m, cmd

	case key.Matches(msg, m.keys.LocateTask):
		d, ok := m.currentDevice()
		if !ok {
			return m, nil
		}
		if d.TaskID == "" {
			m.notices.Info("Device " + d.DeviceID + " has no transfer task")
			return m, nil
		}
		return m.locateTask(d.TaskID)

	case key.Matches(msg, m.keys.ClearDraft):
		m.selectedDevices = make(map[string]bool)
		m.draft = mutation.Draft{}
		m.pendingSelectFile = ""
	}
	return m, nil
}

// preconditionText turns a draft validation error into a notice.
func preconditionText(err error) string {
	if !errors.Is(err, mutation.ErrPrecondition) {
		return err.Error()
	}
	reason := strings.TrimPrefix(err.Error(), mutation.ErrPrecondition.Error()+": ")
	return "Cannot start transfer: " + reason
}

// moveCursor moves a page-relative cursor, turning the page at its edges.
func (m *Model) moveCursor(t scroll.Table, cursor *int, delta int) {
	start, end := m.locator.Bounds(t)
	rows := end - start
	next := *cursor + delta
	switch {
	case next < 0:
		if m.locator.PageIndex(t) > 1 {
			m.locator.PrevPage(t)
			s, e := m.locator.Bounds(t)
			*cursor = max(e-s-1, 0)
			return
		}
		next = 0
	case next >= rows:
		if m.locator.PageIndex(t) < m.locator.Pages(t) {
			m.locator.NextPage(t)
			*cursor = 0
			return
		}
		next = max(rows-1, 0)
	}
	*cursor = next
}

// locateDevice switches to the devices table and brings id into view.
func (m Model) locateDevice(id string) (tea.Model, tea.Cmd) {
	cmd := m.locator.Locate(scroll.Devices, id)
	if cmd == nil {
		m.notices.Info("Device " + id + " is not listed")
		return m, nil
	}
	m.currentView = ViewDevices
	m.lastView = ViewDevices
	m.deviceCursor = m.rowOnPage(scroll.Devices, m.devices.IDs(), id)
	return m, cmd
}

// rowOnPage is the page-relative index of the last row with id.
func (m Model) rowOnPage(t scroll.Table, ids []string, id string) int {
	start, end := m.locator.Bounds(t)
	for i := min(end, len(ids)) - 1; i >= start; i-- {
		if ids[i] == id {
			return i - start
		}
	}
	return 0
}

func (m Model) renderDevices() string {
	height := m.contentHeight()
	title := fmt.Sprintf("Devices (%d)", m.devices.Len())
	snap := m.devices.Snapshot()
	if m.devices.Len() == 0 {
		switch {
		case m.loadingDevices && !snap.Loaded:
			return m.renderEmpty(title, m.spinner.View()+" Loading devices...")
		case snap.LastError != nil:
			return m.renderEmpty(title, "Error while getting devices, press r to reload")
		default:
			return m.renderEmpty(title, "No devices")
		}
	}

	start, end := m.locator.Bounds(scroll.Devices)
	page := m.devices.Slice(start, end)
	highlight := m.locator.Highlighted(scroll.Devices)
	now := m.now()

	cols, keep := fitColumns(deviceColumns, m.width-4)
	rows := make([]table.Row, 0, len(page))
	for _, d := range page {
		static := m.rows.get(rowDevices, d.DeviceID, m.devices.Revision(d.DeviceID), func() []string {
			return deviceCells(d)
		})
		cells := make([]string, 0, len(deviceColumns))
		cells = append(cells, rowMarker(d.DeviceID == highlight, m.selectedDevices[d.DeviceID]))
		cells = append(cells, static...)
		cells = append(cells, formatDuration(d.Duration(now)))
		rows = append(rows, project(cells, keep))
	}

	footer := m.renderDraftLine() + "\n" + m.renderPagerLine(scroll.Devices, len(m.deviceSync.Active()), "polling")
	body := m.renderTable(cols, rows, m.deviceCursor, height-5) + "\n" + footer
	return m.renderTitledBox(title, body, m.width, height, true)
}

func (m Model) renderDraftLine() string {
	styles := m.theme.Styles()
	d := m.pendingDraft()
	file := d.FileName
	if file == "" {
		file = "none (pick one in Firmware)"
	}
	start := "now"
	if !d.StartTime.IsZero() {
		start = d.StartTime.Local().Format(startTimeLayout)
	}
	parts := []string{
		styles.MutedText.Render("File:") + " " + styles.Text.Render(file),
		styles.MutedText.Render("Start:") + " " + styles.Text.Render(start),
		styles.MutedText.Render("Devices:") + " " + styles.Text.Render(fmt.Sprintf("%d", len(d.DeviceIDs))),
	}
	if d.CanStart() {
		parts = append(parts, styles.SuccessText.Render("enter to start"))
	}
	if m.mutating > 0 {
		parts = append(parts, m.spinner.View()+styles.WarningText.Render(" working"))
	}
	return strings.Join(parts, "  ")
}

func (m Model) renderPagerLine(t scroll.Table, polling int, noun string) string {
	styles := m.theme.Styles()
	line := styles.MutedText.Render("Page ") + styles.Text.Render(m.locator.PagerView(t))
	if polling > 0 {
		line += "  " + styles.InfoText.Render(fmt.Sprintf("%d %s", polling, noun))
	}
	return line
}
