package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"

	"github.com/sidewalk-ota/otadash/internal/mutation"
	"github.com/sidewalk-ota/otadash/internal/scroll"
)

func (m Model) handleDevicesLoaded(msg devicesLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.epoch != m.epoch {
		return m, nil
	}
	m.loadingDevices = false
	if msg.err != nil {
		if m.isUnauthorized(msg.err) {
			return m.forceLogout()
		}
		m.devices.Fail(msg.err)
		failures := m.devices.Snapshot().ConsecutiveFailures
		log.Warn().Err(msg.err).Int("failures", failures).Msg("device list fetch failed")
		m.notices.ErrorOnce("devices-list", "Error while getting devices")
		return m, nil
	}

	m.devices.Replace(msg.devices)
	m.locator.SetItemsDisposition(scroll.Devices, m.devices.IDs())
	m.rows.prune(rowDevices, m.devices.IDs())
	for id := range m.selectedDevices {
		if _, ok := m.devices.Get(id); !ok {
			delete(m.selectedDevices, id)
		}
	}
	m.clampDeviceCursor()
	log.Debug().Int("devices", len(msg.devices)).Msg("device list loaded")
	return m, m.deviceSync.Sync(m.devices)
}

func (m Model) handleTasksLoaded(msg tasksLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.epoch != m.epoch {
		return m, nil
	}
	m.loadingTasks = false
	if msg.err != nil {
		if m.isUnauthorized(msg.err) {
			return m.forceLogout()
		}
		m.tasks.Fail(msg.err)
		failures := m.tasks.Snapshot().ConsecutiveFailures
		log.Warn().Err(msg.err).Int("failures", failures).Msg("task list fetch failed")
		m.notices.ErrorOnce("tasks-list", "Error while getting transfer tasks")
		return m, nil
	}

	m.tasks.Replace(msg.tasks)
	ids := m.tasks.IDs()
	m.locator.SetItemsDisposition(scroll.Tasks, ids)
	m.taskStatus.Prune(ids)
	m.rows.prune(rowTasks, ids)
	for id := range m.selectedTasks {
		if _, ok := m.tasks.Get(id); !ok {
			delete(m.selectedTasks, id)
		}
	}
	if _, ok := m.tasks.Get(m.expandedTask); !ok {
		m.expandedTask = ""
	}
	m.clampTaskCursor()
	log.Debug().Int("tasks", len(msg.tasks)).Msg("task list loaded")
	return m, m.trackVisibleTasks()
}

func (m Model) handleFilesLoaded(msg filesLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.epoch != m.epoch {
		return m, nil
	}
	m.loadingFiles = false
	if msg.err != nil {
		if m.isUnauthorized(msg.err) {
			return m.forceLogout()
		}
		m.fileFailures++
		log.Warn().Err(msg.err).Int("failures", m.fileFailures).Msg("file list fetch failed")
		m.notices.ErrorOnce("files-list", "Error while getting files")
		return m, nil
	}

	m.fileFailures = 0
	m.files = msg.files
	m.filesLoaded = true
	if name := m.pendingSelectFile; name != "" && m.files.Contains(name) {
		m.draft.FileName = name
		m.pendingSelectFile = ""
		m.notices.Info("Selected " + name + " for the next transfer")
	}
	if m.fileCursor >= len(m.files.FileNames) {
		m.fileCursor = max(len(m.files.FileNames)-1, 0)
	}
	return m, nil
}

func (m Model) handleMutationDone(msg mutation.Done) (tea.Model, tea.Cmd) {
	if m.mutating > 0 {
		m.mutating--
	}
	if m.isUnauthorized(msg.Err) {
		return m.forceLogout()
	}
	effects := m.mutations.Resolve(msg)
	if m.currentView == ViewLogin {
		return m, nil
	}

	if effects.ResetDraft {
		m.draft = mutation.Draft{}
		m.selectedDevices = make(map[string]bool)
	}
	if effects.ClearTaskSelection {
		m.selectedTasks = make(map[string]bool)
	}
	if effects.SelectFile != "" {
		m.pendingSelectFile = effects.SelectFile
	}

	var cmds []tea.Cmd
	if effects.RefetchDevices {
		cmds = append(cmds, m.reload(reloadDevices))
	}
	if effects.RefetchTasks {
		cmds = append(cmds, m.reload(reloadTasks))
	}
	if effects.RefetchFiles {
		cmds = append(cmds, m.reload(reloadFiles))
	}
	return m, tea.Batch(cmds...)
}

// trackVisibleTasks polls the device statuses of the tasks on screen.
func (m *Model) trackVisibleTasks() tea.Cmd {
	start, end := m.locator.Bounds(scroll.Tasks)
	return m.taskStatus.Track(m.tasks.Slice(start, end))
}

func (m *Model) clampDeviceCursor() {
	start, end := m.locator.Bounds(scroll.Devices)
	m.deviceCursor = clampCursor(m.deviceCursor, end-start)
}

func (m *Model) clampTaskCursor() {
	start, end := m.locator.Bounds(scroll.Tasks)
	m.taskCursor = clampCursor(m.taskCursor, end-start)
}

func clampCursor(cursor, rows int) int {
	if rows <= 0 || cursor < 0 {
		return 0
	}
	if cursor >= rows {
		return rows - 1
	}
	return cursor
}
