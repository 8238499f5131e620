package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sidewalk-ota/otadash/internal/logtail"
	"github.com/sidewalk-ota/otadash/internal/ota"
)

// Messages

type uiTickMsg time.Time

// List results carry the session epoch they were requested in so answers
// that arrive after a logout are dropped.
type devicesLoadedMsg struct {
	epoch   int
	devices []ota.WirelessDevice
	err     error
}

type tasksLoadedMsg struct {
	epoch int
	tasks []ota.TransferTask
	err   error
}

type filesLoadedMsg struct {
	epoch int
	files ota.FileList
	err   error
}

type reloadKind int

const (
	reloadDevices reloadKind = iota
	reloadTasks
	reloadFiles
)

type loginResultMsg struct {
	username string
	err      error
}

type activityMsg struct {
	entries []logtail.Entry
	err     error
}

// Commands

func uiTickCmd() tea.Cmd {
	return tea.Tick(DefaultUIInterval, func(t time.Time) tea.Msg {
		return uiTickMsg(t)
	})
}

func fetchDevicesCmd(ctx context.Context, api ota.API, epoch int) tea.Cmd {
	return func() tea.Msg {
		devices, err := api.ListDevices(ctx)
		return devicesLoadedMsg{epoch: epoch, devices: devices, err: err}
	}
}

func fetchTasksCmd(ctx context.Context, api ota.API, epoch int) tea.Cmd {
	return func() tea.Msg {
		tasks, err := api.ListTasks(ctx)
		return tasksLoadedMsg{epoch: epoch, tasks: tasks, err: err}
	}
}

func fetchFilesCmd(ctx context.Context, api ota.API, epoch int) tea.Cmd {
	return func() tea.Msg {
		files, err := api.ListFiles(ctx)
		return filesLoadedMsg{epoch: epoch, files: files, err: err}
	}
}

func loginCmd(ctx context.Context, api ota.API, username, password string) tea.Cmd {
	return func() tea.Msg {
		return loginResultMsg{username: username, err: api.Login(ctx, username, password)}
	}
}

func tailLogCmd(path string) tea.Cmd {
	return func() tea.Msg {
		entries, err := logtail.Tail(path, ActivityLimit)
		return activityMsg{entries: entries, err: err}
	}
}

// reload starts a list fetch and marks it loading.
func (m *Model) reload(kind reloadKind) tea.Cmd {
	switch kind {
	case reloadDevices:
		m.loadingDevices = true
		return fetchDevicesCmd(m.ctx, m.api, m.epoch)
	case reloadTasks:
		m.loadingTasks = true
		return fetchTasksCmd(m.ctx, m.api, m.epoch)
	case reloadFiles:
		m.loadingFiles = true
		return fetchFilesCmd(m.ctx, m.api, m.epoch)
	}
	return nil
}

func (m *Model) loadAll() []tea.Cmd {
	return []tea.Cmd{
		m.reload(reloadDevices),
		m.reload(reloadTasks),
		m.reload(reloadFiles),
	}
}

func (m Model) loadActivity() tea.Cmd {
	return tailLogCmd(m.cfg.LogPath())
}
