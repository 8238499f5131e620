package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sidewalk-ota/otadash/internal/config"
	"github.com/sidewalk-ota/otadash/internal/demo"
	"github.com/sidewalk-ota/otadash/internal/mutation"
	"github.com/sidewalk-ota/otadash/internal/notify"
	"github.com/sidewalk-ota/otadash/internal/ota"
	"github.com/sidewalk-ota/otadash/internal/scroll"
)

type harness struct {
	t       *testing.T
	api     ota.API
	notices *notify.Center
	m       Model
}

func newHarness(t *testing.T, api ota.API, session *ota.Session, mutate func(*config.Config)) *harness {
	t.Helper()
	cfg := config.Default()
	cfg.LogDir = t.TempDir()
	if mutate != nil {
		mutate(&cfg)
	}
	notices := notify.New(time.Minute)
	m := New(Options{
		Context:   context.Background(),
		API:       api,
		Session:   session,
		Config:    cfg,
		Notices:   notices,
		PrefsPath: filepath.Join(t.TempDir(), "prefs.toml"),
	})
	h := &harness{t: t, api: api, notices: notices, m: m}
	h.send(tea.WindowSizeMsg{Width: 200, Height: 40})
	return h
}

func (h *harness) send(msg tea.Msg) tea.Cmd {
	h.t.Helper()
	next, cmd := h.m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		h.t.Fatalf("Update returned %T, want Model", next)
	}
	h.m = model
	return cmd
}

func (h *harness) press(keys ...string) tea.Cmd {
	h.t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		cmd = h.send(keyMsg(k))
	}
	return cmd
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

// loadLists feeds the three list responses straight into the model.
func (h *harness) loadLists() {
	h.t.Helper()
	ctx := context.Background()
	h.send(fetchDevicesCmd(ctx, h.api, h.m.epoch)())
	h.send(fetchTasksCmd(ctx, h.api, h.m.epoch)())
	h.send(fetchFilesCmd(ctx, h.api, h.m.epoch)())
}

func (h *harness) lastNotice() string {
	history := h.notices.History()
	if len(history) == 0 {
		return ""
	}
	return history[len(history)-1].Text
}

func (h *harness) countNotices(text string) int {
	n := 0
	for _, notice := range h.notices.History() {
		if notice.Text == text {
			n++
		}
	}
	return n
}

func TestModel_DeviceListStartsPollingInFlightDevices(t *testing.T) {
	backend := demo.NewBackend(demo.WithDevices(6))
	if _, err := backend.StartTransfer(context.Background(), ota.StartTransferRequest{
		FileName:  "sensor-fw-1.1.0.bin",
		DeviceIDs: []string{"wd-0005"},
	}); err != nil {
		t.Fatalf("StartTransfer: %v", err)
	}
	h := newHarness(t, backend, nil, nil)
	h.loadLists()

	if h.m.devices.Len() != 6 {
		t.Fatalf("devices = %d, want 6", h.m.devices.Len())
	}
	active := h.m.deviceSync.Active()
	if len(active) != 1 || active[0] != "wd-0005" {
		t.Fatalf("polling %v, want [wd-0005]", active)
	}
	if h.m.loadingDevices || h.m.loadingTasks || h.m.loadingFiles {
		t.Fatalf("loading flags still set after lists arrived")
	}
}

func TestModel_StartRequiresFileAndDevices(t *testing.T) {
	h := newHarness(t, demo.NewBackend(demo.WithDevices(4)), nil, nil)
	h.loadLists()

	if cmd := h.press("enter"); cmd != nil {
		t.Fatalf("enter without a draft returned a command")
	}
	if got := h.lastNotice(); got != "Cannot start transfer: no firmware file selected" {
		t.Fatalf("notice = %q", got)
	}
}

func TestModel_StartTransferFlow(t *testing.T) {
	backend := demo.NewBackend(demo.WithDevices(6))
	h := newHarness(t, backend, nil, nil)
	h.loadLists()

	// Files are listed by name; pick the second one.
	h.press("3", "j", "enter")
	file := h.m.draft.FileName
	if file != "sensor-fw-1.0.0.bin" {
		t.Fatalf("draft file = %q, want sensor-fw-1.0.0.bin", file)
	}

	// Select the fourth and fifth devices.
	h.press("1", "j", "j", "j", " ", "j", " ")
	if got := h.m.selectedDeviceIDs(); len(got) != 2 || got[0] != "wd-0004" || got[1] != "wd-0005" {
		t.Fatalf("selected = %v, want [wd-0004 wd-0005]", got)
	}

	cmd := h.press("enter")
	if cmd == nil {
		t.Fatalf("enter with a complete draft returned no command")
	}
	done, ok := cmd().(mutation.Done)
	if !ok {
		t.Fatalf("start command did not yield mutation.Done")
	}
	if done.Err != nil {
		t.Fatalf("start failed: %v", done.Err)
	}
	if done.FileName != file {
		t.Fatalf("started %q, want %q", done.FileName, file)
	}

	h.send(done)
	if h.m.draft.FileName != "" || len(h.m.selectedDevices) != 0 {
		t.Fatalf("draft not reset: %+v selected=%v", h.m.draft, h.m.selectedDevices)
	}
	if !h.m.loadingDevices || !h.m.loadingTasks {
		t.Fatalf("devices and tasks should be refetched")
	}
	if h.countNotices("Task transferred") != 1 {
		t.Fatalf("missing success notice, history = %v", h.notices.History())
	}

	h.send(fetchDevicesCmd(context.Background(), backend, h.m.epoch)())
	if !h.m.deviceSync.Polling("wd-0004") || !h.m.deviceSync.Polling("wd-0005") {
		t.Fatalf("started devices are not polled: %v", h.m.deviceSync.Active())
	}
}

func TestModel_UploadSelectsFileOnceListed(t *testing.T) {
	backend := demo.NewBackend(demo.WithDevices(3))
	h := newHarness(t, backend, nil, nil)
	h.loadLists()

	if err := backend.UploadFile(context.Background(), ota.UploadRequest{FileName: "new.hex", Content: []byte{1}}); err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	h.send(mutation.Done{Kind: mutation.KindUpload, FileName: "new.hex"})
	if h.m.pendingSelectFile != "new.hex" {
		t.Fatalf("pendingSelectFile = %q", h.m.pendingSelectFile)
	}
	if h.m.draft.FileName != "" {
		t.Fatalf("file selected before the list had it")
	}

	h.send(fetchFilesCmd(context.Background(), backend, h.m.epoch)())
	if h.m.draft.FileName != "new.hex" || h.m.pendingSelectFile != "" {
		t.Fatalf("draft file = %q pending = %q", h.m.draft.FileName, h.m.pendingSelectFile)
	}
}

func TestModel_FailedMutationAppliesNothing(t *testing.T) {
	h := newHarness(t, demo.NewBackend(demo.WithDevices(3)), nil, nil)
	h.loadLists()
	h.m.draft.FileName = "sensor-fw-1.0.0.bin"
	h.m.selectedDevices["wd-0001"] = true

	h.send(mutation.Done{Kind: mutation.KindStartTransfer, Err: errors.New("boom")})
	if h.m.draft.FileName == "" || !h.m.selectedDevices["wd-0001"] {
		t.Fatalf("failed start reset the draft")
	}
	if got := h.lastNotice(); got != "Error while trying to start a transfer task" {
		t.Fatalf("notice = %q", got)
	}
	if h.m.loadingDevices {
		t.Fatalf("failed start triggered a refetch")
	}
}

func TestModel_LocateTaskFromDevice(t *testing.T) {
	backend := demo.NewBackend(demo.WithDevices(8))
	ctx := context.Background()
	for _, id := range []string{"wd-0004", "wd-0005", "wd-0006"} {
		if _, err := backend.StartTransfer(ctx, ota.StartTransferRequest{FileName: "gateway-2.3.s37", DeviceIDs: []string{id}}); err != nil {
			t.Fatalf("StartTransfer: %v", err)
		}
	}
	h := newHarness(t, backend, nil, func(c *config.Config) { c.TasksPageSize = 2 })
	h.loadLists()

	// wd-0001 belongs to the seeded task, the oldest and therefore last row.
	seedTask := h.m.devices.At(0).TaskID
	if seedTask == "" {
		t.Fatalf("seed device has no task")
	}
	cmd := h.press("t")
	if h.m.currentView != ViewTasks {
		t.Fatalf("view = %v, want tasks", h.m.currentView)
	}
	if got := h.m.locator.PageIndex(scroll.Tasks); got != 2 {
		t.Fatalf("tasks page = %d, want 2", got)
	}
	if task, ok := h.m.currentTask(); !ok || task.TaskID != seedTask {
		t.Fatalf("cursor on %q, want %q", task.TaskID, seedTask)
	}
	if cmd == nil {
		t.Fatalf("locate returned no highlight command")
	}
}

func TestModel_LocateDeviceFromExpandedTask(t *testing.T) {
	backend := demo.NewBackend(demo.WithDevices(12))
	h := newHarness(t, backend, nil, func(c *config.Config) { c.DevicesPageSize = 5 })
	h.loadLists()

	h.press("2", "o")
	devices := h.m.taskStatus.Devices(h.m.expandedTask)
	if len(devices) != 3 {
		t.Fatalf("expanded devices = %d, want 3", len(devices))
	}
	h.press("n", "n", "enter")
	if h.m.currentView != ViewDevices {
		t.Fatalf("view = %v, want devices", h.m.currentView)
	}
	if d, ok := h.m.currentDevice(); !ok || d.DeviceID != "wd-0003" {
		t.Fatalf("cursor on %q, want wd-0003", d.DeviceID)
	}
}

func TestModel_CancelAsksForConfirmation(t *testing.T) {
	backend := demo.NewBackend(demo.WithDevices(4))
	task, err := backend.StartTransfer(context.Background(), ota.StartTransferRequest{FileName: "gateway-2.3.s37", DeviceIDs: []string{"wd-0004"}})
	if err != nil {
		t.Fatalf("StartTransfer: %v", err)
	}
	h := newHarness(t, backend, nil, nil)
	h.loadLists()

	h.press("2", "x")
	if h.m.modal == nil {
		t.Fatalf("cancel did not open a confirmation")
	}
	confirm := h.press("enter")
	if h.m.modal != nil || confirm == nil {
		t.Fatalf("confirmation did not close with a command")
	}
	cancel := h.send(confirm())
	if cancel == nil {
		t.Fatalf("confirmed cancel issued no request")
	}
	done := cancel().(mutation.Done)
	if len(done.TaskIDs) != 1 || done.TaskIDs[0] != task.TaskID {
		t.Fatalf("cancelled %v, want [%s]", done.TaskIDs, task.TaskID)
	}
	h.send(done)
	if h.countNotices("Tasks cancelled") != 1 {
		t.Fatalf("missing cancel notice")
	}
}

type rejectingAPI struct {
	ota.API
}

func (rejectingAPI) ListDevices(context.Context) ([]ota.WirelessDevice, error) {
	return nil, fmt.Errorf("list devices: %w", ota.ErrUnauthorized)
}

func TestModel_UnauthorizedEndsSession(t *testing.T) {
	session, err := ota.NewSession(nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if err := session.SetToken("ops", "token"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	api := rejectingAPI{API: demo.NewBackend(demo.WithDevices(3))}
	h := newHarness(t, api, session, nil)
	h.send(fetchTasksCmd(context.Background(), api, h.m.epoch)())
	if h.m.tasks.Len() == 0 {
		t.Fatalf("tasks not loaded")
	}
	staleEpoch := h.m.epoch

	// The HTTP client invalidates the session before the error surfaces.
	_ = session.Invalidate()
	h.send(fetchDevicesCmd(context.Background(), api, h.m.epoch)())

	if h.m.currentView != ViewLogin {
		t.Fatalf("view = %v, want login", h.m.currentView)
	}
	if h.m.tasks.Len() != 0 || h.m.taskStatus.Active() != 0 {
		t.Fatalf("session state survived logout")
	}
	if h.countNotices("Unauthorize error") != 1 {
		t.Fatalf("want exactly one Unauthorize error notice, history = %v", h.notices.History())
	}

	// Results requested before the logout are dropped.
	h.send(tasksLoadedMsg{epoch: staleEpoch, tasks: []ota.TransferTask{{TaskID: "late"}}})
	if h.m.tasks.Len() != 0 {
		t.Fatalf("stale task list was applied")
	}
	h.send(devicesLoadedMsg{epoch: h.m.epoch, err: ota.ErrUnauthorized})
	if h.countNotices("Unauthorize error") != 1 {
		t.Fatalf("Unauthorize error shown twice")
	}
}

func TestModel_ListFailureWaitsForRefresh(t *testing.T) {
	h := newHarness(t, demo.NewBackend(demo.WithDevices(2)), nil, nil)
	h.loadLists()
	boom := errors.New("connection refused")

	for i := 0; i < 10; i++ {
		if cmd := h.send(devicesLoadedMsg{epoch: h.m.epoch, err: boom}); cmd != nil {
			t.Fatalf("device failure %d scheduled a fetch", i+1)
		}
		if cmd := h.send(tasksLoadedMsg{epoch: h.m.epoch, err: boom}); cmd != nil {
			t.Fatalf("task failure %d scheduled a fetch", i+1)
		}
		if cmd := h.send(filesLoadedMsg{epoch: h.m.epoch, err: boom}); cmd != nil {
			t.Fatalf("file failure %d scheduled a fetch", i+1)
		}
	}
	if h.m.loadingDevices || h.m.loadingTasks || h.m.loadingFiles {
		t.Fatalf("failed lists still marked loading")
	}
	if h.m.devices.Len() != 2 {
		t.Fatalf("devices = %d, want last known 2", h.m.devices.Len())
	}
	if !h.m.devices.Snapshot().IsOffline() || !h.m.tasks.Snapshot().IsOffline() {
		t.Fatalf("repeated failures should mark the backend offline")
	}
	for _, text := range []string{"Error while getting devices", "Error while getting transfer tasks", "Error while getting files"} {
		if h.countNotices(text) != 1 {
			t.Fatalf("%q shown %d times, want once", text, h.countNotices(text))
		}
	}

	if cmd := h.press("r"); cmd == nil {
		t.Fatalf("refresh issued no fetch")
	}
	if !h.m.loadingDevices || !h.m.loadingTasks || !h.m.loadingFiles {
		t.Fatalf("refresh did not reload every list")
	}
	h.loadLists()
	if h.m.devices.Snapshot().IsOffline() {
		t.Fatalf("successful refresh should clear the offline state")
	}
}

func TestRunProgram_StopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := config.Default()
	cfg.LogDir = t.TempDir()
	m := New(Options{
		Context:   ctx,
		API:       demo.NewBackend(demo.WithDevices(2)),
		Config:    cfg,
		PrefsPath: filepath.Join(t.TempDir(), "prefs.toml"),
	})

	done := make(chan error, 1)
	go func() {
		done <- runProgram(m, tea.WithInput(nil), tea.WithOutput(io.Discard), tea.WithoutSignalHandler(), tea.WithoutRenderer())
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runProgram = %v, want nil after cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("program kept running after its context was cancelled")
	}
}

func TestModel_StartTimeModal(t *testing.T) {
	h := newHarness(t, demo.NewBackend(demo.WithDevices(2)), nil, nil)
	at := time.Now().Add(time.Hour).Truncate(time.Minute)
	h.press("s")
	if h.m.modal == nil {
		t.Fatalf("s did not open the start time modal")
	}
	h.send(startTimeMsg{at: at})
	if !h.m.draft.StartTime.Equal(at) {
		t.Fatalf("start time = %v, want %v", h.m.draft.StartTime, at)
	}
}

func TestModel_ViewRendersEveryView(t *testing.T) {
	h := newHarness(t, demo.NewBackend(demo.WithDevices(5)), nil, nil)
	h.loadLists()
	for _, k := range []string{"1", "2", "3", "4", "5"} {
		h.press(k)
		if out := h.m.View(); out == "" {
			t.Fatalf("view %s rendered nothing", k)
		}
	}
	h.press("h")
	if !h.m.showHelp || h.m.View() == "" {
		t.Fatalf("help overlay not shown")
	}
}
