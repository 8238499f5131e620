package ui

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"

	"github.com/sidewalk-ota/otadash/internal/config"
	"github.com/sidewalk-ota/otadash/internal/logtail"
	"github.com/sidewalk-ota/otadash/internal/mutation"
	"github.com/sidewalk-ota/otadash/internal/notify"
	"github.com/sidewalk-ota/otadash/internal/ota"
	"github.com/sidewalk-ota/otadash/internal/poll"
	"github.com/sidewalk-ota/otadash/internal/prefs"
	"github.com/sidewalk-ota/otadash/internal/scroll"
	"github.com/sidewalk-ota/otadash/internal/state"
	"github.com/sidewalk-ota/otadash/internal/tracker"
)

// View represents the current active view.
type View int

const (
	ViewDevices View = iota
	ViewTasks
	ViewFirmware
	ViewActivity
	ViewSensors
	ViewLogin
)

// tabViews is the number of views reachable with tab.
const tabViews = int(ViewLogin)

var viewNames = map[View]string{
	ViewDevices:  "devices",
	ViewTasks:    "tasks",
	ViewFirmware: "firmware",
	ViewActivity: "activity",
	ViewSensors:  "sensors",
	ViewLogin:    "login",
}

func (v View) String() string { return viewNames[v] }

func parseView(name string) View {
	for v, n := range viewNames {
		if n == strings.ToLower(strings.TrimSpace(name)) && v != ViewLogin {
			return v
		}
	}
	return ViewDevices
}

// Options configures the UI.
type Options struct {
	Context context.Context
	API     ota.API
	// Session is nil when the backend needs no login.
	Session   *ota.Session
	Config    config.Config
	Notices   *notify.Center
	Observer  poll.Observer
	Recorder  mutation.Recorder
	ThemeName string
	PrefsPath string
	StartView string
	// Now replaces time.Now in tests.
	Now func() time.Time
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx       context.Context
	api       ota.API
	session   *ota.Session
	cfg       config.Config
	prefsPath string
	now       func() time.Time

	// Engine
	devices    *state.Devices
	tasks      *state.Tasks
	deviceSync *tracker.Devices
	taskStatus *tracker.Tasks
	sensors    *tracker.Sensors
	locator    *scroll.Locator
	mutations  *mutation.Coordinator
	notices    *notify.Center
	rows       *rowCache

	// UI state
	theme       Theme
	keys        keyMap
	help        help.Model
	spinner     spinner.Model
	currentView View
	lastView    View
	width       int
	height      int
	ready       bool
	showHelp    bool
	modal       Modal

	// Loading state; epoch advances on every logout
	epoch          int
	loadingDevices bool
	loadingTasks   bool
	loadingFiles   bool
	mutating       int

	// Devices view
	deviceCursor    int
	selectedDevices map[string]bool
	draft           mutation.Draft

	// Tasks view
	taskCursor        int
	selectedTasks     map[string]bool
	expandedTask      string
	taskDeviceCursor  int
	pendingSelectFile string

	// Firmware view
	files        ota.FileList
	filesLoaded  bool
	fileFailures int
	fileCursor   int

	// Upload picker
	picker  filepicker.Model
	picking bool

	// Login view
	login loginForm

	// Activity view
	activity    []logtail.Entry
	activityErr error

	// Sensors view
	sensorCursor int
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	notices := opts.Notices
	if notices == nil {
		notices = notify.New(0)
	}
	themeName := opts.ThemeName
	if themeName == "" {
		themeName = "Nightfox"
	}
	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}
	cfg := opts.Config

	policy := mutation.DefaultPolicy()
	if cfg.UploadMaxBytes > 0 {
		policy.MaxBytes = cfg.UploadMaxBytes
	}
	if len(cfg.UploadExtensions) > 0 {
		policy.Extensions = cfg.UploadExtensions
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	picker := filepicker.New()
	picker.AllowedTypes = policy.Extensions
	if wd, err := os.Getwd(); err == nil {
		picker.CurrentDirectory = wd
	}

	m := Model{
		ctx:       ctx,
		api:       opts.API,
		session:   opts.Session,
		cfg:       cfg,
		prefsPath: prefsPath,
		now:       now,

		devices: &state.Devices{},
		tasks:   &state.Tasks{},
		deviceSync: tracker.NewDevices(ctx, opts.API, notices, poll.Options{
			Name:     "devices",
			Interval: cfg.DeviceInterval,
			Observer: opts.Observer,
		}),
		taskStatus: tracker.NewTasks(ctx, opts.API, notices, poll.Options{
			Name:     "tasks",
			Interval: cfg.TaskInterval,
			Observer: opts.Observer,
		}),
		sensors: tracker.NewSensors(ctx, opts.API, notices, poll.Options{
			Name:     "sensor_devices",
			Interval: cfg.SensorInterval,
			Observer: opts.Observer,
		}, poll.Options{
			Name:     "measurements",
			Interval: cfg.MeasurementInterval,
			Observer: opts.Observer,
		}),
		locator: scroll.New(map[scroll.Table]int{
			scroll.Devices: cfg.DevicesPageSize,
			scroll.Tasks:   cfg.TasksPageSize,
		}, cfg.Highlight),
		mutations: mutation.New(ctx, opts.API, notices, opts.Recorder, policy),
		notices:   notices,
		rows:      newRowCache(),

		theme:           GetTheme(themeName),
		keys:            DefaultKeyMap(),
		help:            help.New(),
		spinner:         sp,
		currentView:     parseView(opts.StartView),
		selectedDevices: make(map[string]bool),
		selectedTasks:   make(map[string]bool),
		picker:          picker,
		login:           newLoginForm(),
	}
	m.lastView = m.currentView
	if m.needsLogin() {
		m.currentView = ViewLogin
		m.login.focus(0)
		if m.session.ConsumeUnauthorized() {
			notices.Error("Unauthorize error")
		}
	} else {
		m.loadingDevices, m.loadingTasks, m.loadingFiles = true, true, true
	}
	return m
}

func (m Model) needsLogin() bool {
	return m.session != nil && !m.session.Authorized()
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.spinner.Tick,
		uiTickCmd(),
	}
	if m.currentView == ViewLogin {
		cmds = append(cmds, textinputBlink())
	} else {
		cmds = append(cmds,
			fetchDevicesCmd(m.ctx, m.api, m.epoch),
			fetchTasksCmd(m.ctx, m.api, m.epoch),
			fetchFilesCmd(m.ctx, m.api, m.epoch),
		)
		if m.currentView == ViewSensors {
			cmds = append(cmds, m.sensors.Start())
		}
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.ready = true
		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)
		return m, cmd

	case uiTickMsg:
		cmds := []tea.Cmd{uiTickCmd()}
		if m.currentView == ViewActivity {
			cmds = append(cmds, m.loadActivity())
		}
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case devicesLoadedMsg:
		return m.handleDevicesLoaded(msg)

	case tasksLoadedMsg:
		return m.handleTasksLoaded(msg)

	case filesLoadedMsg:
		return m.handleFilesLoaded(msg)

	case loginResultMsg:
		return m.handleLoginResult(msg)

	case activityMsg:
		m.activity = msg.entries
		m.activityErr = msg.err
		return m, nil

	case mutation.Done:
		return m.handleMutationDone(msg)

	case startTimeMsg:
		m.draft.StartTime = msg.at
		if msg.at.IsZero() {
			m.notices.Info("Transfer will start immediately")
		} else {
			m.notices.Info("Transfer scheduled for " + msg.at.Local().Format(startTimeLayout))
		}
		return m, nil

	case confirmedMsg:
		if msg.action == "cancel" {
			cmd := m.mutations.Cancel(msg.ids)
			if cmd != nil {
				m.mutating++
			}
			return m, cmd
		}
		return m, nil
	}

	// Everything else may belong to the engine, an open picker or a modal.
	var cmds []tea.Cmd
	if m.picking {
		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)
		cmds = append(cmds, cmd)
	}
	if m.modal != nil {
		var cmd tea.Cmd
		var closed bool
		m.modal, cmd, closed = m.modal.Update(msg, m.keys)
		if closed {
			m.modal = nil
		}
		cmds = append(cmds, cmd)
	}
	next, cmd := m.routeEngine(msg)
	return next, tea.Batch(append(cmds, cmd)...)
}

// routeEngine hands poll and highlight messages to the engine.
func (m Model) routeEngine(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	cmd, err := m.deviceSync.Update(msg, m.devices)
	cmds = append(cmds, cmd)
	if m.isUnauthorized(err) {
		return m.forceLogout()
	}

	cmd, err = m.taskStatus.Update(msg)
	cmds = append(cmds, cmd)
	if m.isUnauthorized(err) {
		return m.forceLogout()
	}

	cmd, err = m.sensors.Update(msg)
	cmds = append(cmds, cmd)
	if m.isUnauthorized(err) {
		return m.forceLogout()
	}

	cmds = append(cmds, m.locator.Update(msg))
	return m, tea.Batch(cmds...)
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	if m.modal != nil {
		return m.modal.View(m.theme, m.width, m.height)
	}
	return m.renderMain()
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.showHelp {
		// Any key closes help
		m.showHelp = false
		return m, nil
	}

	if m.modal != nil {
		var cmd tea.Cmd
		var closed bool
		m.modal, cmd, closed = m.modal.Update(msg, m.keys)
		if closed {
			m.modal = nil
		}
		return m, cmd
	}

	if m.picking {
		return m.handlePickerKey(msg)
	}

	if m.currentView == ViewLogin {
		return m.handleLoginKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil
	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.savePrefs()
		return m, nil
	case key.Matches(msg, m.keys.Tab):
		return m.switchView(View((int(m.currentView) + 1) % tabViews))
	case key.Matches(msg, m.keys.ShiftTab):
		return m.switchView(View((int(m.currentView) + tabViews - 1) % tabViews))
	case key.Matches(msg, m.keys.ViewDevices):
		return m.switchView(ViewDevices)
	case key.Matches(msg, m.keys.ViewTasks):
		return m.switchView(ViewTasks)
	case key.Matches(msg, m.keys.ViewFirmware):
		return m.switchView(ViewFirmware)
	case key.Matches(msg, m.keys.ViewActivity):
		return m.switchView(ViewActivity)
	case key.Matches(msg, m.keys.ViewSensors):
		return m.switchView(ViewSensors)
	case key.Matches(msg, m.keys.Refresh):
		cmds := m.loadAll()
		if m.currentView == ViewSensors {
			cmds = append(cmds, m.sensors.Refresh())
		}
		return m, tea.Batch(cmds...)
	case key.Matches(msg, m.keys.Logout) && m.session != nil:
		return m.logout()
	}

	switch m.currentView {
	case ViewDevices:
		return m.handleDevicesKey(msg)
	case ViewTasks:
		return m.handleTasksKey(msg)
	case ViewFirmware:
		return m.handleFirmwareKey(msg)
	case ViewSensors:
		return m.handleSensorsKey(msg)
	}
	return m, nil
}

func (m Model) switchView(v View) (tea.Model, tea.Cmd) {
	if m.currentView == ViewSensors && v != ViewSensors {
		m.sensors.Stop()
	}
	m.currentView = v
	m.lastView = v
	m.savePrefs()
	switch v {
	case ViewSensors:
		return m, m.sensors.Start()
	case ViewActivity:
		return m, m.loadActivity()
	case ViewFirmware:
		if !m.filesLoaded && !m.loadingFiles {
			cmd := m.reload(reloadFiles)
			return m, cmd
		}
	}
	return m, nil
}

func (m Model) savePrefs() {
	if m.prefsPath == "" {
		return
	}
	if err := prefs.Save(m.prefsPath, prefs.Prefs{Theme: m.theme.Name, View: m.lastView.String()}); err != nil {
		log.Debug().Err(err).Msg("save prefs failed")
	}
}

// isUnauthorized reports whether err ended the login session.
func (m Model) isUnauthorized(err error) bool {
	return err != nil && errors.Is(err, ota.ErrUnauthorized) && m.session != nil
}

// forceLogout drops all session state after the backend rejected the token.
func (m Model) forceLogout() (tea.Model, tea.Cmd) {
	log.Warn().Msg("session rejected by backend")
	m.resetSessionState()
	if m.session.ConsumeUnauthorized() {
		m.notices.Error("Unauthorize error")
	}
	return m, textinputBlink()
}

func (m Model) logout() (tea.Model, tea.Cmd) {
	if err := m.session.Logout(); err != nil {
		log.Warn().Err(err).Msg("logout failed")
	}
	m.resetSessionState()
	m.notices.Info("Logged out")
	return m, textinputBlink()
}

func (m *Model) resetSessionState() {
	m.epoch++
	m.loadingDevices, m.loadingTasks, m.loadingFiles = false, false, false
	m.mutating = 0
	m.deviceSync.Stop()
	m.taskStatus.Stop()
	m.sensors.Clear()
	m.sensorCursor = 0
	m.devices.Clear()
	m.tasks.Clear()
	m.rows.reset()
	m.locator.SetItemsDisposition(scroll.Devices, nil)
	m.locator.SetItemsDisposition(scroll.Tasks, nil)
	m.files = ota.FileList{}
	m.filesLoaded = false
	m.selectedDevices = make(map[string]bool)
	m.selectedTasks = make(map[string]bool)
	m.draft = mutation.Draft{}
	m.pendingSelectFile = ""
	m.fileFailures = 0
	m.expandedTask = ""
	m.picking = false
	m.modal = nil
	m.currentView = ViewLogin
	m.login = newLoginForm()
	m.login.focus(0)
}

// Run starts the Bubble Tea program. Cancelling opts.Context stops it.
func Run(opts Options) error {
	return runProgram(New(opts), tea.WithAltScreen())
}

func runProgram(m Model, extra ...tea.ProgramOption) error {
	p := tea.NewProgram(m, append([]tea.ProgramOption{tea.WithContext(m.ctx)}, extra...)...)
	_, err := p.Run()
	m.deviceSync.Stop()
	m.taskStatus.Stop()
	m.sensors.Stop()
	if errors.Is(err, tea.ErrProgramKilled) && m.ctx.Err() != nil {
		log.Info().Err(m.ctx.Err()).Msg("ui stopped by context")
		return nil
	}
	return err
}
