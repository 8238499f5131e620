package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the application.
type keyMap struct {
	// Global
	Quit       key.Binding
	Help       key.Binding
	CycleTheme key.Binding
	Tab        key.Binding
	ShiftTab   key.Binding
	Refresh    key.Binding
	Logout     key.Binding

	// View switching
	ViewDevices  key.Binding
	ViewTasks    key.Binding
	ViewFirmware key.Binding
	ViewActivity key.Binding
	ViewSensors  key.Binding

	// Navigation
	Up       key.Binding
	Down     key.Binding
	NextPage key.Binding
	PrevPage key.Binding

	// Devices
	Select     key.Binding
	Upload     key.Binding
	Schedule   key.Binding
	Start      key.Binding
	LocateTask key.Binding
	ClearDraft key.Binding

	// Tasks
	Expand       key.Binding
	NextDevice   key.Binding
	PrevDevice   key.Binding
	LocateDevice key.Binding
	CancelTasks  key.Binding

	// Firmware
	ChooseFile key.Binding
	SetCurrent key.Binding

	// Forms and modals
	Confirm key.Binding
	Back    key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "e"),
			key.WithHelp("e", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("h", "?"),
			key.WithHelp("h/?", "Toggle help"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "Cycle theme"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "Cycle views"),
		),
		ShiftTab: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "Cycle views (reverse)"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Reload lists"),
		),
		Logout: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "Log out"),
		),

		ViewDevices: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "Devices"),
		),
		ViewTasks: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "Tasks"),
		),
		ViewFirmware: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "Firmware"),
		),
		ViewActivity: key.NewBinding(
			key.WithKeys("4"),
			key.WithHelp("4", "Activity"),
		),
		ViewSensors: key.NewBinding(
			key.WithKeys("5"),
			key.WithHelp("5", "Sensors"),
		),

		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/up", "Move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/down", "Move down"),
		),
		NextPage: key.NewBinding(
			key.WithKeys("]", "pgdown", "right"),
			key.WithHelp("]", "Next page"),
		),
		PrevPage: key.NewBinding(
			key.WithKeys("[", "pgup", "left"),
			key.WithHelp("[", "Previous page"),
		),

		Select: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "Select row"),
		),
		Upload: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "Upload firmware"),
		),
		Schedule: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "Schedule start"),
		),
		Start: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Start transfer"),
		),
		LocateTask: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "Go to task"),
		),
		ClearDraft: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "Clear selection"),
		),

		Expand: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "Show devices"),
		),
		NextDevice: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "Next device"),
		),
		PrevDevice: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "Previous device"),
		),
		LocateDevice: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Go to device"),
		),
		CancelTasks: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "Cancel tasks"),
		),

		ChooseFile: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Use for transfer"),
		),
		SetCurrent: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "Set current firmware"),
		),

		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Confirm"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "Back"),
		),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Quit}
}

// viewHelp returns the bindings shown in the command bar for a view.
func (k keyMap) viewHelp(v View) []key.Binding {
	switch v {
	case ViewDevices:
		return []key.Binding{k.Select, k.Upload, k.Schedule, k.Start, k.LocateTask, k.NextPage, k.Help}
	case ViewTasks:
		return []key.Binding{k.Select, k.Expand, k.NextDevice, k.LocateDevice, k.CancelTasks, k.NextPage, k.Help}
	case ViewFirmware:
		return []key.Binding{k.Up, k.Down, k.ChooseFile, k.SetCurrent, k.Upload, k.Help}
	case ViewActivity:
		return []key.Binding{k.Tab, k.Refresh, k.Help, k.Quit}
	case ViewSensors:
		return []key.Binding{k.Up, k.Down, k.Refresh, k.Help}
	}
	return k.ShortHelp()
}
