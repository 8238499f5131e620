package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) currentFile() (string, bool) {
	if m.fileCursor < 0 || m.fileCursor >= len(m.files.FileNames) {
		return "", false
	}
	return m.files.FileNames[m.fileCursor], true
}

func (m Model) handleFirmwareKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.fileCursor > 0 {
			m.fileCursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.fileCursor < len(m.files.FileNames)-1 {
			m.fileCursor++
		}
	case key.Matches(msg, m.keys.Upload):
		return m.openPicker()
	case key.Matches(msg, m.keys.ChooseFile):
		if name, ok := m.currentFile(); ok {
			m.draft.FileName = name
			m.pendingSelectFile = ""
			m.notices.Info("Selected " + name + " for the next transfer")
		}
	case key.Matches(msg, m.keys.SetCurrent):
		name, ok := m.currentFile()
		if !ok {
			return m, nil
		}
		if cmd := m.mutations.SetFirmware(name); cmd != nil {
			m.mutating++
			return m, cmd
		}
	}
	return m, nil
}

func (m Model) renderFirmware() string {
	height := m.contentHeight()
	title := fmt.Sprintf("Firmware files (%d)", len(m.files.FileNames))
	if len(m.files.FileNames) == 0 {
		if m.loadingFiles {
			return m.renderEmpty(title, m.spinner.View()+" Loading files...")
		}
		return m.renderEmpty(title, "No firmware uploaded yet, press u to upload")
	}

	styles := m.theme.Styles()
	current := m.files.CurrentFirmware()

	var b strings.Builder
	b.WriteString(styles.MutedText.Render("Current firmware: "))
	if current == "" {
		b.WriteString(styles.FaintText.Render("none"))
	} else {
		b.WriteString(styles.SuccessText.Render(current))
	}
	b.WriteString("\n\n")

	visible := max(height-6, 1)
	first := 0
	if m.fileCursor >= visible {
		first = m.fileCursor - visible + 1
	}
	last := min(first+visible, len(m.files.FileNames))
	for i := first; i < last; i++ {
		name := m.files.FileNames[i]
		line := "  " + styles.Text.Render(name)
		if i == m.fileCursor {
			line = styles.AccentText.Render("▸ ") + styles.Selected.Render(name)
		}
		if name == current {
			line += " " + styles.StatusStyle("COMPLETE").Render("current")
		}
		if name == m.draft.FileName {
			line += " " + styles.InfoText.Render("← next transfer")
		}
		b.WriteString(line + "\n")
	}
	return m.renderTitledBox(title, b.String(), m.width, height, true)
}
