package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
)

func (m Model) openPicker() (tea.Model, tea.Cmd) {
	m.picking = true
	return m, m.picker.Init()
}

func (m Model) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Back) {
		m.picking = false
		return m, nil
	}

	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)

	if ok, path := m.picker.DidSelectDisabledFile(msg); ok {
		log.Debug().Str("path", path).Msg("picked file with a disallowed extension")
		m.notices.Error("Only " + joinExtensions(m.mutations.Policy().Extensions) + " files can be uploaded")
		return m, cmd
	}
	if ok, path := m.picker.DidSelectFile(msg); ok {
		m.picking = false
		upload := m.mutations.Upload(path)
		if upload != nil {
			m.mutating++
		}
		return m, upload
	}
	return m, cmd
}

func (m Model) renderPicker() string {
	styles := m.theme.Styles()
	body := styles.MutedText.Render("Pick a firmware file ("+joinExtensions(m.mutations.Policy().Extensions)+") · esc to cancel") +
		"\n" + styles.FaintText.Render(m.picker.CurrentDirectory) +
		"\n\n" + m.picker.View()
	return m.renderTitledBox("Upload firmware", body, m.width, m.contentHeight(), true)
}

func joinExtensions(exts []string) string {
	return strings.Join(exts, ", ")
}
