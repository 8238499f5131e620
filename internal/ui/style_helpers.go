package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// BgStyle paints a fixed background under every rendered segment, spaces
// included. Lipgloss resets between segments otherwise leave unpainted gaps.
type BgStyle struct {
	bg   lipgloss.Color
	fill lipgloss.Style
}

// NewBgStyle returns a painter for bgColor.
func NewBgStyle(bgColor string) BgStyle {
	bg := lipgloss.Color(bgColor)
	return BgStyle{bg: bg, fill: lipgloss.NewStyle().Background(bg)}
}

// Render styles text on the background. Each word is rendered separately and
// rejoined with painted spaces.
func (b BgStyle) Render(text string, style lipgloss.Style) string {
	if text == "" {
		return ""
	}
	painted := style.Background(b.bg)
	words := strings.Split(text, " ")
	for i, w := range words {
		if w != "" {
			words[i] = painted.Render(w)
		}
	}
	return strings.Join(words, b.Space())
}

// Space returns one painted space.
func (b BgStyle) Space() string { return b.Spaces(1) }

// Spaces returns n painted spaces.
func (b BgStyle) Spaces(n int) string {
	return b.fill.Render(strings.Repeat(" ", max(n, 0)))
}

// Sep returns a painted separator.
func (b BgStyle) Sep(sep string) string { return b.fill.Render(sep) }

// Join joins parts with a painted separator.
func (b BgStyle) Join(parts []string, sep string) string {
	return strings.Join(parts, b.Sep(sep))
}

// Color returns the background color.
func (b BgStyle) Color() lipgloss.Color { return b.bg }
