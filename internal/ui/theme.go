package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/sidewalk-ota/otadash/internal/ota"
	"github.com/sidewalk-ota/otadash/internal/tracker"
)

// Theme holds the resolved colors of one palette.
type Theme struct {
	Name string

	Background string
	Surface    string
	Panel      string // unfocused box fill
	PanelFocus string // focused box fill

	SelectionBg   string
	SelectionText string

	Border      string
	BorderFocus string

	Text    string
	Muted   string
	Faint   string
	Accent  string
	Success string
	Warning string
	Danger  string
	Info    string

	// StatusColors maps a transfer or task status to its badge color.
	StatusColors map[string]string
}

// palette is the minimal set of colors a theme is derived from.
type palette struct {
	bg0, bg1, bg2, bg3, bg4 string
	sel                     string
	fg, comment, faint      string
	blue, green, yellow     string
	red, cyan, magenta      string
	orange                  string
}

func newTheme(name string, p palette) Theme {
	return Theme{
		Name:          name,
		Background:    p.bg0,
		Surface:       p.bg1,
		Panel:         p.bg2,
		PanelFocus:    p.bg3,
		SelectionBg:   p.sel,
		SelectionText: p.fg,
		Border:        p.bg4,
		BorderFocus:   p.blue,
		Text:          p.fg,
		Muted:         p.comment,
		Faint:         p.faint,
		Accent:        p.blue,
		Success:       p.green,
		Warning:       p.yellow,
		Danger:        p.red,
		Info:          p.cyan,
		StatusColors: map[string]string{
			string(ota.StatusPending):      p.comment,
			string(ota.StatusTransferring): p.blue,
			string(ota.StatusComplete):     p.green,
			string(ota.StatusCompleted):    p.green,
			string(ota.StatusFailed):       p.red,
			string(ota.StatusCancelled):    p.orange,
			string(ota.StatusNone):         p.faint,
			string(tracker.StatusUnknown):  p.magenta,
		},
	}
}

// Styles returns Lipgloss styles for this theme.
func (t Theme) Styles() Styles {
	fg := func(c string) lipgloss.Style { return lipgloss.NewStyle().Foreground(lipgloss.Color(c)) }
	return Styles{
		Text:        fg(t.Text),
		MutedText:   fg(t.Muted),
		FaintText:   fg(t.Faint),
		AccentText:  fg(t.Accent),
		SuccessText: fg(t.Success).Bold(true),
		WarningText: fg(t.Warning),
		DangerText:  fg(t.Danger).Bold(true),
		InfoText:    fg(t.Info),

		Header: lipgloss.NewStyle().
			Background(lipgloss.Color(t.Surface)).
			Foreground(lipgloss.Color(t.Text)).
			Padding(0, 1),
		Logo: fg(t.Warning).Bold(true),
		Selected: lipgloss.NewStyle().
			Background(lipgloss.Color(t.SelectionBg)).
			Foreground(lipgloss.Color(t.SelectionText)),

		statusColors: t.StatusColors,
		background:   t.Background,
		muted:        t.Muted,
	}
}

// Styles contains pre-built Lipgloss styles for the theme.
type Styles struct {
	Text        lipgloss.Style
	MutedText   lipgloss.Style
	FaintText   lipgloss.Style
	AccentText  lipgloss.Style
	SuccessText lipgloss.Style
	WarningText lipgloss.Style
	DangerText  lipgloss.Style
	InfoText    lipgloss.Style

	Header   lipgloss.Style
	Logo     lipgloss.Style
	Selected lipgloss.Style

	statusColors map[string]string
	background   string
	muted        string
}

// StatusStyle returns a badge style for a transfer status.
func (s Styles) StatusStyle(status string) lipgloss.Style {
	color := s.statusColors[strings.ToUpper(status)]
	if color == "" {
		color = s.muted
	}
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(s.background)).
		Background(lipgloss.Color(color)).
		Padding(0, 1)
}

// TableStyles returns bubbles table styles for the theme.
func (t Theme) TableStyles() table.Styles {
	st := table.DefaultStyles()
	st.Header = st.Header.
		Foreground(lipgloss.Color(t.Accent)).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color(t.Border)).
		BorderBottom(true).
		Bold(true)
	st.Cell = st.Cell.Foreground(lipgloss.Color(t.Text))
	st.Selected = st.Selected.
		Foreground(lipgloss.Color(t.SelectionText)).
		Background(lipgloss.Color(t.SelectionBg)).
		Bold(false)
	return st
}

// WithBackground returns a copy of s where every text style paints bgColor,
// so segments joined on a colored bar leave no gaps.
func (s Styles) WithBackground(bgColor string) Styles {
	bg := lipgloss.Color(bgColor)
	out := s
	for _, st := range []*lipgloss.Style{
		&out.Text, &out.MutedText, &out.FaintText, &out.AccentText,
		&out.SuccessText, &out.WarningText, &out.DangerText, &out.InfoText,
		&out.Header, &out.Logo, &out.Selected,
	} {
		*st = st.Background(bg)
	}
	return out
}

var themeOrder = []string{"Nightfox", "Kanagawa", "Slate"}

var themes = map[string]Theme{
	// https://github.com/EdenEast/nightfox.nvim
	"Nightfox": newTheme("Nightfox", palette{
		bg0: "#131a24", bg1: "#192330", bg2: "#212e3f", bg3: "#29394f", bg4: "#39506d",
		sel: "#2b3b51",
		fg:  "#cdcecf", comment: "#738091", faint: "#71839b",
		blue: "#719cd6", green: "#81b29a", yellow: "#dbc074",
		red: "#c94f6d", cyan: "#63cdcf", magenta: "#9d79d6",
		orange: "#f4a261",
	}),
	// https://github.com/rebelot/kanagawa.nvim
	"Kanagawa": newTheme("Kanagawa", palette{
		bg0: "#16161D", bg1: "#1F1F28", bg2: "#2A2A37", bg3: "#2A2A37", bg4: "#54546D",
		sel: "#2D4F67",
		fg:  "#DCD7BA", comment: "#C8C093", faint: "#727169",
		blue: "#7E9CD8", green: "#98BB6C", yellow: "#E6C384",
		red: "#E46876", cyan: "#7FB4CA", magenta: "#957FB8",
		orange: "#FFA066",
	}),
	// Tailwind slate and sky
	"Slate": newTheme("Slate", palette{
		bg0: "#020617", bg1: "#0f172a", bg2: "#1e293b", bg3: "#283548", bg4: "#334155",
		sel: "#0284c7",
		fg:  "#f1f5f9", comment: "#94a3b8", faint: "#64748b",
		blue: "#38bdf8", green: "#22c55e", yellow: "#f59e0b",
		red: "#ef4444", cyan: "#06b6d4", magenta: "#a78bfa",
		orange: "#fb923c",
	}),
}

// GetTheme returns a theme by name, falling back to the first one.
func GetTheme(name string) Theme {
	if t, ok := themes[name]; ok {
		return t
	}
	return themes[themeOrder[0]]
}

// NextTheme returns the next theme name in the cycle.
func NextTheme(current string) string {
	for i, name := range themeOrder {
		if name == current {
			return themeOrder[(i+1)%len(themeOrder)]
		}
	}
	return themeOrder[0]
}

// ThemeNames returns available theme names.
func ThemeNames() []string {
	return themeOrder
}
