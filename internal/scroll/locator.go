// Package scroll pages the dashboard tables and brings a given row into view.
package scroll

import (
	"time"

	"github.com/charmbracelet/bubbles/paginator"
	tea "github.com/charmbracelet/bubbletea"
)

// Table identifies one paged table.
type Table int

const (
	Devices Table = iota
	Tasks
)

func (t Table) String() string {
	if t == Tasks {
		return "tasks"
	}
	return "devices"
}

const (
	// DefaultPageSize applies when a table is configured without one.
	DefaultPageSize = 10
	// DefaultHighlight is how long a located row stays highlighted.
	DefaultHighlight = time.Second
)

// HighlightMsg asks the locator to highlight a row once the page it was
// moved to has been rendered.
type HighlightMsg struct {
	Table Table
	ID    string
	token uint64
}

type clearHighlightMsg struct {
	table Table
	token uint64
}

type table struct {
	ids       []string
	pager     paginator.Model
	highlight string
	token     uint64
}

// Locator holds the paging state of every table. Tables are independent.
type Locator struct {
	tables       map[Table]*table
	highlightFor time.Duration
	seq          uint64
}

// New returns a locator with the given page sizes. Missing or non-positive
// sizes fall back to DefaultPageSize.
func New(pageSizes map[Table]int, highlightFor time.Duration) *Locator {
	if highlightFor <= 0 {
		highlightFor = DefaultHighlight
	}
	l := &Locator{tables: make(map[Table]*table), highlightFor: highlightFor}
	for _, t := range []Table{Devices, Tasks} {
		size := pageSizes[t]
		if size <= 0 {
			size = DefaultPageSize
		}
		p := paginator.New(paginator.WithPerPage(size))
		p.Type = paginator.Arabic
		l.tables[t] = &table{pager: p}
	}
	return l
}

func (l *Locator) table(t Table) *table {
	tb, ok := l.tables[t]
	if !ok {
		p := paginator.New(paginator.WithPerPage(DefaultPageSize))
		tb = &table{pager: p}
		l.tables[t] = tb
	}
	return tb
}

// SetItemsDisposition records the id order of a table. Call it whenever the
// number of rows changes; field updates inside rows do not need it.
func (l *Locator) SetItemsDisposition(t Table, ids []string) {
	tb := l.table(t)
	tb.ids = append(tb.ids[:0], ids...)
	if len(ids) == 0 {
		tb.pager.TotalPages = 1
		tb.pager.Page = 0
		return
	}
	pages := tb.pager.SetTotalPages(len(ids))
	if tb.pager.Page >= pages {
		tb.pager.Page = pages - 1
	}
}

// Locate moves the table to the page holding the last row with id and
// returns a command that highlights it after the page switch is drawn. It
// returns nil when id is not in the table.
func (l *Locator) Locate(t Table, id string) tea.Cmd {
	tb := l.table(t)
	idx := -1
	for i := len(tb.ids) - 1; i >= 0; i-- {
		if tb.ids[i] == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	tb.pager.Page = idx / tb.pager.PerPage
	l.seq++
	tb.token = l.seq
	msg := HighlightMsg{Table: t, ID: id, token: tb.token}
	return func() tea.Msg { return msg }
}

// Update applies highlight messages and schedules their expiry.
func (l *Locator) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case HighlightMsg:
		tb := l.table(msg.Table)
		if msg.token != tb.token || !l.onPage(tb, msg.ID) {
			return nil
		}
		tb.highlight = msg.ID
		t, token := msg.Table, msg.token
		return tea.Tick(l.highlightFor, func(time.Time) tea.Msg {
			return clearHighlightMsg{table: t, token: token}
		})
	case clearHighlightMsg:
		tb := l.table(msg.table)
		if msg.token == tb.token {
			tb.highlight = ""
		}
	}
	return nil
}

func (l *Locator) onPage(tb *table, id string) bool {
	start, end := tb.pager.GetSliceBounds(len(tb.ids))
	for _, candidate := range tb.ids[start:end] {
		if candidate == id {
			return true
		}
	}
	return false
}

// Highlighted returns the highlighted row id of a table, if any.
func (l *Locator) Highlighted(t Table) string {
	return l.table(t).highlight
}

// SetPageIndex selects a 1-based page, clamped to the available pages.
func (l *Locator) SetPageIndex(t Table, page int) {
	tb := l.table(t)
	pages := l.Pages(t)
	if page > pages {
		page = pages
	}
	if page < 1 {
		page = 1
	}
	tb.pager.Page = page - 1
}

// PageIndex returns the current 1-based page.
func (l *Locator) PageIndex(t Table) int {
	return l.table(t).pager.Page + 1
}

// Pages returns the page count, at least one.
func (l *Locator) Pages(t Table) int {
	if n := l.table(t).pager.TotalPages; n > 0 {
		return n
	}
	return 1
}

// PageSize returns the rows per page.
func (l *Locator) PageSize(t Table) int {
	return l.table(t).pager.PerPage
}

// NextPage advances one page when possible.
func (l *Locator) NextPage(t Table) {
	l.table(t).pager.NextPage()
}

// PrevPage goes back one page when possible.
func (l *Locator) PrevPage(t Table) {
	l.table(t).pager.PrevPage()
}

// Bounds returns the slice bounds of the current page.
func (l *Locator) Bounds(t Table) (start, end int) {
	tb := l.table(t)
	return tb.pager.GetSliceBounds(len(tb.ids))
}

// PagerView renders the page indicator.
func (l *Locator) PagerView(t Table) string {
	return l.table(t).pager.View()
}
