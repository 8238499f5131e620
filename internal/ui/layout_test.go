package ui

import (
	"testing"
	"time"

	"github.com/sidewalk-ota/otadash/internal/ota"
)

func TestFitColumns_DropsLowPriorityFirst(t *testing.T) {
	specs := []colSpec{
		{"A", 10, 3},
		{"B", 10, 1},
		{"C", 10, 2},
	}
	cols, keep := fitColumns(specs, 26)
	if len(cols) != 2 {
		t.Fatalf("got %d columns, want 2", len(cols))
	}
	if cols[0].Title != "A" || cols[1].Title != "C" {
		t.Fatalf("columns = %v, want A C in order", cols)
	}
	if keep[0] != 0 || keep[1] != 2 {
		t.Fatalf("keep = %v, want [0 2]", keep)
	}

	row := project([]string{"a", "b", "c"}, keep)
	if len(row) != 2 || row[0] != "a" || row[1] != "c" {
		t.Fatalf("project = %v", row)
	}
}

func TestFitColumns_AlwaysKeepsOne(t *testing.T) {
	cols, _ := fitColumns([]colSpec{{"Wide", 50, 1}}, 5)
	if len(cols) != 1 {
		t.Fatalf("got %d columns, want 1", len(cols))
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "-"},
		{-time.Second, "-"},
		{42 * time.Second, "42s"},
		{3*time.Minute + 5*time.Second, "3m05s"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1h02m03s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("firmware.bin", 8); got != "firmw..." {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("ok", 8); got != "ok" {
		t.Fatalf("truncate short = %q", got)
	}
	if got := truncate("abc", 0); got != "" {
		t.Fatalf("truncate zero = %q", got)
	}
}

func TestRowMarker(t *testing.T) {
	if got := rowMarker(true, true); got != "»✓" {
		t.Fatalf("rowMarker = %q", got)
	}
	if got := rowMarker(false, false); got != " " {
		t.Fatalf("rowMarker = %q", got)
	}
}

func TestRowCache_RebuildsOnlyOnNewRevision(t *testing.T) {
	c := newRowCache()
	builds := 0
	build := func() []string {
		builds++
		return deviceCells(ota.WirelessDevice{DeviceID: "wd-1", TransferStatus: ota.StatusPending})
	}

	c.get(rowDevices, "wd-1", 1, build)
	c.get(rowDevices, "wd-1", 1, build)
	if builds != 1 {
		t.Fatalf("builds = %d after a repeated revision, want 1", builds)
	}
	cells := c.get(rowDevices, "wd-1", 2, build)
	if builds != 2 {
		t.Fatalf("builds = %d after a new revision, want 2", builds)
	}
	if cells[1] != "PENDING" || cells[2] != "-" {
		t.Fatalf("cells = %v", cells)
	}

	c.prune(rowDevices, nil)
	c.get(rowDevices, "wd-1", 2, build)
	if builds != 3 {
		t.Fatalf("pruned row was not rebuilt")
	}
}

func TestParseStartTime(t *testing.T) {
	now := time.Date(2030, 5, 1, 12, 0, 0, 0, time.Local)

	at, err := parseStartTime("  ", now)
	if err != nil || !at.IsZero() {
		t.Fatalf("blank = %v, %v; want zero time", at, err)
	}
	at, err = parseStartTime("2030-05-01 13:30", now)
	if err != nil {
		t.Fatalf("parseStartTime: %v", err)
	}
	if want := time.Date(2030, 5, 1, 13, 30, 0, 0, time.Local); !at.Equal(want) {
		t.Fatalf("at = %v, want %v", at, want)
	}
	if _, err := parseStartTime("2030-05-01 11:00", now); err == nil {
		t.Fatalf("past start time accepted")
	}
	if _, err := parseStartTime("tomorrow", now); err == nil {
		t.Fatalf("malformed start time accepted")
	}
}

func TestNextThemeCycles(t *testing.T) {
	names := ThemeNames()
	for i, name := range names {
		if got := NextTheme(name); got != names[(i+1)%len(names)] {
			t.Fatalf("NextTheme(%q) = %q", name, got)
		}
	}
	if got := NextTheme("missing"); got != names[0] {
		t.Fatalf("NextTheme(missing) = %q", got)
	}
	if got := GetTheme("missing").Name; got != "Nightfox" {
		t.Fatalf("GetTheme fallback = %q", got)
	}
}
