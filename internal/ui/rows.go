package ui

import (
	"strconv"

	"github.com/sidewalk-ota/otadash/internal/ota"
)

type rowTable int

const (
	rowDevices rowTable = iota
	rowTasks
)

type cachedRow struct {
	rev   uint64
	cells []string
}

// rowCache memoizes the static cells of a row by (id, revision). Columns
// that depend on the clock or on selection are rendered on every frame.
type rowCache struct {
	tables map[rowTable]map[string]cachedRow
	builds int
}

func newRowCache() *rowCache {
	return &rowCache{tables: map[rowTable]map[string]cachedRow{
		rowDevices: {},
		rowTasks:   {},
	}}
}

func (c *rowCache) get(t rowTable, id string, rev uint64, build func() []string) []string {
	if row, ok := c.tables[t][id]; ok && row.rev == rev {
		return row.cells
	}
	cells := build()
	c.tables[t][id] = cachedRow{rev: rev, cells: cells}
	c.builds++
	return cells
}

// prune drops rows that are no longer listed.
func (c *rowCache) prune(t rowTable, ids []string) {
	keep := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		keep[id] = struct{}{}
	}
	for id := range c.tables[t] {
		if _, ok := keep[id]; !ok {
			delete(c.tables[t], id)
		}
	}
}

func (c *rowCache) reset() {
	for t := range c.tables {
		c.tables[t] = map[string]cachedRow{}
	}
}

func deviceCells(d ota.WirelessDevice) []string {
	progress := "-"
	if p := d.Progress(); p >= 0 {
		progress = strconv.Itoa(p) + "%"
	}
	return []string{
		d.DeviceID,
		d.TransferStatus.String(),
		progress,
		orDash(d.FileName),
		ota.FormatSize(d.FileSizeKB),
		orDash(d.FirmwareVersion),
		d.TransferStartTimeUTC.Format(),
		d.TransferEndTimeUTC.Format(),
		orDash(d.TaskID),
	}
}

func taskCells(t ota.TransferTask) []string {
	return []string{
		t.TaskID,
		orDash(t.TaskStatus),
		orDash(t.FileName),
		ota.FormatSize(t.FileSizeKB),
		t.CreationTimeUTC.Format(),
		t.TaskStartTimeUTC.Format(),
		orDash(t.Origination),
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
