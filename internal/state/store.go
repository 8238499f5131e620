package state

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/sidewalk-ota/otadash/internal/ota"
)

// Row is anything a collection can index by id.
type Row interface {
	RowID() string
}

// Collection is an ordered list of rows indexed by id. Rows change in two
// ways only: Replace on a list (re)fetch, and Apply for a single row.
type Collection[T Row] struct {
	mu      sync.RWMutex
	rows    []T
	index   map[string]int
	revs    map[string]uint64
	seq     uint64
	loaded  bool
	updated time.Time
	lastErr error
	fails   int
}

// Devices is the devices table.
type Devices = Collection[ota.WirelessDevice]

// Tasks is the tasks table.
type Tasks = Collection[ota.TransferTask]

// Sensors is the sensor monitoring device list.
type Sensors = Collection[ota.SensorDevice]

// Snapshot describes the collection freshness for the UI.
type Snapshot struct {
	Len                 int
	Loaded              bool
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int
}

// IsOffline returns true when the list endpoint failed repeatedly.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Replace swaps in a freshly fetched list. Every row gets a new revision.
func (c *Collection[T]) Replace(rows []T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rows = cloneRows(rows)
	c.index = make(map[string]int, len(rows))
	c.revs = make(map[string]uint64, len(rows))
	for i, row := range c.rows {
		id := row.RowID()
		if _, dup := c.index[id]; !dup {
			c.index[id] = i
		}
		c.seq++
		c.revs[id] = c.seq
	}
	c.loaded = true
	c.updated = time.Now()
	c.lastErr = nil
	c.fails = 0
}

// Fail records a failed list fetch. Existing rows are kept.
func (c *Collection[T]) Fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = err
	c.updated = time.Now()
	c.fails++
}

// Clear drops every row, as after logging out.
func (c *Collection[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = nil
	c.index = nil
	c.revs = nil
	c.loaded = false
	c.lastErr = nil
	c.fails = 0
}

// Apply replaces the row with the given id by fn's result. It reports
// whether the row exists and changed; an unchanged row keeps its revision.
func (c *Collection[T]) Apply(id string, fn func(T) T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[id]
	if !ok {
		return false
	}
	next := fn(c.rows[i])
	if reflect.DeepEqual(next, c.rows[i]) {
		return false
	}
	c.rows[i] = next
	c.seq++
	c.revs[id] = c.seq
	return true
}

// Get returns the row with the given id.
func (c *Collection[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.index[id]
	if !ok {
		var zero T
		return zero, false
	}
	return c.rows[i], true
}

// At returns the row at position i.
func (c *Collection[T]) At(i int) T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rows[i]
}

// Rows returns a copy of every row in order.
func (c *Collection[T]) Rows() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneRows(c.rows)
}

// Slice returns a copy of rows[start:end].
func (c *Collection[T]) Slice(start, end int) []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if start < 0 {
		start = 0
	}
	if end > len(c.rows) {
		end = len(c.rows)
	}
	if start >= end {
		return nil
	}
	return cloneRows(c.rows[start:end])
}

// IDs returns row ids in order, duplicates included.
func (c *Collection[T]) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, len(c.rows))
	for i, row := range c.rows {
		ids[i] = row.RowID()
	}
	return ids
}

// Len is the number of rows.
func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rows)
}

// Revision changes whenever the row with id changes. Zero means unknown.
func (c *Collection[T]) Revision(id string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.revs[id]
}

// Snapshot returns freshness information.
func (c *Collection[T]) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := Snapshot{
		Len:                 len(c.rows),
		Loaded:              c.loaded,
		LastUpdated:         c.updated,
		ConsecutiveFailures: c.fails,
	}
	if c.lastErr != nil {
		snap.LastError = fmt.Errorf("%w", c.lastErr)
	}
	return snap
}

// MergeDevice overwrites the stored device with a freshly fetched record.
// The row keeps its id even when the payload omits it.
func MergeDevice(devices *Devices, id string, fetched ota.WirelessDevice) bool {
	if fetched.DeviceID != "" {
		id = fetched.DeviceID
	}
	return devices.Apply(id, func(ota.WirelessDevice) ota.WirelessDevice {
		fetched.DeviceID = id
		return fetched
	})
}

// PollableDeviceIDs lists devices whose transfer is still PENDING or TRANSFERRING.
func PollableDeviceIDs(devices *Devices) []string {
	devices.mu.RLock()
	defer devices.mu.RUnlock()
	var ids []string
	seen := make(map[string]struct{})
	for _, d := range devices.rows {
		if !d.TransferStatus.Pollable() {
			continue
		}
		if _, dup := seen[d.DeviceID]; dup {
			continue
		}
		seen[d.DeviceID] = struct{}{}
		ids = append(ids, d.DeviceID)
	}
	return ids
}

// SensorIDs lists the devices that carry a sensor, in list order.
func SensorIDs(sensors *Sensors) []string {
	sensors.mu.RLock()
	defer sensors.mu.RUnlock()
	var ids []string
	for _, d := range sensors.rows {
		if d.Sensor {
			ids = append(ids, d.WirelessDeviceID)
		}
	}
	return ids
}

func cloneRows[T any](rows []T) []T {
	if len(rows) == 0 {
		return nil
	}
	dup := make([]T, len(rows))
	copy(dup, rows)
	return dup
}
