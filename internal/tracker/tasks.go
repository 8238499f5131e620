package tracker

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"

	"github.com/sidewalk-ota/otadash/internal/ota"
	"github.com/sidewalk-ota/otadash/internal/poll"
)

// StatusUnknown buckets devices whose status has not been fetched yet.
const StatusUnknown ota.TransferStatus = "UNKNOWN"

// StatusFetcher loads the short status of one device.
type StatusFetcher interface {
	FetchDeviceStatus(ctx context.Context, id string) (ota.DeviceStatus, error)
}

// Summary aggregates the device statuses of one task.
type Summary struct {
	Total     int
	Completed int
	Failed    int
	Counts    map[ota.TransferStatus]int
	// Order lists statuses in the order they first appear among the devices.
	Order []ota.TransferStatus
}

// Aggregate counts statuses over deviceIDs. Counts always sum to
// len(deviceIDs); a device without a known status counts as UNKNOWN and is
// not completed.
func Aggregate(deviceIDs []string, latest map[string]ota.TransferStatus) Summary {
	s := Summary{Total: len(deviceIDs), Counts: make(map[ota.TransferStatus]int)}
	for _, id := range deviceIDs {
		status := latest[id]
		if status == "" {
			status = StatusUnknown
		}
		if _, seen := s.Counts[status]; !seen {
			s.Order = append(s.Order, status)
		}
		s.Counts[status]++
		if status != StatusUnknown && !status.Pollable() {
			s.Completed++
		}
	}
	return s
}

// Label renders the counts, e.g. "PENDING: 2 | TRANSFERRING: 1 | COMPLETE: 3".
func (s Summary) Label() string {
	parts := make([]string, 0, len(s.Order))
	for _, status := range s.Order {
		parts = append(parts, status.String()+": "+strconv.Itoa(s.Counts[status]))
	}
	return strings.Join(parts, " | ")
}

// Progress renders completed/total.
func (s Summary) Progress() string {
	return strconv.Itoa(s.Completed) + "/" + strconv.Itoa(s.Total)
}

// Ratio is the completed fraction, zero for an empty task.
func (s Summary) Ratio() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Completed) / float64(s.Total)
}

// Loading is true until at least one status is known.
func (s Summary) Loading() bool {
	return s.Total > 0 && s.Counts[StatusUnknown] == s.Total
}

// DeviceState is one device row of an expanded task.
type DeviceState struct {
	DeviceID string
	Status   ota.TransferStatus
	Failed   bool
}

type taskEntry struct {
	deviceIDs    []string
	latest       map[string]ota.TransferStatus
	failing      map[string]bool
	lastNotified string
}

// Tasks polls device statuses for the visible tasks and aggregates them.
type Tasks struct {
	reg      *poll.Registry[ota.DeviceStatus]
	notifier Notifier
	entries  map[string]*taskEntry
}

// NewTasks wires an aggregator for fetcher. ctx bounds every request.
func NewTasks(ctx context.Context, fetcher StatusFetcher, notifier Notifier, opts poll.Options) *Tasks {
	if opts.Name == "" {
		opts.Name = "tasks"
	}
	fetch := func(ctx context.Context, key string) (ota.DeviceStatus, error) {
		_, deviceID := splitKey(key)
		return fetcher.FetchDeviceStatus(ctx, deviceID)
	}
	return &Tasks{
		reg:      poll.New[ota.DeviceStatus](ctx, fetch, keepPollingStatus, opts),
		notifier: notifier,
		entries:  make(map[string]*taskEntry),
	}
}

func keepPollingStatus(s ota.DeviceStatus) bool {
	return s.Status.Pollable()
}

// Track polls every device of the given tasks and stops polling devices of
// tasks no longer in view. Finished or failed chains keep their last status.
func (t *Tasks) Track(tasks []ota.TransferTask) tea.Cmd {
	var keys []string
	for _, task := range tasks {
		entry, ok := t.entries[task.TaskID]
		if !ok {
			entry = &taskEntry{
				latest:  make(map[string]ota.TransferStatus),
				failing: make(map[string]bool),
			}
			t.entries[task.TaskID] = entry
		}
		entry.deviceIDs = append(entry.deviceIDs[:0], task.DeviceIDs...)
		seen := make(map[string]struct{}, len(task.DeviceIDs))
		for _, id := range task.DeviceIDs {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			keys = append(keys, chainKey(task.TaskID, id))
		}
	}
	return t.reg.Retain(keys)
}

// Prune forgets tasks that are no longer listed.
func (t *Tasks) Prune(taskIDs []string) {
	keep := make(map[string]struct{}, len(taskIDs))
	for _, id := range taskIDs {
		keep[id] = struct{}{}
	}
	for id := range t.entries {
		if _, ok := keep[id]; !ok {
			delete(t.entries, id)
		}
	}
}

// Update records status results. The returned error is the fetch failure.
func (t *Tasks) Update(msg tea.Msg) (tea.Cmd, error) {
	res, cmd, ok := t.reg.Update(msg)
	if !ok {
		return cmd, nil
	}
	taskID, deviceID := splitKey(res.Key)
	entry := t.entries[taskID]
	if res.Err != nil {
		log.Warn().Err(res.Err).Str("task_id", taskID).Str("device_id", deviceID).Msg("device status poll failed")
		if entry != nil {
			entry.failing[deviceID] = true
			t.reportFailures(taskID, entry)
		}
		return nil, res.Err
	}
	if entry == nil {
		return cmd, nil
	}
	status := res.Value.Status
	if status == "" {
		status = ota.StatusNone
	}
	entry.latest[deviceID] = status
	if entry.failing[deviceID] {
		delete(entry.failing, deviceID)
		if len(entry.failing) == 0 {
			entry.lastNotified = ""
		}
	}
	return cmd, nil
}

// reportFailures notifies once per distinct set of failing devices.
func (t *Tasks) reportFailures(taskID string, entry *taskEntry) {
	ids := make([]string, 0, len(entry.failing))
	for id := range entry.failing {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	signature := strings.Join(ids, ",")
	if signature == entry.lastNotified {
		return
	}
	entry.lastNotified = signature
	if t.notifier == nil {
		return
	}
	text := "Error while getting device status"
	if len(ids) > 1 {
		text = fmt.Sprintf("%s (%d devices of task %s)", text, len(ids), taskID)
	} else {
		text = fmt.Sprintf("%s (device %s of task %s)", text, ids[0], taskID)
	}
	t.notifier.ErrorOnce("task-status/"+taskID, text)
}

// Summary aggregates the last known statuses of a tracked task.
func (t *Tasks) Summary(taskID string) (Summary, bool) {
	entry, ok := t.entries[taskID]
	if !ok {
		return Summary{}, false
	}
	s := Aggregate(entry.deviceIDs, entry.latest)
	s.Failed = len(entry.failing)
	return s, true
}

// Devices lists a tracked task's devices in task order.
func (t *Tasks) Devices(taskID string) []DeviceState {
	entry, ok := t.entries[taskID]
	if !ok {
		return nil
	}
	out := make([]DeviceState, 0, len(entry.deviceIDs))
	for _, id := range entry.deviceIDs {
		status := entry.latest[id]
		if status == "" {
			status = StatusUnknown
		}
		out = append(out, DeviceState{DeviceID: id, Status: status, Failed: entry.failing[id]})
	}
	return out
}

// Active is the number of polling task/device chains.
func (t *Tasks) Active() int {
	return t.reg.Len()
}

// Stop tears down every chain and forgets every task.
func (t *Tasks) Stop() {
	t.reg.StopAll()
	t.entries = make(map[string]*taskEntry)
}

const keySep = "\x1f"

func chainKey(taskID, deviceID string) string {
	return taskID + keySep + deviceID
}

func splitKey(key string) (taskID, deviceID string) {
	taskID, deviceID, _ = strings.Cut(key, keySep)
	return taskID, deviceID
}
