package demo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sidewalk-ota/otadash/internal/ota"
)

var (
	// ErrNotFound is returned for unknown devices or tasks.
	ErrNotFound = errors.New("not found")
	// ErrInvalid is returned for malformed requests.
	ErrInvalid = errors.New("invalid request")
)

const (
	taskInProgress = "IN_PROGRESS"
	taskCompleted  = "COMPLETED"
	taskCancelled  = "CANCELLED"
)

// Credentials gate Login. Empty credentials accept any username and password.
type Credentials struct {
	Username string
	Password string
}

func (c Credentials) match(username, password string) bool {
	if c.Username == "" && c.Password == "" {
		return true
	}
	return c.Username == username && c.Password == password
}

// Option configures a Backend.
type Option func(*Backend)

// WithDevices sets how many devices are seeded.
func WithDevices(n int) Option {
	return func(b *Backend) { b.seedDevices = n }
}

// WithStep sets how many percentage points a transfer advances per fetch.
func WithStep(pct int) Option {
	return func(b *Backend) {
		if pct > 0 {
			b.step = pct
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		if now != nil {
			b.now = now
		}
	}
}

// WithCredentials requires the given login.
func WithCredentials(c Credentials) Option {
	return func(b *Backend) { b.creds = c }
}

// Backend is an in-memory OTA backend. Every fetch of a transferring device
// advances it, so polling drives transfers to completion. Safe for
// concurrent use.
type Backend struct {
	mu          sync.Mutex
	devices     map[string]*ota.WirelessDevice
	order       []string
	tasks       []*ota.TransferTask
	files       map[string][]byte
	current     string
	step        int
	seedDevices int
	creds       Credentials
	now         func() time.Time

	sensors     map[string]*ota.SensorDevice
	sensorOrder []string
	sensorBase  map[string]float64
	readings    map[string][]ota.Measurement
	seedSensors int
}

var _ ota.API = (*Backend)(nil)

// NewBackend returns a seeded backend.
func NewBackend(opts ...Option) *Backend {
	b := &Backend{
		devices:     make(map[string]*ota.WirelessDevice),
		files:       make(map[string][]byte),
		step:        20,
		seedDevices: 24,
		now:         time.Now,
		sensors:     make(map[string]*ota.SensorDevice),
		sensorBase:  make(map[string]float64),
		readings:    make(map[string][]ota.Measurement),
		seedSensors: 4,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.seed()
	return b
}

func (b *Backend) seed() {
	now := b.now()
	for _, name := range []string{"sensor-fw-1.0.0.bin", "sensor-fw-1.1.0.bin", "gateway-2.3.s37"} {
		b.files[name] = make([]byte, 128<<10)
	}
	b.current = "current-firmware/sensor-fw-1.0.0.bin"
	for i := 0; i < b.seedDevices; i++ {
		id := fmt.Sprintf("wd-%04d", i+1)
		d := &ota.WirelessDevice{
			DeviceID:              id,
			TransferStatus:        ota.StatusNone,
			StatusUpdatedTimeUTC:  ota.NewTimestamp(now.Add(-time.Duration(i) * time.Hour)),
			FirmwareUpgradeStatus: "UP_TO_DATE",
			FirmwareVersion:       "1.0.0",
		}
		b.devices[id] = d
		b.order = append(b.order, id)
	}
	if b.seedDevices >= 3 {
		ids := b.order[:3]
		task := b.newTask("sensor-fw-1.0.0.bin", ids, now.Add(-24*time.Hour))
		for _, id := range ids {
			d := b.devices[id]
			d.TransferStatus = ota.StatusComplete
			d.TransferProgress = intPtr(100)
			d.TransferStartTimeUTC = task.TaskStartTimeUTC
			d.TransferEndTimeUTC = ota.NewTimestamp(now.Add(-23 * time.Hour))
			d.FileName = task.FileName
			d.FileSizeKB = task.FileSizeKB
			d.TaskID = task.TaskID
		}
		task.TaskStatus = taskCompleted
		task.TaskEndTimeUTC = ota.NewTimestamp(now.Add(-23 * time.Hour))
	}
	b.seedSensorDevices(now)
}

func intPtr(v int) *int { return &v }

func (b *Backend) newTask(file string, deviceIDs []string, start time.Time) *ota.TransferTask {
	task := &ota.TransferTask{
		TaskID:           uuid.NewString(),
		TaskStatus:       taskInProgress,
		CreationTimeUTC:  ota.NewTimestamp(b.now()),
		TaskStartTimeUTC: ota.NewTimestamp(start),
		FileName:         file,
		FileSizeKB:       float64(len(b.files[file])) / 1024,
		Origination:      "otadash",
		DeviceIDs:        append([]string(nil), deviceIDs...),
	}
	b.tasks = append(b.tasks, task)
	return task
}

// Login checks the configured credentials.
func (b *Backend) Login(_ context.Context, username, password string) error {
	if !b.creds.match(username, password) {
		return ota.ErrUnauthorized
	}
	return nil
}

// ListDevices returns every device in seed order.
func (b *Backend) ListDevices(context.Context) ([]ota.WirelessDevice, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]ota.WirelessDevice, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, copyDevice(b.devices[id]))
	}
	return out, nil
}

// ListTasks returns every task, newest first.
func (b *Backend) ListTasks(context.Context) ([]ota.TransferTask, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]ota.TransferTask, 0, len(b.tasks))
	for i := len(b.tasks) - 1; i >= 0; i-- {
		t := *b.tasks[i]
		t.DeviceIDs = append([]string(nil), t.DeviceIDs...)
		out = append(out, t)
	}
	return out, nil
}

// FetchDevice returns one device after advancing its transfer.
func (b *Backend) FetchDevice(_ context.Context, id string) (ota.WirelessDevice, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.devices[id]
	if !ok {
		return ota.WirelessDevice{}, fmt.Errorf("device %s: %w", id, ErrNotFound)
	}
	b.advance(d)
	return copyDevice(d), nil
}

// FetchDeviceStatus returns the status of one device after advancing it.
func (b *Backend) FetchDeviceStatus(_ context.Context, id string) (ota.DeviceStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.devices[id]
	if !ok {
		return ota.DeviceStatus{}, fmt.Errorf("device %s: %w", id, ErrNotFound)
	}
	b.advance(d)
	return ota.DeviceStatus{DeviceID: id, Status: d.TransferStatus}, nil
}

// ListFiles returns the uploaded files sorted by name.
func (b *Backend) ListFiles(context.Context) (ota.FileList, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.files))
	for name := range b.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return ota.FileList{FileNames: names, CurrentFirmwareFileName: b.current}, nil
}

// StartTransfer creates a task and moves its devices to PENDING.
func (b *Backend) StartTransfer(_ context.Context, req ota.StartTransferRequest) (ota.TransferTask, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if strings.TrimSpace(req.FileName) == "" || len(req.DeviceIDs) == 0 {
		return ota.TransferTask{}, fmt.Errorf("start transfer: %w", ErrInvalid)
	}
	if _, ok := b.files[req.FileName]; !ok {
		return ota.TransferTask{}, fmt.Errorf("file %s: %w", req.FileName, ErrNotFound)
	}
	for _, id := range req.DeviceIDs {
		if _, ok := b.devices[id]; !ok {
			return ota.TransferTask{}, fmt.Errorf("device %s: %w", id, ErrNotFound)
		}
	}
	start := b.now()
	if req.StartTimeUTC != nil && !req.StartTimeUTC.IsZero() {
		start = req.StartTimeUTC.Time
	}
	task := b.newTask(req.FileName, req.DeviceIDs, start)
	for _, id := range req.DeviceIDs {
		d := b.devices[id]
		d.TransferStatus = ota.StatusPending
		d.TransferProgress = intPtr(0)
		d.TransferStartTimeUTC = task.TaskStartTimeUTC
		d.TransferEndTimeUTC = ota.Timestamp{}
		d.StatusUpdatedTimeUTC = ota.NewTimestamp(b.now())
		d.FileName = task.FileName
		d.FileSizeKB = task.FileSizeKB
		d.TaskID = task.TaskID
		d.FirmwareUpgradeStatus = "IN_PROGRESS"
	}
	out := *task
	out.DeviceIDs = append([]string(nil), task.DeviceIDs...)
	return out, nil
}

// CancelTasks cancels the unfinished devices of each task.
func (b *Backend) CancelTasks(_ context.Context, taskIDs []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(taskIDs) == 0 {
		return fmt.Errorf("cancel: %w", ErrInvalid)
	}
	for _, id := range taskIDs {
		task := b.task(id)
		if task == nil {
			return fmt.Errorf("task %s: %w", id, ErrNotFound)
		}
		for _, deviceID := range task.DeviceIDs {
			d := b.devices[deviceID]
			if d == nil || d.TaskID != task.TaskID || !d.TransferStatus.Pollable() {
				continue
			}
			d.TransferStatus = ota.StatusCancelled
			d.TransferEndTimeUTC = ota.NewTimestamp(b.now())
			d.StatusUpdatedTimeUTC = d.TransferEndTimeUTC
			d.FirmwareUpgradeStatus = "CANCELLED"
		}
		if task.TaskStatus == taskInProgress {
			task.TaskStatus = taskCancelled
			task.TaskEndTimeUTC = ota.NewTimestamp(b.now())
		}
	}
	return nil
}

// UploadFile stores a firmware image.
func (b *Backend) UploadFile(_ context.Context, req ota.UploadRequest) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if strings.TrimSpace(req.FileName) == "" || strings.Contains(req.FileName, "/") {
		return fmt.Errorf("upload %q: %w", req.FileName, ErrInvalid)
	}
	b.files[req.FileName] = append([]byte(nil), req.Content...)
	return nil
}

// SetCurrentFirmware marks an uploaded file as current.
func (b *Backend) SetCurrentFirmware(_ context.Context, fileName string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.files[fileName]; !ok {
		return fmt.Errorf("file %s: %w", fileName, ErrNotFound)
	}
	b.current = "current-firmware/" + fileName
	return nil
}

func (b *Backend) task(id string) *ota.TransferTask {
	for _, t := range b.tasks {
		if t.TaskID == id {
			return t
		}
	}
	return nil
}

// advance moves a transfer one step. Callers hold b.mu.
func (b *Backend) advance(d *ota.WirelessDevice) {
	now := b.now()
	switch d.TransferStatus {
	case ota.StatusPending:
		if now.Before(d.TransferStartTimeUTC.Time) {
			return
		}
		d.TransferStatus = ota.StatusTransferring
	case ota.StatusTransferring:
		progress := d.Progress() + b.step
		if progress >= 100 {
			progress = 100
			d.TransferStatus = ota.StatusComplete
			d.TransferEndTimeUTC = ota.NewTimestamp(now)
			d.FirmwareUpgradeStatus = "UP_TO_DATE"
			d.FirmwareVersion = strings.TrimSuffix(d.FileName, filepath.Ext(d.FileName))
		}
		d.TransferProgress = intPtr(progress)
	default:
		return
	}
	d.StatusUpdatedTimeUTC = ota.NewTimestamp(now)
	if task := b.task(d.TaskID); task != nil {
		b.settle(task)
	}
}

func (b *Backend) settle(task *ota.TransferTask) {
	if task.TaskStatus != taskInProgress {
		return
	}
	for _, id := range task.DeviceIDs {
		if d := b.devices[id]; d != nil && d.TaskID == task.TaskID && d.TransferStatus.Pollable() {
			return
		}
	}
	task.TaskStatus = taskCompleted
	task.TaskEndTimeUTC = ota.NewTimestamp(b.now())
}

func copyDevice(d *ota.WirelessDevice) ota.WirelessDevice {
	out := *d
	if d.TransferProgress != nil {
		out.TransferProgress = intPtr(*d.TransferProgress)
	}
	return out
}
