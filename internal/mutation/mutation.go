// Package mutation issues the backend writes triggered from the dashboard:
// firmware uploads, transfer starts, cancellations and the current firmware.
package mutation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"

	"github.com/sidewalk-ota/otadash/internal/ota"
)

// Kind names a mutation.
type Kind string

const (
	KindUpload        Kind = "upload"
	KindStartTransfer Kind = "start_transfer"
	KindCancel        Kind = "cancel"
	KindSetFirmware   Kind = "set_firmware"
)

var (
	// ErrPrecondition is returned when a transfer draft lacks a file or devices.
	ErrPrecondition = errors.New("precondition not met")
	// ErrFileTooLarge rejects uploads above the size ceiling.
	ErrFileTooLarge = errors.New("file too large")
	// ErrFileType rejects uploads outside the extension allow-list.
	ErrFileType = errors.New("unsupported file type")
)

// Backend is the write side of the OTA API.
type Backend interface {
	StartTransfer(ctx context.Context, req ota.StartTransferRequest) (ota.TransferTask, error)
	CancelTasks(ctx context.Context, taskIDs []string) error
	UploadFile(ctx context.Context, req ota.UploadRequest) error
	SetCurrentFirmware(ctx context.Context, fileName string) error
}

// Notifier receives user-facing outcomes.
type Notifier interface {
	Success(text string)
	Error(text string)
}

// Recorder counts mutation outcomes.
type Recorder interface {
	Mutation(kind string, err error)
}

// Policy bounds what may be uploaded.
type Policy struct {
	MaxBytes   int64
	Extensions []string
}

// DefaultPolicy accepts firmware images up to 1 MiB.
func DefaultPolicy() Policy {
	return Policy{
		MaxBytes:   1 << 20,
		Extensions: []string{".bin", ".hex", ".nvm3", ".s37"},
	}
}

// Allowed reports whether name has an accepted extension.
func (p Policy) Allowed(name string) bool {
	if len(p.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range p.Extensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

func (p Policy) sizeLabel() string {
	if p.MaxBytes%(1<<20) == 0 {
		return fmt.Sprintf("%dMB", p.MaxBytes>>20)
	}
	if p.MaxBytes%(1<<10) == 0 {
		return fmt.Sprintf("%dKB", p.MaxBytes>>10)
	}
	return fmt.Sprintf("%d bytes", p.MaxBytes)
}

// Draft is the pending transfer being assembled in the devices view.
type Draft struct {
	FileName  string
	StartTime time.Time
	DeviceIDs []string
}

// Validate reports why the draft cannot start, if it cannot.
func (d Draft) Validate() error {
	if strings.TrimSpace(d.FileName) == "" {
		return fmt.Errorf("%w: no firmware file selected", ErrPrecondition)
	}
	if len(d.DeviceIDs) == 0 {
		return fmt.Errorf("%w: no device selected", ErrPrecondition)
	}
	return nil
}

// CanStart reports whether the draft has a file and at least one device.
func (d Draft) CanStart() bool {
	return d.Validate() == nil
}

// Done is delivered to the update loop when a mutation finishes.
type Done struct {
	Kind     Kind
	Err      error
	FileName string
	TaskIDs  []string
	Task     ota.TransferTask
}

// Effects tells the caller what to refresh after a mutation.
type Effects struct {
	RefetchDevices     bool
	RefetchTasks       bool
	RefetchFiles       bool
	ResetDraft         bool
	ClearTaskSelection bool
	// SelectFile is the uploaded file to preselect once the file list has it.
	SelectFile string
}

// Coordinator runs one backend write per operation and reports the outcome.
type Coordinator struct {
	ctx      context.Context
	backend  Backend
	notifier Notifier
	recorder Recorder
	policy   Policy
}

// New returns a Coordinator. recorder may be nil.
func New(ctx context.Context, backend Backend, notifier Notifier, recorder Recorder, policy Policy) *Coordinator {
	if ctx == nil {
		ctx = context.Background()
	}
	if policy.MaxBytes <= 0 {
		policy.MaxBytes = DefaultPolicy().MaxBytes
	}
	return &Coordinator{ctx: ctx, backend: backend, notifier: notifier, recorder: recorder, policy: policy}
}

// Policy returns the upload policy.
func (c *Coordinator) Policy() Policy {
	return c.policy
}

// CheckUpload validates a local file before anything is sent.
func (c *Coordinator) CheckUpload(path string) error {
	if !c.policy.Allowed(path) {
		return fmt.Errorf("%w: %s", ErrFileType, filepath.Ext(path))
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat upload: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrFileType, path)
	}
	if info.Size() > c.policy.MaxBytes {
		return fmt.Errorf("%w: %d bytes", ErrFileTooLarge, info.Size())
	}
	return nil
}

// Upload validates path and returns the command that uploads it. A rejected
// file is reported to the user and yields a nil command.
func (c *Coordinator) Upload(path string) tea.Cmd {
	if err := c.CheckUpload(path); err != nil {
		log.Info().Err(err).Str("path", path).Msg("upload rejected")
		switch {
		case errors.Is(err, ErrFileTooLarge):
			c.notifier.Error("File's size should be less than " + c.policy.sizeLabel())
		case errors.Is(err, ErrFileType):
			c.notifier.Error("Only " + strings.Join(c.policy.Extensions, ", ") + " files can be uploaded")
		default:
			c.notifier.Error("Error while trying to upload a file")
		}
		return nil
	}
	ctx, backend, limit := c.ctx, c.backend, c.policy.MaxBytes
	name := filepath.Base(path)
	return func() tea.Msg {
		content, err := readLimited(path, limit)
		if err != nil {
			return Done{Kind: KindUpload, FileName: name, Err: err}
		}
		err = backend.UploadFile(ctx, ota.UploadRequest{FileName: name, Content: content})
		return Done{Kind: KindUpload, FileName: name, Err: err}
	}
}

// readLimited reads at most limit bytes of path. The file may have grown
// since CheckUpload looked at it.
func readLimited(path string, limit int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	defer func() { _ = f.Close() }()
	content, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(content)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrFileTooLarge, limit)
	}
	return content, nil
}

// StartTransfer returns the command that creates a transfer task, or nil
// when the draft is incomplete.
func (c *Coordinator) StartTransfer(d Draft) tea.Cmd {
	if !d.CanStart() {
		return nil
	}
	req := ota.StartTransferRequest{
		FileName:  d.FileName,
		DeviceIDs: append([]string(nil), d.DeviceIDs...),
	}
	if !d.StartTime.IsZero() {
		ts := ota.NewTimestamp(d.StartTime)
		req.StartTimeUTC = &ts
	}
	ctx, backend := c.ctx, c.backend
	return func() tea.Msg {
		task, err := backend.StartTransfer(ctx, req)
		return Done{Kind: KindStartTransfer, FileName: req.FileName, Task: task, Err: err}
	}
}

// Cancel returns the command that cancels the given tasks, or nil when none
// are given.
func (c *Coordinator) Cancel(taskIDs []string) tea.Cmd {
	if len(taskIDs) == 0 {
		return nil
	}
	ids := append([]string(nil), taskIDs...)
	ctx, backend := c.ctx, c.backend
	return func() tea.Msg {
		return Done{Kind: KindCancel, TaskIDs: ids, Err: backend.CancelTasks(ctx, ids)}
	}
}

// SetFirmware returns the command that marks name as the current firmware.
func (c *Coordinator) SetFirmware(name string) tea.Cmd {
	if strings.TrimSpace(name) == "" {
		return nil
	}
	ctx, backend := c.ctx, c.backend
	return func() tea.Msg {
		return Done{Kind: KindSetFirmware, FileName: name, Err: backend.SetCurrentFirmware(ctx, name)}
	}
}

var messages = map[Kind][2]string{
	KindUpload:        {"File Uploaded", "Error while trying to upload a file"},
	KindStartTransfer: {"Task transferred", "Error while trying to start a transfer task"},
	KindCancel:        {"Tasks cancelled", "Error while trying to cancel a transfer task"},
	KindSetFirmware:   {"Firmware has been set", "Error while trying to set current firmware"},
}

// Resolve reports the outcome of d and returns what the caller must refresh.
// Failures return no effects: nothing was applied ahead of the backend.
func (c *Coordinator) Resolve(d Done) Effects {
	if c.recorder != nil {
		c.recorder.Mutation(string(d.Kind), d.Err)
	}
	text := messages[d.Kind]
	if d.Err != nil {
		log.Error().Err(d.Err).Str("kind", string(d.Kind)).Str("file", d.FileName).Strs("task_ids", d.TaskIDs).Msg("mutation failed")
		if errors.Is(d.Err, ErrFileTooLarge) {
			c.notifier.Error("File's size should be less than " + c.policy.sizeLabel())
		} else {
			c.notifier.Error(text[1])
		}
		return Effects{}
	}
	log.Info().Str("kind", string(d.Kind)).Str("file", d.FileName).Strs("task_ids", d.TaskIDs).Str("task_id", d.Task.TaskID).Msg("mutation succeeded")
	c.notifier.Success(text[0])

	switch d.Kind {
	case KindUpload:
		return Effects{RefetchFiles: true, SelectFile: d.FileName}
	case KindStartTransfer:
		return Effects{RefetchDevices: true, RefetchTasks: true, ResetDraft: true}
	case KindCancel:
		return Effects{RefetchTasks: true, RefetchDevices: true, ClearTaskSelection: true}
	case KindSetFirmware:
		return Effects{RefetchFiles: true}
	}
	return Effects{}
}
