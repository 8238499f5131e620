package ota

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TransferStatus is the lifecycle state of a firmware transfer for one device.
type TransferStatus string

const (
	StatusPending      TransferStatus = "PENDING"
	StatusTransferring TransferStatus = "TRANSFERRING"
	StatusCancelled    TransferStatus = "CANCELLED"
	StatusFailed       TransferStatus = "FAILED"
	StatusComplete     TransferStatus = "COMPLETE"
	StatusCompleted    TransferStatus = "COMPLETED"
	StatusNone         TransferStatus = "NONE"
)

// ParseStatus normalizes a backend status string.
func ParseStatus(raw string) TransferStatus {
	s := strings.ToUpper(strings.TrimSpace(raw))
	switch s {
	case "CANCELED":
		return StatusCancelled
	case "":
		return ""
	}
	return TransferStatus(s)
}

// Pollable reports whether a transfer in this state may still change.
func (s TransferStatus) Pollable() bool {
	return s == StatusPending || s == StatusTransferring
}

// Terminal reports whether the transfer has finished one way or another.
func (s TransferStatus) Terminal() bool {
	switch s {
	case StatusComplete, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Succeeded is true for both spellings of a completed transfer.
func (s TransferStatus) Succeeded() bool {
	return s == StatusComplete || s == StatusCompleted
}

func (s TransferStatus) String() string { return string(s) }

// UnmarshalJSON normalizes case and spelling.
func (s *TransferStatus) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("transfer status: %w", err)
	}
	*s = ParseStatus(raw)
	return nil
}

// Timestamp is a UTC instant. The backend emits epoch seconds, epoch
// milliseconds or RFC3339 strings depending on the endpoint.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t in UTC.
func NewTimestamp(t time.Time) Timestamp {
	if t.IsZero() {
		return Timestamp{}
	}
	return Timestamp{Time: t.UTC()}
}

// UnmarshalJSON accepts numbers, numeric strings and RFC3339 strings.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	if trimmed[0] == '"' {
		var raw string
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return fmt.Errorf("timestamp: %w", err)
		}
		parsed, err := parseTimestamp(raw)
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	}
	parsed, err := parseTimestamp(string(trimmed))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalJSON emits epoch milliseconds, or null when unset.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(t.UnixMilli(), 10)), nil
}

// Format renders the timestamp for tables, "-" when unset.
func (t Timestamp) Format() string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("01/02/2006 15:04:05")
}

func parseTimestamp(raw string) (Timestamp, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Timestamp{}, nil
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		if n > 1e12 {
			return NewTimestamp(time.UnixMilli(int64(n))), nil
		}
		sec := int64(n)
		nsec := int64((n - float64(sec)) * 1e9)
		return NewTimestamp(time.Unix(sec, nsec)), nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return NewTimestamp(ts), nil
		}
	}
	return Timestamp{}, fmt.Errorf("timestamp: unrecognized value %q", raw)
}

// WirelessDevice is one row of the devices table.
type WirelessDevice struct {
	DeviceID              string         `json:"deviceId"`
	TransferStatus        TransferStatus `json:"transferStatus"`
	TransferProgress      *int           `json:"transferProgress,omitempty"`
	StatusUpdatedTimeUTC  Timestamp      `json:"statusUpdatedTimeUTC"`
	TransferStartTimeUTC  Timestamp      `json:"transferStartTimeUTC"`
	TransferEndTimeUTC    Timestamp      `json:"transferEndTimeUTC"`
	FileName              string         `json:"fileName"`
	FileSizeKB            float64        `json:"fileSizeKB"`
	FirmwareUpgradeStatus string         `json:"firmwareUpgradeStatus"`
	FirmwareVersion       string         `json:"firmwareVersion"`
	TaskID                string         `json:"taskId,omitempty"`
}

// RowID implements state.Row.
func (d WirelessDevice) RowID() string { return d.DeviceID }

// Progress returns the transfer percentage, or -1 when unknown.
func (d WirelessDevice) Progress() int {
	if d.TransferProgress == nil {
		return -1
	}
	return *d.TransferProgress
}

// Duration is the elapsed transfer time, running until now when unfinished.
func (d WirelessDevice) Duration(now time.Time) time.Duration {
	if d.TransferStartTimeUTC.IsZero() {
		return 0
	}
	end := now
	if !d.TransferEndTimeUTC.IsZero() {
		end = d.TransferEndTimeUTC.Time
	}
	if end.Before(d.TransferStartTimeUTC.Time) {
		return 0
	}
	return end.Sub(d.TransferStartTimeUTC.Time)
}

// TransferTask is one row of the tasks table.
type TransferTask struct {
	TaskID           string    `json:"taskId"`
	TaskStatus       string    `json:"taskStatus"`
	CreationTimeUTC  Timestamp `json:"creationTimeUTC"`
	TaskStartTimeUTC Timestamp `json:"taskStartTimeUTC"`
	TaskEndTimeUTC   Timestamp `json:"taskEndTimeUTC"`
	FileName         string    `json:"fileName"`
	FileSizeKB       float64   `json:"fileSizeKB"`
	Origination      string    `json:"origination"`
	DeviceIDs        []string  `json:"deviceIds"`
}

// RowID implements state.Row.
func (t TransferTask) RowID() string { return t.TaskID }

// DeviceStatus is the light per-device snapshot used while aggregating tasks.
type DeviceStatus struct {
	DeviceID string         `json:"deviceId"`
	Status   TransferStatus `json:"status"`
}

// UnmarshalJSON accepts {device_id, status} as well as a full device record.
func (s *DeviceStatus) UnmarshalJSON(data []byte) error {
	var raw struct {
		DeviceID       string         `json:"deviceId"`
		Status         TransferStatus `json:"status"`
		TransferStatus TransferStatus `json:"transferStatus"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.DeviceID = raw.DeviceID
	s.Status = raw.Status
	if s.Status == "" {
		s.Status = raw.TransferStatus
	}
	return nil
}

// currentFirmwareFolder prefixes the current firmware object key.
const currentFirmwareFolder = "current-firmware/"

// FileList is the uploaded firmware catalogue.
type FileList struct {
	FileNames               []string `json:"fileNames"`
	CurrentFirmwareFileName string   `json:"currentFirmwareFileName"`
}

// CurrentFirmware returns the current firmware name without its folder.
func (f FileList) CurrentFirmware() string {
	name := f.CurrentFirmwareFileName
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		return name[idx+1:]
	}
	return strings.TrimPrefix(name, currentFirmwareFolder)
}

// Contains reports whether name is among the uploaded files.
func (f FileList) Contains(name string) bool {
	for _, n := range f.FileNames {
		if n == name {
			return true
		}
	}
	return false
}

// StartTransferRequest is the payload of POST /otaStart.
type StartTransferRequest struct {
	FileName     string     `json:"fileName"`
	StartTimeUTC *Timestamp `json:"startTimeUTC,omitempty"`
	DeviceIDs    []string   `json:"deviceIds"`
}

// UploadRequest carries a firmware image; Content is base64 encoded on the wire.
type UploadRequest struct {
	FileName string
	Content  []byte
}

type devicesResponse struct {
	WirelessDevices []WirelessDevice `json:"wirelessDevices"`
}

type tasksResponse struct {
	TransferTasks []TransferTask `json:"transferTasks"`
}

type uploadPayload struct {
	FileName string `json:"filename"`
	File     string `json:"file"`
}

type cancelPayload struct {
	TaskIDs []string `json:"taskIds"`
}

type firmwarePayload struct {
	FileName string `json:"filename"`
}

type loginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// FormatSize renders a size in KB the way operators read it.
func FormatSize(kb float64) string {
	switch {
	case kb <= 0:
		return "-"
	case kb < 1024:
		return strconv.FormatFloat(kb, 'f', 2, 64) + " KB"
	case kb < 1024*1024:
		return strconv.FormatFloat(kb/1024, 'f', 2, 64) + " MB"
	default:
		return strconv.FormatFloat(kb/1024/1024, 'f', 2, 64) + " GB"
	}
}
