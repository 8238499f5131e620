package ota

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// API is the backend surface the dashboard consumes. It is implemented by
// *Client and by the in-memory demo backend.
type API interface {
	Login(ctx context.Context, username, password string) error
	ListDevices(ctx context.Context) ([]WirelessDevice, error)
	ListTasks(ctx context.Context) ([]TransferTask, error)
	FetchDevice(ctx context.Context, id string) (WirelessDevice, error)
	FetchDeviceStatus(ctx context.Context, id string) (DeviceStatus, error)
	ListFiles(ctx context.Context) (FileList, error)
	StartTransfer(ctx context.Context, req StartTransferRequest) (TransferTask, error)
	CancelTasks(ctx context.Context, taskIDs []string) error
	UploadFile(ctx context.Context, req UploadRequest) error
	SetCurrentFirmware(ctx context.Context, fileName string) error
	ListSensorDevices(ctx context.Context) ([]SensorDevice, error)
	FetchMeasurements(ctx context.Context, id string) ([]Measurement, error)
}

// Ensure Client implements API at compile time.
var _ API = (*Client)(nil)

// ErrUnauthorized is returned when the backend rejects the session token.
var ErrUnauthorized = errors.New("unauthorized")

// StatusError reports a non-2xx response.
type StatusError struct {
	Path string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api %s returned status %d", e.Path, e.Code)
}

// Unwrap maps 401 and 403 to ErrUnauthorized.
func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden {
		return ErrUnauthorized
	}
	return nil
}

// Client talks to the OTA backend over HTTP.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	session   *Session
}

const (
	defaultAPIURL      = "http://127.0.0.1:8080"
	defaultUserAgent   = "otadash/0.1"
	defaultTimeout     = 10 * time.Second
	maxResponseBytes   = 16 << 20
	deviceTransfersAPI = "/ota/deviceTransfers"
	sensorDevicesAPI   = "/devices"
	measurementsAPI    = "/measurements"
)

// NewClient builds a Client for apiURL. The URL may carry a path prefix that
// every endpoint is resolved under.
func NewClient(apiURL string, session *Session, timeout time.Duration) (*Client, error) {
	base, err := parseBaseURL(apiURL)
	if err != nil {
		return nil, err
	}
	if session == nil {
		session, _ = NewSession(nil)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:   base,
		http:      &http.Client{Timeout: timeout},
		userAgent: defaultUserAgent,
		session:   session,
	}, nil
}

// Session returns the session the client authenticates with.
func (c *Client) Session() *Session {
	return c.session
}

// Login exchanges credentials for a token and stores it in the session.
func (c *Client) Login(ctx context.Context, username, password string) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/login", nil, loginPayload{Username: username, Password: password}, &raw); err != nil {
		return err
	}
	token, err := decodeToken(raw)
	if err != nil {
		return err
	}
	return c.session.SetToken(username, token)
}

// ListDevices retrieves every device with its latest transfer state.
func (c *Client) ListDevices(ctx context.Context) ([]WirelessDevice, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var payload devicesResponse
	if err := c.do(ctx, http.MethodGet, deviceTransfersAPI, nil, nil, &payload); err != nil {
		return nil, err
	}
	return payload.WirelessDevices, nil
}

// ListTasks retrieves every transfer task.
func (c *Client) ListTasks(ctx context.Context) ([]TransferTask, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var payload tasksResponse
	if err := c.do(ctx, http.MethodGet, "/ota/transferTasks", nil, nil, &payload); err != nil {
		return nil, err
	}
	return payload.TransferTasks, nil
}

// FetchDevice retrieves one device record.
func (c *Client) FetchDevice(ctx context.Context, id string) (WirelessDevice, error) {
	if c == nil {
		return WirelessDevice{}, fmt.Errorf("client is nil")
	}
	if strings.TrimSpace(id) == "" {
		return WirelessDevice{}, fmt.Errorf("device id required")
	}
	var payload WirelessDevice
	if err := c.do(ctx, http.MethodGet, deviceTransfersAPI+"/"+url.PathEscape(id), nil, nil, &payload); err != nil {
		return WirelessDevice{}, err
	}
	return payload, nil
}

// FetchDeviceStatus retrieves only the transfer status of one device.
func (c *Client) FetchDeviceStatus(ctx context.Context, id string) (DeviceStatus, error) {
	if c == nil {
		return DeviceStatus{}, fmt.Errorf("client is nil")
	}
	if strings.TrimSpace(id) == "" {
		return DeviceStatus{}, fmt.Errorf("device id required")
	}
	query := url.Values{"view": []string{"status"}}
	var payload DeviceStatus
	if err := c.do(ctx, http.MethodGet, deviceTransfersAPI+"/"+url.PathEscape(id), query, nil, &payload); err != nil {
		return DeviceStatus{}, err
	}
	if payload.DeviceID == "" {
		payload.DeviceID = id
	}
	return payload, nil
}

// ListFiles retrieves uploaded firmware files and the current firmware.
func (c *Client) ListFiles(ctx context.Context) (FileList, error) {
	if c == nil {
		return FileList{}, fmt.Errorf("client is nil")
	}
	var payload FileList
	if err := c.do(ctx, http.MethodGet, "/otaGetS3", nil, nil, &payload); err != nil {
		return FileList{}, err
	}
	return payload, nil
}

// StartTransfer creates a transfer task for the given devices.
func (c *Client) StartTransfer(ctx context.Context, req StartTransferRequest) (TransferTask, error) {
	if c == nil {
		return TransferTask{}, fmt.Errorf("client is nil")
	}
	var payload TransferTask
	if err := c.do(ctx, http.MethodPost, "/otaStart", nil, req, &payload); err != nil {
		return TransferTask{}, err
	}
	return payload, nil
}

// CancelTasks cancels the given transfer tasks.
func (c *Client) CancelTasks(ctx context.Context, taskIDs []string) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	return c.do(ctx, http.MethodPost, "/otaCancel", nil, cancelPayload{TaskIDs: taskIDs}, nil)
}

// UploadFile uploads a firmware image.
func (c *Client) UploadFile(ctx context.Context, req UploadRequest) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	body := uploadPayload{
		FileName: req.FileName,
		File:     base64.StdEncoding.EncodeToString(req.Content),
	}
	return c.do(ctx, http.MethodPost, "/otaUpload", nil, body, nil)
}

// SetCurrentFirmware marks an uploaded file as the current firmware.
func (c *Client) SetCurrentFirmware(ctx context.Context, fileName string) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	return c.do(ctx, http.MethodPost, "/otaSetCurrentFirmware", nil, firmwarePayload{FileName: fileName}, nil)
}

// ListSensorDevices retrieves the devices of the sensor monitoring API.
func (c *Client) ListSensorDevices(ctx context.Context) ([]SensorDevice, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var payload []SensorDevice
	if err := c.do(ctx, http.MethodGet, sensorDevicesAPI, nil, nil, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// FetchMeasurements retrieves the readings of one sensor device, oldest first.
func (c *Client) FetchMeasurements(ctx context.Context, id string) ([]Measurement, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("device id required")
	}
	var payload []Measurement
	if err := c.do(ctx, http.MethodGet, measurementsAPI+"/"+url.PathEscape(id), nil, nil, &payload); err != nil {
		return nil, err
	}
	SortMeasurements(payload)
	return payload, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, dest any) error {
	reqURL := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		reqURL.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth := c.session.AuthorizationHeader(); auth != "" {
		req.Header.Set("Authorization", auth)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		statusErr := &StatusError{Path: path, Code: resp.StatusCode}
		if errors.Is(statusErr, ErrUnauthorized) && path != "/login" {
			if err := c.session.Invalidate(); err != nil {
				log.Warn().Err(err).Str("path", path).Msg("persist invalidated session failed")
			}
		}
		return statusErr
	}
	if dest == nil {
		return nil
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := decodeFlexible(data, dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeFlexible decodes data into dest, accepting snake_case keys for
// camelCase fields. Go's decoder already matches keys case-insensitively,
// so dropping underscores is enough.
func decodeFlexible(data []byte, dest any) error {
	if raw, ok := dest.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], data...)
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return err
	}
	normalized, err := json.Marshal(canonicalKeys(generic))
	if err != nil {
		return err
	}
	return json.Unmarshal(normalized, dest)
}

func canonicalKeys(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[strings.ReplaceAll(k, "_", "")] = canonicalKeys(inner)
		}
		return out
	case []any:
		for i := range val {
			val[i] = canonicalKeys(val[i])
		}
		return val
	default:
		return v
	}
}

func decodeToken(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", fmt.Errorf("login: empty token")
	}
	var token string
	switch trimmed[0] {
	case '"':
		if err := json.Unmarshal(trimmed, &token); err != nil {
			return "", fmt.Errorf("login: %w", err)
		}
	case '{':
		var obj struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return "", fmt.Errorf("login: %w", err)
		}
		token = obj.Token
	default:
		token = string(trimmed)
	}
	if strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("login: empty token")
	}
	return token, nil
}

func parseBaseURL(apiURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(apiURL)
	if trimmed == "" {
		trimmed = defaultAPIURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api_url %q: %w", apiURL, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse api_url %q: missing host", apiURL)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
