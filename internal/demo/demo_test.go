package demo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidewalk-ota/otadash/internal/ota"
)

func TestBackend_TransferRunsToCompletion(t *testing.T) {
	ctx := context.Background()
	b := NewBackend(WithDevices(5), WithStep(50))

	task, err := b.StartTransfer(ctx, ota.StartTransferRequest{FileName: "sensor-fw-1.1.0.bin", DeviceIDs: []string{"wd-0004", "wd-0005"}})
	require.NoError(t, err)
	assert.NotEmpty(t, task.TaskID)

	var statuses []ota.TransferStatus
	for i := 0; i < 5; i++ {
		d, err := b.FetchDevice(ctx, "wd-0004")
		require.NoError(t, err)
		statuses = append(statuses, d.TransferStatus)
	}
	assert.Equal(t, []ota.TransferStatus{
		ota.StatusTransferring,
		ota.StatusTransferring,
		ota.StatusComplete,
		ota.StatusComplete,
		ota.StatusComplete,
	}, statuses)

	tasks, err := b.ListTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, task.TaskID, tasks[0].TaskID, "newest task first")
	assert.Equal(t, taskInProgress, tasks[0].TaskStatus, "one device still pending")

	for i := 0; i < 3; i++ {
		_, err := b.FetchDeviceStatus(ctx, "wd-0005")
		require.NoError(t, err)
	}
	tasks, _ = b.ListTasks(ctx)
	assert.Equal(t, taskCompleted, tasks[0].TaskStatus)
}

func TestBackend_ScheduledTransferWaits(t *testing.T) {
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBackend(WithDevices(1), WithClock(func() time.Time { return now }))
	later := ota.NewTimestamp(now.Add(time.Hour))

	_, err := b.StartTransfer(context.Background(), ota.StartTransferRequest{FileName: "gateway-2.3.s37", StartTimeUTC: &later, DeviceIDs: []string{"wd-0001"}})
	require.NoError(t, err)
	d, err := b.FetchDevice(context.Background(), "wd-0001")
	require.NoError(t, err)
	assert.Equal(t, ota.StatusPending, d.TransferStatus)
}

func TestBackend_CancelAndErrors(t *testing.T) {
	ctx := context.Background()
	b := NewBackend(WithDevices(4))

	_, err := b.FetchDevice(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = b.StartTransfer(ctx, ota.StartTransferRequest{FileName: "nope.bin", DeviceIDs: []string{"wd-0001"}})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = b.StartTransfer(ctx, ota.StartTransferRequest{FileName: "sensor-fw-1.1.0.bin"})
	assert.ErrorIs(t, err, ErrInvalid)

	task, err := b.StartTransfer(ctx, ota.StartTransferRequest{FileName: "sensor-fw-1.1.0.bin", DeviceIDs: []string{"wd-0004"}})
	require.NoError(t, err)
	require.NoError(t, b.CancelTasks(ctx, []string{task.TaskID}))

	st, err := b.FetchDeviceStatus(ctx, "wd-0004")
	require.NoError(t, err)
	assert.Equal(t, ota.StatusCancelled, st.Status)
	assert.ErrorIs(t, b.CancelTasks(ctx, []string{"missing"}), ErrNotFound)
}

func TestBackend_FilesAndFirmware(t *testing.T) {
	ctx := context.Background()
	b := NewBackend(WithDevices(0))

	require.NoError(t, b.UploadFile(ctx, ota.UploadRequest{FileName: "new.hex", Content: []byte{1, 2}}))
	assert.ErrorIs(t, b.UploadFile(ctx, ota.UploadRequest{FileName: "a/b.hex"}), ErrInvalid)
	require.NoError(t, b.SetCurrentFirmware(ctx, "new.hex"))
	assert.ErrorIs(t, b.SetCurrentFirmware(ctx, "ghost.bin"), ErrNotFound)

	files, err := b.ListFiles(ctx)
	require.NoError(t, err)
	assert.True(t, files.Contains("new.hex"))
	assert.Equal(t, "new.hex", files.CurrentFirmware())
}

func TestBackend_Login(t *testing.T) {
	b := NewBackend(WithCredentials(Credentials{Username: "ops", Password: "secret"}))
	assert.NoError(t, b.Login(context.Background(), "ops", "secret"))
	assert.ErrorIs(t, b.Login(context.Background(), "ops", "wrong"), ota.ErrUnauthorized)
	assert.NoError(t, NewBackend().Login(context.Background(), "anyone", ""))
}

func newServer(t *testing.T, opts ...Option) (*Server, *ota.Client) {
	t.Helper()
	opts = append([]Option{WithDevices(6), WithStep(100), WithCredentials(Credentials{Username: "ops", Password: "secret"})}, opts...)
	srv := NewHandler(NewBackend(opts...), zerolog.Nop())
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	session, err := ota.NewSession(nil)
	require.NoError(t, err)
	client, err := ota.NewClient(ts.URL, session, time.Second)
	require.NoError(t, err)
	return srv, client
}

func TestServer_ClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	_, client := newServer(t)

	require.NoError(t, client.Login(ctx, "ops", "secret"))
	require.True(t, client.Session().Authorized())

	devices, err := client.ListDevices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 6)
	assert.Equal(t, "wd-0001", devices[0].DeviceID)
	assert.Equal(t, ota.StatusComplete, devices[0].TransferStatus)
	assert.False(t, devices[0].TransferEndTimeUTC.IsZero())

	require.NoError(t, client.UploadFile(ctx, ota.UploadRequest{FileName: "fw-2.bin", Content: []byte("firmware")}))
	files, err := client.ListFiles(ctx)
	require.NoError(t, err)
	assert.True(t, files.Contains("fw-2.bin"))

	task, err := client.StartTransfer(ctx, ota.StartTransferRequest{FileName: "fw-2.bin", DeviceIDs: []string{"wd-0006"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"wd-0006"}, task.DeviceIDs)

	st, err := client.FetchDeviceStatus(ctx, "wd-0006")
	require.NoError(t, err)
	assert.Equal(t, ota.StatusTransferring, st.Status)

	d, err := client.FetchDevice(ctx, "wd-0006")
	require.NoError(t, err)
	assert.Equal(t, ota.StatusComplete, d.TransferStatus)
	assert.Equal(t, 100, d.Progress())
	assert.Equal(t, task.TaskID, d.TaskID)

	tasks, err := client.ListTasks(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, tasks)
	assert.Equal(t, task.TaskID, tasks[0].TaskID)

	require.NoError(t, client.SetCurrentFirmware(ctx, "fw-2.bin"))
	require.NoError(t, client.CancelTasks(ctx, []string{task.TaskID}))

	_, err = client.FetchDevice(ctx, "ghost")
	var statusErr *ota.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
}

func TestServer_RejectsMissingOrRevokedToken(t *testing.T) {
	ctx := context.Background()
	srv, client := newServer(t)

	_, err := client.ListTasks(ctx)
	assert.ErrorIs(t, err, ota.ErrUnauthorized)

	assert.ErrorIs(t, client.Login(ctx, "ops", "wrong"), ota.ErrUnauthorized)
	assert.False(t, client.Session().Authorized())

	require.NoError(t, client.Login(ctx, "ops", "secret"))
	_, err = client.ListTasks(ctx)
	require.NoError(t, err)

	srv.RevokeAll()
	_, err = client.ListDevices(ctx)
	assert.ErrorIs(t, err, ota.ErrUnauthorized)
	assert.False(t, client.Session().Authorized(), "a rejected token ends the session")
	assert.True(t, client.Session().ConsumeUnauthorized())
}

func TestServer_CORSPreflight(t *testing.T) {
	srv, _ := newServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/otaStart", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestBackend_SensorDevicesAndReadings(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	b := NewBackend(WithDevices(0), WithSensors(4), WithClock(func() time.Time { return now }))

	devices, err := b.ListSensorDevices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 4)
	assert.Equal(t, "sd-0001", devices[0].WirelessDeviceID)
	assert.True(t, devices[0].Sensor)
	assert.True(t, devices[0].Online(now))
	assert.False(t, devices[2].Online(now), "third profile is seeded offline")
	assert.False(t, devices[3].HasCapabilities())

	first, err := b.FetchMeasurements(ctx, "sd-0001")
	require.NoError(t, err)
	require.Len(t, first, 21)
	assert.True(t, first[0].Time.Before(first[len(first)-1].Time.Time))

	second, err := b.FetchMeasurements(ctx, "sd-0001")
	require.NoError(t, err)
	assert.Len(t, second, 22, "every fetch records a reading")

	none, err := b.FetchMeasurements(ctx, "sd-0003")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = b.FetchMeasurements(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBackend_ReadingHistoryIsCapped(t *testing.T) {
	ctx := context.Background()
	b := NewBackend(WithDevices(0), WithSensors(1))
	var readings []ota.Measurement
	for i := 0; i < maxReadings; i++ {
		var err error
		readings, err = b.FetchMeasurements(ctx, "sd-0001")
		require.NoError(t, err)
	}
	assert.Len(t, readings, maxReadings)
}

func TestServer_SensorRoutes(t *testing.T) {
	ctx := context.Background()
	_, client := newServer(t)
	require.NoError(t, client.Login(ctx, "ops", "secret"))

	devices, err := client.ListSensorDevices(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, devices)
	assert.Equal(t, "sd-0001", devices[0].WirelessDeviceID)
	assert.Equal(t, "°C", devices[0].UnitSymbol())
	assert.True(t, devices[0].LEDOn(1))

	readings, err := client.FetchMeasurements(ctx, "sd-0001")
	require.NoError(t, err)
	require.NotEmpty(t, readings)
	assert.Equal(t, "sd-0001", readings[0].WirelessDeviceID)

	_, err = client.FetchMeasurements(ctx, "ghost")
	var statusErr *ota.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
}
