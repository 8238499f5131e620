package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidewalk-ota/otadash/internal/ota"
)

type sensorBackend struct {
	mu        sync.Mutex
	devices   []ota.SensorDevice
	listErr   error
	readErr   map[string]error
	listCalls int
	readCalls map[string]int
}

func newSensorBackend(devices ...ota.SensorDevice) *sensorBackend {
	return &sensorBackend{devices: devices, readErr: map[string]error{}, readCalls: map[string]int{}}
}

func (b *sensorBackend) ListSensorDevices(context.Context) ([]ota.SensorDevice, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listCalls++
	if b.listErr != nil {
		return nil, b.listErr
	}
	return append([]ota.SensorDevice(nil), b.devices...), nil
}

func (b *sensorBackend) FetchMeasurements(_ context.Context, id string) ([]ota.Measurement, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.readCalls[id]++
	if err := b.readErr[id]; err != nil {
		return nil, err
	}
	return []ota.Measurement{{WirelessDeviceID: id, Value: float64(b.readCalls[id])}}, nil
}

// step runs up to n messages through s, breadth first, and returns the
// commands still pending.
func step(t *testing.T, s *Sensors, cmd tea.Cmd, n int) ([]tea.Cmd, []error) {
	t.Helper()
	queue := []tea.Cmd{cmd}
	var errs []error
	for ; n > 0 && len(queue) > 0; n-- {
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			n++
			continue
		}
		msg := next()
		if batch, ok := msg.(tea.BatchMsg); ok {
			queue = append(queue, batch...)
			n++
			continue
		}
		out, err := s.Update(msg)
		if err != nil {
			errs = append(errs, err)
		}
		queue = append(queue, out)
	}
	return queue, errs
}

func TestSensors_ListStartsReadingChains(t *testing.T) {
	backend := newSensorBackend(
		ota.SensorDevice{WirelessDeviceID: "s1", Sensor: true},
		ota.SensorDevice{WirelessDeviceID: "s2", Led: []int{1}},
	)
	s := NewSensors(context.Background(), backend, &fakeNotifier{}, fastPoll, fastPoll)

	_, errs := step(t, s, s.Start(), 2)
	require.Empty(t, errs)
	assert.Equal(t, 2, s.Devices().Len())
	assert.Equal(t, []string{"s1"}, s.Watched(), "only devices with a sensor are measured")
	require.Len(t, s.Series("s1"), 1)
	assert.Empty(t, s.Series("s2"))
	assert.True(t, s.Polling())
}

func TestSensors_ListErrorStopsUntilRefresh(t *testing.T) {
	backend := newSensorBackend(ota.SensorDevice{WirelessDeviceID: "s1", Sensor: true})
	notifier := &fakeNotifier{}
	s := NewSensors(context.Background(), backend, notifier, fastPoll, fastPoll)

	pending, errs := step(t, s, s.Start(), 2)
	require.Empty(t, errs)

	backend.mu.Lock()
	backend.listErr = errors.New("gateway timeout")
	backend.mu.Unlock()
	_, errs = step(t, s, s.Refresh(), 10)
	require.Len(t, errs, 1)
	assert.True(t, s.ListStopped())
	assert.Equal(t, 1, s.Devices().Len(), "last known devices are kept")
	assert.Equal(t, 1, notifier.keyed["sensor-devices"])
	assert.Equal(t, []string{"Error loading devices information, try again"}, notifier.errors)

	// Ticks from before the failure only drive measurements.
	calls := backend.listCalls
	step(t, s, tea.Batch(pending...), 10)
	assert.Equal(t, calls, backend.listCalls)

	backend.mu.Lock()
	backend.listErr = nil
	backend.mu.Unlock()
	_, errs = step(t, s, s.Refresh(), 1)
	require.Empty(t, errs)
	assert.True(t, s.Polling())
	assert.False(t, s.Devices().Snapshot().IsOffline())
}

func TestSensors_ReadingErrorStopsOnlyThatDevice(t *testing.T) {
	backend := newSensorBackend(
		ota.SensorDevice{WirelessDeviceID: "bad", Sensor: true},
		ota.SensorDevice{WirelessDeviceID: "good", Sensor: true},
	)
	backend.readErr["bad"] = errors.New("boom")
	s := NewSensors(context.Background(), backend, &fakeNotifier{}, fastPoll, fastPoll)

	_, errs := step(t, s, s.Start(), 3)
	require.Len(t, errs, 1)
	assert.Error(t, s.SeriesErr("bad"))
	assert.NoError(t, s.SeriesErr("good"))
	assert.Equal(t, []string{"good"}, s.Watched())

	delete(backend.readErr, "bad")
	step(t, s, s.Refresh(), 4)
	assert.NoError(t, s.SeriesErr("bad"))
	assert.Equal(t, []string{"bad", "good"}, s.Watched())
}

func TestSensors_ClearForgetsEverything(t *testing.T) {
	backend := newSensorBackend(ota.SensorDevice{WirelessDeviceID: "s1", Sensor: true})
	s := NewSensors(context.Background(), backend, nil, fastPoll, fastPoll)
	pending, _ := step(t, s, s.Start(), 2)

	s.Clear()
	assert.Zero(t, s.Devices().Len())
	assert.Empty(t, s.Series("s1"))
	assert.False(t, s.Polling())
	assert.Empty(t, s.Watched())

	// Ticks issued before Clear are dropped.
	_, errs := step(t, s, tea.Batch(pending...), 10)
	assert.Empty(t, errs)
	assert.Zero(t, s.Devices().Len())
}
