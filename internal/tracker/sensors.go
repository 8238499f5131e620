package tracker

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"

	"github.com/sidewalk-ota/otadash/internal/ota"
	"github.com/sidewalk-ota/otadash/internal/poll"
	"github.com/sidewalk-ota/otadash/internal/state"
)

// SensorFetcher loads sensor monitoring data.
type SensorFetcher interface {
	ListSensorDevices(ctx context.Context) ([]ota.SensorDevice, error)
	FetchMeasurements(ctx context.Context, id string) ([]ota.Measurement, error)
}

// sensorListKey is the single chain of the device list registry.
const sensorListKey = "sensor-devices"

// Sensors polls the sensor device list and the readings of every device that
// carries a sensor. A failed fetch stops its chain until Refresh.
type Sensors struct {
	list     *poll.Registry[[]ota.SensorDevice]
	readings *poll.Registry[[]ota.Measurement]
	notifier Notifier

	devices *state.Sensors
	series  map[string][]ota.Measurement
	failed  map[string]error
}

// NewSensors wires the sensor pollers. listOpts drives the device list,
// readingOpts the measurements.
func NewSensors(ctx context.Context, fetcher SensorFetcher, notifier Notifier, listOpts, readingOpts poll.Options) *Sensors {
	if listOpts.Name == "" {
		listOpts.Name = "sensor_devices"
	}
	if readingOpts.Name == "" {
		readingOpts.Name = "measurements"
	}
	listDevices := func(ctx context.Context, _ string) ([]ota.SensorDevice, error) {
		return fetcher.ListSensorDevices(ctx)
	}
	return &Sensors{
		list:     poll.New[[]ota.SensorDevice](ctx, listDevices, keepPollingSensors, listOpts),
		readings: poll.New[[]ota.Measurement](ctx, fetcher.FetchMeasurements, keepPollingReadings, readingOpts),
		notifier: notifier,
		devices:  &state.Sensors{},
		series:   make(map[string][]ota.Measurement),
		failed:   make(map[string]error),
	}
}

// Sensor chains never settle on their own; they run until a fetch fails or
// the view is left.
func keepPollingSensors([]ota.SensorDevice) bool { return true }

func keepPollingReadings([]ota.Measurement) bool { return true }

// Start begins polling the device list. It is a no-op while it polls.
func (s *Sensors) Start() tea.Cmd {
	return s.list.Start(sensorListKey)
}

// Refresh restarts the device list and every stopped measurement chain.
func (s *Sensors) Refresh() tea.Cmd {
	s.list.Stop(sensorListKey)
	for id := range s.failed {
		delete(s.failed, id)
	}
	return tea.Batch(s.list.Start(sensorListKey), s.readings.Reset(state.SensorIDs(s.devices)))
}

// Stop tears down every chain. Loaded data is kept.
func (s *Sensors) Stop() {
	s.list.StopAll()
	s.readings.StopAll()
}

// Clear stops polling and forgets everything, used on logout.
func (s *Sensors) Clear() {
	s.Stop()
	s.devices.Clear()
	s.series = make(map[string][]ota.Measurement)
	s.failed = make(map[string]error)
}

// Update consumes poll messages. The returned error is the fetch failure,
// already reported to the user.
func (s *Sensors) Update(msg tea.Msg) (tea.Cmd, error) {
	if res, cmd, ok := s.list.Update(msg); ok {
		if res.Err != nil {
			s.devices.Fail(res.Err)
			log.Warn().Err(res.Err).Msg("sensor device list fetch failed")
			if s.notifier != nil {
				s.notifier.ErrorOnce("sensor-devices", "Error loading devices information, try again")
			}
			return nil, res.Err
		}
		s.devices.Replace(res.Value)
		log.Debug().Int("devices", len(res.Value)).Msg("sensor devices loaded")
		return tea.Batch(s.readings.Retain(state.SensorIDs(s.devices)), cmd), nil
	} else if cmd != nil {
		return cmd, nil
	}

	res, cmd, ok := s.readings.Update(msg)
	if !ok {
		return cmd, nil
	}
	if res.Err != nil {
		s.failed[res.Key] = res.Err
		log.Warn().Err(res.Err).Str("device_id", res.Key).Msg("measurement fetch failed")
		return nil, res.Err
	}
	delete(s.failed, res.Key)
	s.series[res.Key] = res.Value
	return cmd, nil
}

// Devices returns the sensor device list.
func (s *Sensors) Devices() *state.Sensors {
	return s.devices
}

// Series returns the latest readings of id, oldest first.
func (s *Sensors) Series(id string) []ota.Measurement {
	return s.series[id]
}

// SeriesErr returns the error that stopped the measurement chain of id.
func (s *Sensors) SeriesErr(id string) error {
	return s.failed[id]
}

// ListStopped reports whether the device list chain ended on an error.
func (s *Sensors) ListStopped() bool {
	return s.list.State(sensorListKey) == poll.Errored
}

// Polling reports whether the device list is being polled.
func (s *Sensors) Polling() bool {
	return s.list.State(sensorListKey) == poll.Polling
}

// Watched returns the devices whose readings are polled, sorted.
func (s *Sensors) Watched() []string {
	return s.readings.Active()
}
