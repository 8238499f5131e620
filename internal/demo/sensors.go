package demo

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sidewalk-ota/otadash/internal/ota"
)

// maxReadings caps the stored history per sensor device.
const maxReadings = 60

// WithSensors sets how many sensor monitoring devices are seeded.
func WithSensors(n int) Option {
	return func(b *Backend) { b.seedSensors = n }
}

type sensorProfile struct {
	linkType string
	unit     string
	sensor   bool
	leds     []int
	buttons  []int
	online   bool
	base     float64
}

// sensorProfiles cycle over the seeded devices so every card state shows up.
var sensorProfiles = []sensorProfile{
	{linkType: "LoRa", unit: "CELSIUS", sensor: true, leds: []int{1, 2}, buttons: []int{1, 2, 3, 4}, online: true, base: 21},
	{linkType: "FSK", unit: "FAHRENHEIT", sensor: true, buttons: []int{1}, online: true, base: 70},
	{linkType: "BLE", leds: []int{1}, online: false},
	{linkType: "UNKNOWN"},
}

func (b *Backend) seedSensorDevices(now time.Time) {
	for i := 0; i < b.seedSensors; i++ {
		p := sensorProfiles[i%len(sensorProfiles)]
		id := fmt.Sprintf("sd-%04d", i+1)
		d := &ota.SensorDevice{
			WirelessDeviceID: id,
			LinkType:         p.linkType,
			Sensor:           p.sensor,
			SensorUnit:       p.unit,
			Led:              append([]int(nil), p.leds...),
			Button:           append([]int(nil), p.buttons...),
			LastUplink:       ota.NewTimestamp(now.Add(-10 * time.Minute)),
		}
		if p.online {
			d.LastUplink = ota.NewTimestamp(now)
		}
		if len(d.Led) > 0 {
			d.LedOn = []int{d.Led[0]}
		}
		b.sensors[id] = d
		b.sensorOrder = append(b.sensorOrder, id)
		b.sensorBase[id] = p.base
		if p.sensor {
			for m := 20; m > 0; m-- {
				b.recordReading(id, now.Add(-time.Duration(m)*time.Minute))
			}
		}
	}
}

func (b *Backend) recordReading(id string, at time.Time) {
	n := len(b.readings[id])
	value := b.sensorBase[id] + 2*math.Sin(float64(n)/3)
	b.readings[id] = append(b.readings[id], ota.Measurement{
		Time:             ota.NewTimestamp(at),
		WirelessDeviceID: id,
		Value:            math.Round(value*10) / 10,
	})
	if extra := len(b.readings[id]) - maxReadings; extra > 0 {
		b.readings[id] = append([]ota.Measurement(nil), b.readings[id][extra:]...)
	}
}

// ListSensorDevices returns the sensor monitoring devices in seed order.
// Devices seeded online report a fresh uplink on every call.
func (b *Backend) ListSensorDevices(context.Context) ([]ota.SensorDevice, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	out := make([]ota.SensorDevice, 0, len(b.sensorOrder))
	for _, id := range b.sensorOrder {
		d := b.sensors[id]
		if d.Online(now.Add(-ota.SensorOnlineTTL / 2)) {
			d.LastUplink = ota.NewTimestamp(now)
		}
		out = append(out, copySensor(d))
	}
	return out, nil
}

// FetchMeasurements records a new reading for id and returns its history,
// oldest first.
func (b *Backend) FetchMeasurements(_ context.Context, id string) ([]ota.Measurement, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.sensors[id]
	if !ok {
		return nil, fmt.Errorf("sensor device %s: %w", id, ErrNotFound)
	}
	if !d.Sensor {
		return []ota.Measurement{}, nil
	}
	b.recordReading(id, b.now())
	return append([]ota.Measurement(nil), b.readings[id]...), nil
}

func copySensor(d *ota.SensorDevice) ota.SensorDevice {
	out := *d
	out.Led = append([]int(nil), d.Led...)
	out.LedOn = append([]int(nil), d.LedOn...)
	out.Button = append([]int(nil), d.Button...)
	out.ButtonPressed = append([]int(nil), d.ButtonPressed...)
	return out
}
