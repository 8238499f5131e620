package ota

import (
	"slices"
	"sort"
	"time"
)

// SensorOnlineTTL is how long after its last uplink a sensor device still
// counts as online.
const SensorOnlineTTL = 60 * time.Second

// SensorDevice is one Sidewalk end device as reported by the sensor
// monitoring API.
type SensorDevice struct {
	WirelessDeviceID string    `json:"wirelessDeviceId"`
	LinkType         string    `json:"linkType"`
	Button           []int     `json:"button"`
	ButtonPressed    []int     `json:"buttonPressed"`
	Led              []int     `json:"led"`
	LedOn            []int     `json:"ledOn"`
	Sensor           bool      `json:"sensor"`
	SensorUnit       string    `json:"sensorUnit"`
	LastUplink       Timestamp `json:"lastUplink"`
}

// RowID implements state.Row.
func (d SensorDevice) RowID() string { return d.WirelessDeviceID }

// Online reports whether the device sent an uplink within SensorOnlineTTL.
func (d SensorDevice) Online(now time.Time) bool {
	if d.LastUplink.IsZero() {
		return false
	}
	return now.Sub(d.LastUplink.Time) <= SensorOnlineTTL
}

// HasCapabilities is false for devices that never reported LEDs, buttons or
// a sensor; they need a restart before they show up properly.
func (d SensorDevice) HasCapabilities() bool {
	return len(d.Led) > 0 || len(d.Button) > 0 || d.Sensor
}

// LEDOn reports whether LED id is lit.
func (d SensorDevice) LEDOn(id int) bool { return slices.Contains(d.LedOn, id) }

// Pressed reports whether button id is engaged.
func (d SensorDevice) Pressed(id int) bool { return slices.Contains(d.ButtonPressed, id) }

// UnitSymbol renders the sensor unit.
func (d SensorDevice) UnitSymbol() string {
	switch d.SensorUnit {
	case "CELSIUS":
		return "°C"
	case "FAHRENHEIT":
		return "°F"
	}
	return "-"
}

// LinkLabel names the radio link, "UNKNOWN" when unset.
func (d SensorDevice) LinkLabel() string {
	if d.LinkType == "" {
		return "UNKNOWN"
	}
	return d.LinkType
}

// Measurement is one sensor reading.
type Measurement struct {
	Time             Timestamp `json:"time"`
	WirelessDeviceID string    `json:"wirelessDeviceId"`
	Value            float64   `json:"value"`
}

// SortMeasurements orders readings oldest first.
func SortMeasurements(ms []Measurement) {
	sort.SliceStable(ms, func(i, j int) bool { return ms[i].Time.Before(ms[j].Time.Time) })
}
