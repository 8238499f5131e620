package ui

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sidewalk-ota/otadash/internal/ota"
)

// sparkTicks are the bar heights of a sparkline, lowest first.
var sparkTicks = []rune("▁▂▃▄▅▆▇█")

func (m Model) handleSensorsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n := m.sensors.Devices().Len()
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.sensorCursor > 0 {
			m.sensorCursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.sensorCursor < n-1 {
			m.sensorCursor++
		}
	}
	return m, nil
}

func (m Model) currentSensor() (ota.SensorDevice, bool) {
	devices := m.sensors.Devices()
	if m.sensorCursor < 0 || m.sensorCursor >= devices.Len() {
		return ota.SensorDevice{}, false
	}
	return devices.At(m.sensorCursor), true
}

func (m Model) renderSensors() string {
	height := m.contentHeight()
	devices := m.sensors.Devices()
	title := fmt.Sprintf("Sensor monitoring (%d)", devices.Len())
	if devices.Len() == 0 {
		switch {
		case m.sensors.ListStopped():
			return m.renderEmpty(title, "Error loading devices information, try again (press r)")
		case !devices.Snapshot().Loaded:
			return m.renderEmpty(title, m.spinner.View()+" Loading devices...")
		}
		return m.renderEmpty(title, "No devices detected")
	}

	listWidth := min(max(m.width/3, 28), 44)
	if m.width < LayoutCompactWidth {
		listWidth = m.width
	}
	list := m.renderTitledBox(title, m.sensorList(listWidth-2, height-2), listWidth, height, false)
	if listWidth >= m.width {
		return list
	}

	device, _ := m.currentSensor()
	detail := m.renderTitledBox(device.WirelessDeviceID, m.sensorDetail(device, m.width-listWidth-2), m.width-listWidth, height, true)
	return lipgloss.JoinHorizontal(lipgloss.Top, list, detail)
}

func (m Model) sensorList(width, rows int) string {
	styles := m.theme.Styles()
	now := m.now()
	devices := m.sensors.Devices().Rows()

	first := 0
	if m.sensorCursor >= rows {
		first = m.sensorCursor - rows + 1
	}
	last := min(first+rows, len(devices))

	var b strings.Builder
	if m.sensors.ListStopped() {
		b.WriteString(styles.DangerText.Render("Error loading devices information, try again") + "\n")
	}
	for i := first; i < last; i++ {
		d := devices[i]
		dot := styles.FaintText.Render("○")
		if d.Online(now) {
			dot = styles.SuccessText.Render("●")
		}
		name := truncate(d.WirelessDeviceID, max(width-12, 4))
		line := dot + " " + name + " " + styles.MutedText.Render(d.LinkLabel())
		if i == m.sensorCursor {
			line = styles.AccentText.Render("▸ ") + dot + " " + styles.Selected.Render(name) + " " + styles.MutedText.Render(d.LinkLabel())
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func (m Model) sensorDetail(d ota.SensorDevice, width int) string {
	styles := m.theme.Styles()
	now := m.now()

	var b strings.Builder
	if d.Online(now) {
		b.WriteString(styles.SuccessText.Render("Online"))
	} else {
		b.WriteString(styles.DangerText.Render("Offline"))
	}
	b.WriteString(styles.MutedText.Render("  last uplink " + lastSeen(d.LastUplink, now)))
	b.WriteString(styles.MutedText.Render("  link " + d.LinkLabel()))
	b.WriteString("\n\n")

	if !d.HasCapabilities() {
		b.WriteString(styles.WarningText.Render("No device capabilities info. Please restart your device."))
		return b.String()
	}

	if len(d.Led) > 0 {
		b.WriteString(styles.AccentText.Bold(true).Render("LEDs") + "\n")
		for _, id := range d.Led {
			state := styles.FaintText.Render("Off")
			if d.LEDOn(id) {
				state = styles.WarningText.Render("On")
			}
			b.WriteString("  LED " + strconv.Itoa(id) + "  " + state + "\n")
		}
		b.WriteString("\n")
	}
	if len(d.Button) > 0 {
		b.WriteString(styles.AccentText.Bold(true).Render("Buttons") + "\n")
		for _, id := range d.Button {
			state := styles.FaintText.Render("Disengaged")
			if d.Pressed(id) {
				state = styles.InfoText.Render("Engaged")
			}
			b.WriteString("  Button " + strconv.Itoa(id) + "  " + state + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(styles.AccentText.Bold(true).Render("Temperature") + "\n")
	b.WriteString(m.sensorChart(d, width-2))
	return b.String()
}

func (m Model) sensorChart(d ota.SensorDevice, width int) string {
	styles := m.theme.Styles()
	if !d.Sensor {
		return styles.FaintText.Render("Sensor unavailable")
	}
	if err := m.sensors.SeriesErr(d.WirelessDeviceID); err != nil {
		return styles.DangerText.Render("Error loading measurements, try again (press r)")
	}
	readings := m.sensors.Series(d.WirelessDeviceID)
	if readings == nil {
		return m.spinner.View() + " " + styles.MutedText.Render("Loading measurements...")
	}
	if len(readings) == 0 {
		return styles.FaintText.Render("No data to display")
	}

	values := make([]float64, len(readings))
	for i, r := range readings {
		values[i] = r.Value
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}
	lo, hi := bounds(values)
	unit := d.UnitSymbol()
	latest := readings[len(readings)-1]

	var b strings.Builder
	b.WriteString(styles.InfoText.Render(sparkline(values)) + "\n")
	b.WriteString(styles.Text.Render(formatReading(latest.Value, unit)))
	b.WriteString(styles.MutedText.Render(fmt.Sprintf("  at %s  min %s  max %s",
		latest.Time.Local().Format("15:04:05"), formatReading(lo, unit), formatReading(hi, unit))))
	return b.String()
}

// sparkline scales values between their minimum and maximum. A flat series
// renders at mid height.
func sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	lo, hi := bounds(values)
	top := len(sparkTicks) - 1
	out := make([]rune, len(values))
	for i, v := range values {
		idx := top / 2
		if hi > lo {
			idx = int(math.Round((v - lo) / (hi - lo) * float64(top)))
		}
		out[i] = sparkTicks[idx]
	}
	return string(out)
}

func bounds(values []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

func formatReading(v float64, unit string) string {
	if unit == "-" {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'f', 1, 64) + unit
}

// lastSeen renders an uplink time relative to now.
func lastSeen(ts ota.Timestamp, now time.Time) string {
	if ts.IsZero() {
		return "never"
	}
	since := now.Sub(ts.Time).Round(time.Second)
	switch {
	case since < time.Minute:
		return fmt.Sprintf("%ds ago", int(since.Seconds()))
	case since < time.Hour:
		return fmt.Sprintf("%dm ago", int(since.Minutes()))
	case since < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(since.Hours()))
	}
	return ts.Format()
}
