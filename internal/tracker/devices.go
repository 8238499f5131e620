package tracker

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"

	"github.com/sidewalk-ota/otadash/internal/ota"
	"github.com/sidewalk-ota/otadash/internal/poll"
	"github.com/sidewalk-ota/otadash/internal/state"
)

// DeviceFetcher loads one device record.
type DeviceFetcher interface {
	FetchDevice(ctx context.Context, id string) (ota.WirelessDevice, error)
}

// Notifier receives user-facing failures.
type Notifier interface {
	Error(text string)
	ErrorOnce(key, text string) bool
}

// Devices keeps in-flight device transfers fresh in the devices table.
type Devices struct {
	reg      *poll.Registry[ota.WirelessDevice]
	notifier Notifier
}

// NewDevices wires a synchronizer for fetcher. ctx bounds every request.
func NewDevices(ctx context.Context, fetcher DeviceFetcher, notifier Notifier, opts poll.Options) *Devices {
	if opts.Name == "" {
		opts.Name = "devices"
	}
	return &Devices{
		reg:      poll.New[ota.WirelessDevice](ctx, fetcher.FetchDevice, keepPollingDevice, opts),
		notifier: notifier,
	}
}

// keepPollingDevice continues until the transfer settles. A device reporting
// 100% while still TRANSFERRING is polled once more to pick up its final state.
func keepPollingDevice(d ota.WirelessDevice) bool {
	return d.TransferStatus.Pollable()
}

// Sync reconciles poll chains with the devices list after it was refetched.
func (d *Devices) Sync(devices *state.Devices) tea.Cmd {
	return d.reg.Reset(state.PollableDeviceIDs(devices))
}

// Update merges poll results into devices. The returned error is the fetch
// failure, already reported to the user.
func (d *Devices) Update(msg tea.Msg, devices *state.Devices) (tea.Cmd, error) {
	res, cmd, ok := d.reg.Update(msg)
	if !ok {
		return cmd, nil
	}
	if res.Err != nil {
		log.Warn().Err(res.Err).Str("device_id", res.Key).Msg("device poll failed")
		if d.notifier != nil {
			d.notifier.Error(fmt.Sprintf("Error while getting device by id: %s", res.Key))
		}
		return nil, res.Err
	}
	if state.MergeDevice(devices, res.Key, res.Value) {
		log.Debug().
			Str("device_id", res.Key).
			Str("status", res.Value.TransferStatus.String()).
			Int("progress", res.Value.Progress()).
			Msg("device updated")
	}
	return cmd, nil
}

// Polling reports whether id has a live chain.
func (d *Devices) Polling(id string) bool {
	return d.reg.State(id) == poll.Polling
}

// Active lists polled device ids.
func (d *Devices) Active() []string {
	return d.reg.Active()
}

// Stop tears down every chain.
func (d *Devices) Stop() {
	d.reg.StopAll()
}
