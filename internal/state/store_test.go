package state

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/sidewalk-ota/otadash/internal/ota"
)

func progress(n int) *int { return &n }

func sampleDevices() []ota.WirelessDevice {
	return []ota.WirelessDevice{
		{DeviceID: "d1", TransferStatus: ota.StatusTransferring, TransferProgress: progress(10)},
		{DeviceID: "d2", TransferStatus: ota.StatusComplete, TransferProgress: progress(100)},
		{DeviceID: "d3", TransferStatus: ota.StatusPending},
	}
}

func TestCollection_ReplaceAndSnapshotClone(t *testing.T) {
	var c Devices

	before := time.Now()
	c.Replace(sampleDevices())

	snap := c.Snapshot()
	if !snap.Loaded || snap.Len != 3 {
		t.Fatalf("snapshot = %#v, want loaded with 3 rows", snap)
	}
	if snap.LastUpdated.Before(before) {
		t.Fatalf("LastUpdated = %v, want >= %v", snap.LastUpdated, before)
	}

	rows := c.Rows()
	rows[0].DeviceID = "mutated"
	if got, _ := c.Get("d1"); got.DeviceID != "d1" {
		t.Fatalf("Rows should return a copy")
	}
	if ids := c.IDs(); !reflect.DeepEqual(ids, []string{"d1", "d2", "d3"}) {
		t.Fatalf("IDs = %v", ids)
	}
}

func TestCollection_FailKeepsPreviousRows(t *testing.T) {
	var c Devices
	c.Replace(sampleDevices())

	origErr := errors.New("boom")
	c.Fail(origErr)
	c.Fail(origErr)

	snap := c.Snapshot()
	if snap.Len != 3 {
		t.Fatalf("rows changed on error: %d", snap.Len)
	}
	if !errors.Is(snap.LastError, origErr) {
		t.Fatalf("LastError = %v, want wrapping %v", snap.LastError, origErr)
	}
	if !snap.IsOffline() {
		t.Fatalf("two consecutive failures should report offline")
	}

	c.Replace(sampleDevices()[:1])
	snap = c.Snapshot()
	if snap.LastError != nil || snap.ConsecutiveFailures != 0 {
		t.Fatalf("successful replace should clear errors: %#v", snap)
	}
}

func TestMergeDevice_OverwritesOneRowAndBumpsRevision(t *testing.T) {
	var c Devices
	c.Replace(sampleDevices())
	rev1 := c.Revision("d1")
	rev3 := c.Revision("d3")

	fetched := ota.WirelessDevice{DeviceID: "d1", TransferStatus: ota.StatusTransferring, TransferProgress: progress(60)}
	if !MergeDevice(&c, "d1", fetched) {
		t.Fatalf("MergeDevice reported no change")
	}
	got, _ := c.Get("d1")
	if got.Progress() != 60 {
		t.Fatalf("progress = %d, want 60", got.Progress())
	}
	if c.Revision("d1") == rev1 {
		t.Fatalf("revision of merged row did not change")
	}
	if c.Revision("d3") != rev3 {
		t.Fatalf("revision of untouched row changed")
	}
	if c.Len() != 3 {
		t.Fatalf("merge changed collection length")
	}
}

func TestMergeDevice_Idempotent(t *testing.T) {
	var c Devices
	c.Replace(sampleDevices())

	fetched := ota.WirelessDevice{DeviceID: "d1", TransferStatus: ota.StatusComplete, TransferProgress: progress(100)}
	MergeDevice(&c, "d1", fetched)
	rev := c.Revision("d1")
	before := c.Rows()

	if MergeDevice(&c, "d1", fetched) {
		t.Fatalf("second identical merge reported a change")
	}
	if c.Revision("d1") != rev || !reflect.DeepEqual(before, c.Rows()) {
		t.Fatalf("identical merge was observable")
	}
}

func TestMergeDevice_UnknownOrMissingID(t *testing.T) {
	var c Devices
	c.Replace(sampleDevices())

	if MergeDevice(&c, "zz", ota.WirelessDevice{DeviceID: "zz"}) {
		t.Fatalf("merge of unknown device should be a no-op")
	}
	if !MergeDevice(&c, "d3", ota.WirelessDevice{TransferStatus: ota.StatusTransferring}) {
		t.Fatalf("merge without id in payload should use the polled id")
	}
	got, ok := c.Get("d3")
	if !ok || got.DeviceID != "d3" || got.TransferStatus != ota.StatusTransferring {
		t.Fatalf("d3 = %#v", got)
	}
}

func TestPollableDeviceIDs(t *testing.T) {
	var c Devices
	rows := append(sampleDevices(), ota.WirelessDevice{DeviceID: "d1", TransferStatus: ota.StatusPending})
	c.Replace(rows)

	got := PollableDeviceIDs(&c)
	if !reflect.DeepEqual(got, []string{"d1", "d3"}) {
		t.Fatalf("PollableDeviceIDs = %v", got)
	}
}

func TestCollection_SliceBounds(t *testing.T) {
	var c Tasks
	c.Replace([]ota.TransferTask{{TaskID: "a"}, {TaskID: "b"}, {TaskID: "c"}})

	if got := c.Slice(1, 10); len(got) != 2 || got[0].TaskID != "b" {
		t.Fatalf("Slice(1,10) = %#v", got)
	}
	if got := c.Slice(5, 10); got != nil {
		t.Fatalf("Slice past end = %#v, want nil", got)
	}

	c.Clear()
	if c.Len() != 0 || c.Snapshot().Loaded {
		t.Fatalf("Clear should reset the collection")
	}
}

func TestSensorIDs(t *testing.T) {
	var c Sensors
	c.Replace([]ota.SensorDevice{
		{WirelessDeviceID: "s1", Sensor: true},
		{WirelessDeviceID: "s2", Led: []int{1}},
		{WirelessDeviceID: "s3", Sensor: true},
	})
	if got := SensorIDs(&c); !reflect.DeepEqual(got, []string{"s1", "s3"}) {
		t.Fatalf("SensorIDs = %v", got)
	}
}
