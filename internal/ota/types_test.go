package ota

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseStatus(t *testing.T) {
	cases := map[string]TransferStatus{
		"pending":       StatusPending,
		" Transferring": StatusTransferring,
		"Canceled":      StatusCancelled,
		"CANCELLED":     StatusCancelled,
		"Completed":     StatusCompleted,
		"":              "",
	}
	for raw, want := range cases {
		if got := ParseStatus(raw); got != want {
			t.Fatalf("ParseStatus(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestTransferStatus_TerminalAndPollableAreDisjoint(t *testing.T) {
	all := []TransferStatus{StatusPending, StatusTransferring, StatusCancelled, StatusFailed, StatusComplete, StatusCompleted, StatusNone}
	for _, s := range all {
		if s.Terminal() && s.Pollable() {
			t.Fatalf("%s is both terminal and pollable", s)
		}
	}
	if !StatusPending.Pollable() || !StatusTransferring.Pollable() {
		t.Fatalf("pending and transferring must be pollable")
	}
	if StatusNone.Terminal() || StatusNone.Pollable() {
		t.Fatalf("NONE is neither terminal nor pollable")
	}
}

func TestTimestamp_Unmarshal(t *testing.T) {
	want := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
	for _, raw := range []string{`1700000000`, `1700000000000`, `"1700000000"`, `"2023-11-14T22:13:20Z"`} {
		var ts Timestamp
		if err := json.Unmarshal([]byte(raw), &ts); err != nil {
			t.Fatalf("Unmarshal(%s) returned error: %v", raw, err)
		}
		if !ts.Equal(want) {
			t.Fatalf("Unmarshal(%s) = %v, want %v", raw, ts.Time, want)
		}
	}

	var empty Timestamp
	if err := json.Unmarshal([]byte(`null`), &empty); err != nil || !empty.IsZero() {
		t.Fatalf("null should decode to zero, got %v err=%v", empty, err)
	}
	if empty.Format() != "-" {
		t.Fatalf("Format() = %q, want -", empty.Format())
	}

	var bad Timestamp
	if err := json.Unmarshal([]byte(`"yesterday"`), &bad); err == nil {
		t.Fatalf("expected error for unparseable timestamp")
	}
}

func TestWirelessDevice_Duration(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d := WirelessDevice{TransferStartTimeUTC: NewTimestamp(start)}
	if got := d.Duration(start.Add(90 * time.Second)); got != 90*time.Second {
		t.Fatalf("running duration = %v", got)
	}
	d.TransferEndTimeUTC = NewTimestamp(start.Add(time.Minute))
	if got := d.Duration(start.Add(time.Hour)); got != time.Minute {
		t.Fatalf("finished duration = %v", got)
	}
	if (WirelessDevice{}).Duration(start) != 0 {
		t.Fatalf("unstarted transfer should have zero duration")
	}
}

func TestFormatSize(t *testing.T) {
	cases := map[float64]string{
		0:       "-",
		512:     "512.00 KB",
		2048:    "2.00 MB",
		3145728: "3.00 GB",
	}
	for kb, want := range cases {
		if got := FormatSize(kb); got != want {
			t.Fatalf("FormatSize(%v) = %q, want %q", kb, got, want)
		}
	}
}

func TestDeviceStatus_FallsBackToTransferStatus(t *testing.T) {
	var s DeviceStatus
	if err := json.Unmarshal([]byte(`{"deviceId":"d1","transferStatus":"COMPLETE"}`), &s); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if s.Status != StatusComplete {
		t.Fatalf("Status = %q, want COMPLETE", s.Status)
	}
}
