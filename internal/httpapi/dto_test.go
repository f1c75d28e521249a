package httpapi

import (
	"testing"
	"time"

	"github.com/btorch/btaudiod/internal/bluez"
	"github.com/btorch/btaudiod/internal/macaddr"
	"github.com/btorch/btaudiod/internal/store"
)

func TestBuildDeviceListMergesLiveAndPersisted(t *testing.T) {
	live := []bluez.DeviceInfo{
		{Address: macaddr.Address("AA:BB:CC:DD:EE:01"), Name: "Speaker", Connected: true, HasTransport: true},
	}
	records := []store.Device{
		{
			Address:     macaddr.Address("AA:BB:CC:DD:EE:01"),
			Name:        "Speaker",
			AutoConnect: true,
			Settings:    store.DefaultDeviceSettings(),
			PairedAt:    time.Unix(1000, 0),
		},
		{
			// Offline, paired-only device: not reported by BlueZ right now,
			// but must still appear (§8 audio-UUID-filter invariant).
			Address:     macaddr.Address("AA:BB:CC:DD:EE:02"),
			Name:        "Old Headphones",
			AutoConnect: false,
			Settings:    store.DefaultDeviceSettings(),
			PairedAt:    time.Unix(2000, 0),
		},
	}

	out := buildDeviceList(live, records)
	if len(out) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(out))
	}

	online := out[0]
	if online.Address != "AA:BB:CC:DD:EE:01" || !online.Connected || !online.AutoConnect {
		t.Fatalf("online device not merged correctly: %+v", online)
	}
	if online.PairedAt == nil || !online.PairedAt.Equal(time.Unix(1000, 0)) {
		t.Fatalf("online device missing merged paired_at: %+v", online)
	}

	offline := out[1]
	if offline.Address != "AA:BB:CC:DD:EE:02" || offline.Connected {
		t.Fatalf("offline device not reported correctly: %+v", offline)
	}
	if offline.Name != "Old Headphones" {
		t.Fatalf("offline device name not taken from store: %+v", offline)
	}
}

func TestBuildDeviceListEmptyInputs(t *testing.T) {
	out := buildDeviceList(nil, nil)
	if len(out) != 0 {
		t.Fatalf("expected no devices, got %d", len(out))
	}
}

func TestSinkDTOFrom(t *testing.T) {
	out := sinkDTOFrom(nil)
	if len(out) != 0 {
		t.Fatalf("expected no sinks, got %d", len(out))
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "", "fallback"); got != "fallback" {
		t.Fatalf("firstNonEmpty = %q, want %q", got, "fallback")
	}
	if got := firstNonEmpty("first", "second"); got != "first" {
		t.Fatalf("firstNonEmpty = %q, want %q", got, "first")
	}
}
