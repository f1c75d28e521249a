package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/btorch/btaudiod/internal/macaddr"
)

func TestDeviceStoreUpsertGetAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.json")
	s := NewDeviceStore(newTestLogger(), path)

	addr := macaddr.MustParse("AA:BB:CC:DD:EE:01")
	if err := s.Upsert(Device{Address: addr, Name: "Speaker"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, ok := s.Get(addr)
	if !ok {
		t.Fatal("expected device to be present")
	}
	if got.Name != "Speaker" {
		t.Fatalf("Name = %q, want %q", got.Name, "Speaker")
	}
	// clampSettings fills in defaults for an empty settings bag.
	if got.Settings.AudioProfile != ProfileA2DP {
		t.Fatalf("Settings not clamped to defaults: %+v", got.Settings)
	}

	if all := s.All(); len(all) != 1 {
		t.Fatalf("All() = %d devices, want 1", len(all))
	}
}

func TestDeviceStorePersistsAcrossLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.json")
	addr := macaddr.MustParse("AA:BB:CC:DD:EE:01")

	s := NewDeviceStore(newTestLogger(), path)
	if err := s.Upsert(Device{Address: addr, Name: "Speaker"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	reloaded := NewDeviceStore(newTestLogger(), path)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, ok := reloaded.Get(addr)
	if !ok || got.Name != "Speaker" {
		t.Fatalf("reloaded device = %+v, ok=%v", got, ok)
	}
}

func TestDeviceStoreUpdateNotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.json")
	s := NewDeviceStore(newTestLogger(), path)

	_, err := s.Update(macaddr.MustParse("AA:BB:CC:DD:EE:99"), func(d *Device) {})
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("expected ErrDeviceNotFound, got %v", err)
	}
}

func TestDeviceStoreUpdateMutatesAndClamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.json")
	s := NewDeviceStore(newTestLogger(), path)
	addr := macaddr.MustParse("AA:BB:CC:DD:EE:01")
	if err := s.Upsert(Device{Address: addr}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	updated, err := s.Update(addr, func(d *Device) {
		d.Settings.PowerSaveDelay = 9999
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Settings.PowerSaveDelay != 300 {
		t.Fatalf("PowerSaveDelay = %d, want clamped to 300", updated.Settings.PowerSaveDelay)
	}
}

func TestDeviceStoreForgetReleasesPort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.json")
	s := NewDeviceStore(newTestLogger(), path)

	port, ok := s.AllocateMPDPort()
	if !ok || port != 6600 {
		t.Fatalf("AllocateMPDPort = %d, %v, want 6600, true", port, ok)
	}

	addr := macaddr.MustParse("AA:BB:CC:DD:EE:01")
	settings := DefaultDeviceSettings()
	settings.MPDPort = port
	if err := s.Upsert(Device{Address: addr, Settings: settings}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if err := s.Forget(addr); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	if _, ok := s.Get(addr); ok {
		t.Fatal("expected device to be gone after Forget")
	}

	// The port should be free again; AllocateMPDPort hands it straight back.
	reused, ok := s.AllocateMPDPort()
	if !ok || reused != port {
		t.Fatalf("AllocateMPDPort after Forget = %d, %v, want %d, true", reused, ok, port)
	}
}

func TestDeviceStoreForgetUnknownAddressIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.json")
	s := NewDeviceStore(newTestLogger(), path)
	if err := s.Forget(macaddr.MustParse("AA:BB:CC:DD:EE:99")); err != nil {
		t.Fatalf("Forget on unknown address should be a no-op, got %v", err)
	}
}

func TestDeviceStoreClearAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.json")
	s := NewDeviceStore(newTestLogger(), path)
	if err := s.Upsert(Device{Address: macaddr.MustParse("AA:BB:CC:DD:EE:01")}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := s.Upsert(Device{Address: macaddr.MustParse("AA:BB:CC:DD:EE:02")}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if err := s.ClearAll(); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	if all := s.All(); len(all) != 0 {
		t.Fatalf("All() = %d devices after ClearAll, want 0", len(all))
	}

	// Ports reset too: a fresh allocation starts at the base again.
	port, ok := s.AllocateMPDPort()
	if !ok || port != 6600 {
		t.Fatalf("AllocateMPDPort after ClearAll = %d, %v, want 6600, true", port, ok)
	}
}

func TestAllocateMPDPortExhaustion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.json")
	s := NewDeviceStore(newTestLogger(), path)

	for i := 0; i < mpdPortCount; i++ {
		if _, ok := s.AllocateMPDPort(); !ok {
			t.Fatalf("AllocateMPDPort failed before pool exhausted (iteration %d)", i)
		}
	}
	if _, ok := s.AllocateMPDPort(); ok {
		t.Fatal("expected pool to be exhausted")
	}

	s.ReleaseMPDPort(mpdPortBase + 3)
	port, ok := s.AllocateMPDPort()
	if !ok || port != mpdPortBase+3 {
		t.Fatalf("AllocateMPDPort after release = %d, %v, want %d, true", port, ok, mpdPortBase+3)
	}
}

func TestReleaseMPDPortOutOfRangeIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.json")
	s := NewDeviceStore(newTestLogger(), path)
	s.ReleaseMPDPort(1)
	s.ReleaseMPDPort(99999)
	port, ok := s.AllocateMPDPort()
	if !ok || port != mpdPortBase {
		t.Fatalf("AllocateMPDPort = %d, %v, want %d, true", port, ok, mpdPortBase)
	}
}
