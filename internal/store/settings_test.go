package store

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func newTestLogger() *log.Logger {
	return log.New(io.Discard)
}

func TestSettingsStoreLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	s := NewSettingsStore(newTestLogger(), path)
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := s.Get(); got != DefaultAdapterSettings() {
		t.Fatalf("Get() = %+v, want defaults", got)
	}
}

func TestSettingsStoreSetThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	s := NewSettingsStore(newTestLogger(), path)
	want := AdapterSettings{
		BTAdapter:           "AA:BB:CC:DD:EE:FF",
		AutoReconnect:       false,
		ReconnectInterval:   30 * time.Second,
		ReconnectMaxBackoff: 2 * time.Minute,
		ScanDuration:        20 * time.Second,
	}
	if err := s.Set(want); err != nil {
		t.Fatalf("Set: %v", err)
	}

	reloaded := NewSettingsStore(newTestLogger(), path)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := reloaded.Get(); got != want {
		t.Fatalf("Get() after reload = %+v, want %+v", got, want)
	}
}

func TestMigrateLegacyAdapterName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	s := NewSettingsStore(newTestLogger(), path)
	if err := s.Set(AdapterSettings{BTAdapter: "hci0"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if err := s.MigrateLegacyAdapterName("AA:BB:CC:DD:EE:FF"); err != nil {
		t.Fatalf("MigrateLegacyAdapterName: %v", err)
	}
	if got := s.Get().BTAdapter; got != "AA:BB:CC:DD:EE:FF" {
		t.Fatalf("BTAdapter = %q, want migrated address", got)
	}

	reloaded := NewSettingsStore(newTestLogger(), path)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := reloaded.Get().BTAdapter; got != "AA:BB:CC:DD:EE:FF" {
		t.Fatalf("persisted BTAdapter = %q, want migrated address", got)
	}
}

func TestMigrateLegacyAdapterNameNoopForAuto(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	s := NewSettingsStore(newTestLogger(), path)
	if err := s.Set(AdapterSettings{BTAdapter: "auto"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.MigrateLegacyAdapterName("AA:BB:CC:DD:EE:FF"); err != nil {
		t.Fatalf("MigrateLegacyAdapterName: %v", err)
	}
	if got := s.Get().BTAdapter; got != "auto" {
		t.Fatalf("BTAdapter = %q, want unchanged %q", got, "auto")
	}
}

func TestMigrateLegacyAdapterNameNoopWhenUnresolved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	s := NewSettingsStore(newTestLogger(), path)
	if err := s.Set(AdapterSettings{BTAdapter: "hci0"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.MigrateLegacyAdapterName(""); err != nil {
		t.Fatalf("MigrateLegacyAdapterName: %v", err)
	}
	if got := s.Get().BTAdapter; got != "hci0" {
		t.Fatalf("BTAdapter = %q, want unchanged %q", got, "hci0")
	}
}
