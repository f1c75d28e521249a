package orchestrator

import (
	"testing"
	"time"

	"github.com/btorch/btaudiod/internal/macaddr"
	"github.com/btorch/btaudiod/internal/pulse"
	"github.com/btorch/btaudiod/internal/store"
)

func newTestIdleEngine() *idleEngine {
	return &idleEngine{
		settings:   make(map[macaddr.Address]store.DeviceSettings),
		pending:    make(map[macaddr.Address]*time.Timer),
		keepAlives: make(map[macaddr.Address]*pulse.KeepAlive),
	}
}

func TestLookupBySinkNameMatchesByAddressFragment(t *testing.T) {
	e := newTestIdleEngine()
	addr := macaddr.MustParse("AA:BB:CC:DD:EE:01")
	settings := store.DefaultDeviceSettings()
	settings.IdleMode = store.IdlePowerSave
	e.settings[addr] = settings

	sinkName := "bluez_sink." + addr.Underscored() + ".a2dp_sink"
	gotAddr, gotSettings, ok := e.lookupBySinkName(sinkName)
	if !ok {
		t.Fatal("expected a match")
	}
	if gotAddr != addr {
		t.Fatalf("gotAddr = %q, want %q", gotAddr, addr)
	}
	if gotSettings.IdleMode != store.IdlePowerSave {
		t.Fatalf("gotSettings.IdleMode = %q, want %q", gotSettings.IdleMode, store.IdlePowerSave)
	}
}

func TestLookupBySinkNameNoMatch(t *testing.T) {
	e := newTestIdleEngine()
	if _, _, ok := e.lookupBySinkName("bluez_sink.unrelated.a2dp_sink"); ok {
		t.Fatal("expected no match for an untracked sink name")
	}
}

func TestDelayForReturnsZeroValueWhenUntracked(t *testing.T) {
	e := newTestIdleEngine()
	got := e.delayFor(macaddr.MustParse("AA:BB:CC:DD:EE:99"))
	if got != (store.DeviceSettings{}) {
		t.Fatalf("delayFor(untracked) = %+v, want zero value", got)
	}
}

func TestCancelPendingLockedStopsAndRemovesTimer(t *testing.T) {
	e := newTestIdleEngine()
	addr := macaddr.MustParse("AA:BB:CC:DD:EE:01")
	e.pending[addr] = time.AfterFunc(time.Hour, func() {})

	e.mu.Lock()
	e.cancelPendingLocked(addr)
	e.mu.Unlock()

	if _, ok := e.pending[addr]; ok {
		t.Fatal("expected pending timer to be removed")
	}
}
