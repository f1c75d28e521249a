package orchestrator

import (
	"context"
	"testing"

	"github.com/btorch/btaudiod/internal/macaddr"
)

func newTestReconnectScheduler() *reconnectScheduler {
	return &reconnectScheduler{cancels: make(map[macaddr.Address]context.CancelFunc)}
}

func TestReconnectSchedulerCancelStopsAndRemoves(t *testing.T) {
	r := newTestReconnectScheduler()
	addr := macaddr.MustParse("AA:BB:CC:DD:EE:01")

	cancelled := false
	r.cancels[addr] = func() { cancelled = true }

	r.cancel(addr)

	if !cancelled {
		t.Fatal("expected the cancel func to be invoked")
	}
	if _, ok := r.cancels[addr]; ok {
		t.Fatal("expected the entry to be removed from the map")
	}
}

func TestReconnectSchedulerCancelUnknownAddressIsNoop(t *testing.T) {
	r := newTestReconnectScheduler()
	r.cancel(macaddr.MustParse("AA:BB:CC:DD:EE:99"))
}

func TestReconnectSchedulerSuspendCancelsEveryPendingTask(t *testing.T) {
	r := newTestReconnectScheduler()
	var calls int
	r.cancels[macaddr.MustParse("AA:BB:CC:DD:EE:01")] = func() { calls++ }
	r.cancels[macaddr.MustParse("AA:BB:CC:DD:EE:02")] = func() { calls++ }

	r.suspend()

	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
	if len(r.cancels) != 0 {
		t.Fatalf("expected cancels map to be cleared, got %d entries", len(r.cancels))
	}
	if !r.disabled {
		t.Fatal("expected scheduler to be marked disabled")
	}
}

func TestReconnectSchedulerResumeReenables(t *testing.T) {
	r := newTestReconnectScheduler()
	r.disabled = true
	r.resume()
	if r.disabled {
		t.Fatal("expected scheduler to be re-enabled")
	}
}

func TestReconnectSchedulerScheduleNoopWhenDisabled(t *testing.T) {
	r := newTestReconnectScheduler()
	r.disabled = true
	addr := macaddr.MustParse("AA:BB:CC:DD:EE:01")

	// With c left nil, schedule would crash if it ever got as far as
	// spawning run(); the disabled check must short-circuit before that.
	r.schedule(addr)

	if _, ok := r.cancels[addr]; ok {
		t.Fatal("expected no retry task to be scheduled while disabled")
	}
}
