package orchestrator

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/btorch/btaudiod/internal/macaddr"
	"github.com/btorch/btaudiod/internal/pulse"
	"github.com/btorch/btaudiod/internal/store"
)

// idleEngine drives keep_alive, power_save, and auto_disconnect handling
// off PulseAudio sink state-transition events (§4.5). At most one pending
// timer exists per device per mode at any time; switching modes cancels
// any pending timer but never resumes an already-suspended sink.
type idleEngine struct {
	c *Controller

	mu       sync.Mutex
	settings map[macaddr.Address]store.DeviceSettings
	pending  map[macaddr.Address]*time.Timer

	keepAlives map[macaddr.Address]*pulse.KeepAlive
}

func newIdleEngine(c *Controller) *idleEngine {
	return &idleEngine{
		c:          c,
		settings:   make(map[macaddr.Address]store.DeviceSettings),
		pending:    make(map[macaddr.Address]*time.Timer),
		keepAlives: make(map[macaddr.Address]*pulse.KeepAlive),
	}
}

// onDeviceConnected registers the device's idle mode and, for keep_alive,
// starts the waveform generator immediately (it runs for as long as the
// device stays connected, not gated on sink transitions).
func (e *idleEngine) onDeviceConnected(address macaddr.Address, settings store.DeviceSettings) {
	e.mu.Lock()
	e.settings[address] = settings
	e.cancelPendingLocked(address)
	e.mu.Unlock()

	if settings.IdleMode == store.IdleKeepAlive {
		e.startKeepAlive(address, settings)
	} else {
		e.stopKeepAlive(address)
	}
}

// onDeviceDisconnected cancels any pending timer and stops a running
// keep-alive generator for the device.
func (e *idleEngine) onDeviceDisconnected(address macaddr.Address) {
	e.mu.Lock()
	delete(e.settings, address)
	e.cancelPendingLocked(address)
	e.mu.Unlock()
	e.stopKeepAlive(address)
}

func (e *idleEngine) cancelPendingLocked(address macaddr.Address) {
	if t, ok := e.pending[address]; ok {
		t.Stop()
		delete(e.pending, address)
	}
}

func (e *idleEngine) startKeepAlive(address macaddr.Address, settings store.DeviceSettings) {
	e.mu.Lock()
	ka, ok := e.keepAlives[address]
	if !ok {
		method := pulse.MethodSilence
		if settings.KeepAliveMethod == store.KeepAliveInfrasound {
			method = pulse.MethodInfrasound
		}
		ka = pulse.NewKeepAlive(e.c.log, method)
		e.keepAlives[address] = ka
	}
	e.mu.Unlock()

	ka.SetTargetSink(pulse.BTSinkName(address, "a2dp_sink"))
	ka.Start()
}

func (e *idleEngine) stopKeepAlive(address macaddr.Address) {
	e.mu.Lock()
	ka, ok := e.keepAlives[address]
	delete(e.keepAlives, address)
	e.mu.Unlock()
	if ok {
		ka.Stop()
	}
}

// onSinkEvent is the pulse.Subscriber callback, wired once at startup. It
// maps the event's sink name back to a managed device by address fragment
// and drives the power_save / auto_disconnect timers.
func (e *idleEngine) onSinkEvent(ev pulse.Event) {
	address, settings, ok := e.lookupBySinkName(ev.SinkName)
	if !ok {
		return
	}

	switch settings.IdleMode {
	case store.IdlePowerSave:
		e.handlePowerSave(address, ev)
	case store.IdleAutoDisconnect:
		e.handleAutoDisconnect(address, ev)
	}
}

func (e *idleEngine) lookupBySinkName(sinkName string) (macaddr.Address, store.DeviceSettings, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for addr, settings := range e.settings {
		if strings.Contains(sinkName, addr.Underscored()) {
			return addr, settings, true
		}
	}
	return "", store.DeviceSettings{}, false
}

// handlePowerSave suspends the sink after the configured delay once it goes
// idle; a transition back to running cancels the pending suspend and, if
// already suspended, leaves the sink suspended (§4.5: a mode switch or a
// running transition never auto-resumes it — only playback traffic does,
// handled transparently by PulseAudio itself on the next stream).
func (e *idleEngine) handlePowerSave(address macaddr.Address, ev pulse.Event) {
	delay := time.Duration(e.delayFor(address).PowerSaveDelay) * time.Second

	switch ev.Kind {
	case pulse.EventSinkIdle:
		e.mu.Lock()
		e.cancelPendingLocked(address)
		timer := time.AfterFunc(delay, func() {
			_ = e.c.pulse.SuspendSink(context.Background(), ev.SinkName)
			live := e.c.live.GetOrCreate(address)
			live.PowerSaveSuspendPending = false
			live.SuspendedSink = ev.SinkName
		})
		e.pending[address] = timer
		e.mu.Unlock()
		e.c.live.GetOrCreate(address).PowerSaveSuspendPending = true

	case pulse.EventSinkRunning:
		e.mu.Lock()
		e.cancelPendingLocked(address)
		e.mu.Unlock()
		e.c.live.GetOrCreate(address).PowerSaveSuspendPending = false
	}
}

// handleAutoDisconnect disconnects the device after the configured idle
// window with no playback; any running transition cancels the pending
// disconnect.
func (e *idleEngine) handleAutoDisconnect(address macaddr.Address, ev pulse.Event) {
	minutes := e.delayFor(address).AutoDisconnectMinutes

	switch ev.Kind {
	case pulse.EventSinkIdle:
		e.mu.Lock()
		e.cancelPendingLocked(address)
		timer := time.AfterFunc(time.Duration(minutes)*time.Minute, func() {
			_ = e.c.Disconnect(context.Background(), address)
		})
		e.pending[address] = timer
		e.mu.Unlock()
		e.c.live.GetOrCreate(address).IdleDisconnectPending = true

	case pulse.EventSinkRunning:
		e.mu.Lock()
		e.cancelPendingLocked(address)
		e.mu.Unlock()
		e.c.live.GetOrCreate(address).IdleDisconnectPending = false
	}
}

func (e *idleEngine) delayFor(address macaddr.Address) store.DeviceSettings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings[address]
}
