package orchestrator

import (
	"context"

	"github.com/btorch/btaudiod/internal/bluez"
	"github.com/btorch/btaudiod/internal/events"
	"github.com/btorch/btaudiod/internal/pulse"
	"github.com/btorch/btaudiod/internal/store"
	"github.com/godbus/dbus/v5"
)

// The HTTP/WebSocket transport is a separate component from the Device
// Lifecycle Controller (§6: "the core only supplies the handlers and
// event stream"); these read-only accessors are its entire view into the
// controller's collaborators. Every type returned here already does its
// own internal synchronization, so calling them off the controller's
// command-loop goroutine is safe, the same way reconnectScheduler already
// calls c.session directly from its own goroutine.

// Session returns the BlueZ session for read-only queries (adapters,
// device enumeration).
func (c *Controller) Session() *bluez.Session { return c.session }

// Devices returns the persisted device-record store.
func (c *Controller) Devices() *store.DeviceStore { return c.devices }

// Settings returns the persisted adapter-settings store.
func (c *Controller) Settings() *store.SettingsStore { return c.settings }

// Live returns the in-memory live-device-state table.
func (c *Controller) Live() *store.LiveTable { return c.live }

// Pulse returns the PulseAudio facade for read-only sink queries.
func (c *Controller) Pulse() *pulse.Facade { return c.pulse }

// Bus returns the event fan-out, for the WS transport to subscribe to.
func (c *Controller) Bus() *events.Bus { return c.bus }

// AdapterPath returns the currently resolved adapter's D-Bus object path.
func (c *Controller) AdapterPath() dbus.ObjectPath { return c.adapter }

// IsScanning reports whether a discovery window is currently open. Unlike
// the other accessors, scanCancel is only ever touched on the command-loop
// goroutine, so this reads it through enqueue rather than directly.
func (c *Controller) IsScanning() bool {
	result := make(chan bool, 1)
	c.enqueue(func(ctx context.Context) { result <- c.scanCancel != nil })
	select {
	case scanning := <-result:
		return scanning
	case <-c.done:
		return false
	}
}
