package orchestrator

import (
	"context"

	"github.com/btorch/btaudiod/internal/bluez"
	"github.com/btorch/btaudiod/internal/events"
	"github.com/btorch/btaudiod/internal/mpdbridge"
	"github.com/btorch/btaudiod/internal/pulse"
)

// onMPRISCommand is the bluez.CommandCallback registered with the MPRIS
// player; every successful invocation is broadcast for the WS transport,
// replayable from the MPRIS ring buffer, and forwarded to the MPD bridge
// for whichever device currently holds the active AVRCP session (§4.4.1,
// §4.7).
func (c *Controller) onMPRISCommand(command, detail string) {
	c.bus.Publish(events.KindMPRIS, events.Now(), map[string]string{
		"command": command,
		"detail":  detail,
	})

	if handler, ok := c.bridge.(mpdbridge.CommandHandler); ok {
		if address, ok := c.session.ActiveAVRCPDevice(); ok {
			handler.HandleCommand(address, command, detail)
		}
	}
}

// onAVRCPEvent is the bluez.WatchAVRCP callback; every property observation
// is broadcast for the WS transport and kept in the AVRCP ring buffer.
func (c *Controller) onAVRCPEvent(ev bluez.AVRCPEvent) {
	c.bus.Publish(events.KindAVRCP, events.Now(), map[string]interface{}{
		"address":  string(ev.Address),
		"property": ev.Property,
		"value":    ev.Value,
	})
}

// onPulseEvent is the pulse.Subscriber callback, wired once at startup; it
// drives the idle engine and republishes each event on the bus as a sink
// snapshot event. Sink volume/state for the HTTP API is read on demand
// rather than cached from this stream.
func (c *Controller) onPulseEvent(ev pulse.Event) {
	c.idle.onSinkEvent(ev)
	c.bus.Publish(events.KindSinkSnapshot, events.Now(), map[string]interface{}{
		"sink":   ev.SinkName,
		"kind":   string(ev.Kind),
		"volume": ev.VolumePct,
		"mute":   ev.Mute,
	})
}

// OnPulseEvent is the exported form, passed as the callback when
// constructing pulse.NewSubscriber during wiring.
func (c *Controller) OnPulseEvent(ev pulse.Event) { c.onPulseEvent(ev) }

// reconnectAll fans out one reconnect task per auto-connect device, used at
// startup to resume devices that were connected when the daemon last
// stopped (§4.6).
func (c *Controller) reconnectAll(ctx context.Context) {
	settings := c.settings.Get()
	if !settings.AutoReconnect {
		return
	}
	for _, d := range c.devices.All() {
		if !d.AutoConnect {
			continue
		}
		if devInfo, ok := c.session.Device(d.Address); ok && devInfo.Connected {
			continue
		}
		c.reconnect.schedule(d.Address)
	}
}
