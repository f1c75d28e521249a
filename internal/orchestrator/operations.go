package orchestrator

import (
	"context"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/btorch/btaudiod/internal/bluez"
	"github.com/btorch/btaudiod/internal/events"
	"github.com/btorch/btaudiod/internal/macaddr"
	"github.com/btorch/btaudiod/internal/store"
)

// Scan starts (or restarts) a discovery session on the configured adapter
// for duration, returning immediately (§4.3). A second call while a scan
// is running cancels the prior scan first.
func (c *Controller) Scan(duration time.Duration) {
	c.enqueue(func(ctx context.Context) {
		if c.scanCancel != nil {
			c.scanCancel()
		}
		scanCtx, cancel := context.WithCancel(ctx)
		c.scanCancel = cancel

		c.bus.Publish(events.KindNotice, events.Now(), map[string]interface{}{
			"event": "scan_started", "duration_seconds": int(duration.Seconds()),
		})

		if err := c.session.StartDiscovery(scanCtx, c.adapter); err != nil {
			c.bus.Publish(events.KindNotice, events.Now(), map[string]interface{}{
				"event": "scan_finished", "error": err.Error(),
			})
			return
		}

		go c.runScanWindow(scanCtx, duration)
	})
}

func (c *Controller) runScanWindow(ctx context.Context, duration time.Duration) {
	debounce := time.NewTimer(duration)
	defer debounce.Stop()

	select {
	case <-ctx.Done():
	case <-debounce.C:
	}

	c.enqueue(func(ctx context.Context) {
		_ = c.session.StopDiscovery(ctx, c.adapter)
		c.bus.Publish(events.KindNotice, events.Now(), map[string]interface{}{"event": "scan_finished"})
		c.broadcastDeviceList()
	})
}

func (c *Controller) broadcastDeviceList() {
	devices := c.session.EnumerateAudioDevices(c.adapter)
	c.bus.Publish(events.KindDeviceState, events.Now(), devices)
}

// Pair is idempotent: if already paired, the pair step is skipped (§4.3).
func (c *Controller) Pair(ctx context.Context, address macaddr.Address) error {
	result := make(chan error, 1)
	c.enqueue(func(ctx context.Context) { result <- c.pairLocked(ctx, address) })
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) pairLocked(ctx context.Context, address macaddr.Address) error {
	live := c.live.GetOrCreate(address)

	devInfo, known := c.session.Device(address)
	if !known || !devInfo.Paired {
		live.ConnectingInProgress = true
		if err := c.session.Pair(ctx, address); err != nil {
			live.ConnectingInProgress = false
			return fault.Wrap(err, fctx.With(ctx), ftag.With(ftag.Internal), fmsg.With("pair "+string(address)))
		}
	}

	if err := c.session.SetTrusted(ctx, address, true); err != nil {
		c.log.Warn("set trusted failed", "address", address, "error", err)
	}

	name := string(address)
	if devInfo, ok := c.session.Device(address); ok && devInfo.Name != "" {
		name = devInfo.Name
	}

	if _, ok := c.devices.Get(address); !ok {
		d := store.Device{
			Address:     address,
			Name:        name,
			PairedAt:    time.Now(),
			AutoConnect: true,
			Settings:    store.DefaultDeviceSettings(),
		}
		if err := c.devices.Upsert(d); err != nil {
			return err
		}
	}

	return c.connectLocked(ctx, address, true)
}

// Connect issues a BlueZ connect and activates the configured audio
// profile (§4.3 steps 1-10).
func (c *Controller) Connect(ctx context.Context, address macaddr.Address) error {
	result := make(chan error, 1)
	c.enqueue(func(ctx context.Context) { result <- c.connectLocked(ctx, address, false) })
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) connectLocked(ctx context.Context, address macaddr.Address, fromPair bool) error {
	live := c.live.GetOrCreate(address)

	if live.ConnectingInProgress && !fromPair {
		deadline := time.After(pendingConnectWait)
		for live.ConnectingInProgress {
			select {
			case <-deadline:
				goto observe
			case <-time.After(200 * time.Millisecond):
			}
		}
	observe:
		if devInfo, ok := c.session.Device(address); ok && devInfo.Connected {
			return nil
		}
	}

	c.reconnect.cancel(address)
	live.SuppressReconnect = false
	live.ConnectingInProgress = true
	defer func() { live.ConnectingInProgress = false }()

	if err := c.session.Connect(ctx, address); err != nil {
		return fault.Wrap(err, fctx.With(ctx), ftag.With(ftag.Internal), fmsg.With("connect "+string(address)))
	}

	if err := c.waitServicesResolved(ctx, address); err != nil {
		c.log.Warn("services resolved wait timed out", "address", address, "error", err)
	}

	d, ok := c.devices.Get(address)
	if !ok {
		d = store.Device{Address: address, Settings: store.DefaultDeviceSettings()}
	}

	if d.Settings.AVRCPEnabled {
		c.session.WatchAVRCP(ctx, address, c.onAVRCPEvent)
	}

	if err := c.applyProfile(ctx, d); err != nil {
		c.log.Warn("profile activation failed", "address", address, "error", err)
	}

	sink, ok := c.pulse.WaitForBTSink(ctx, address, sinkAppearTimeout, func() bool {
		devInfo, known := c.session.Device(address)
		return known && devInfo.Connected
	})
	if !ok {
		c.log.Warn("bluez sink did not appear", "address", address)
	} else if d.Settings.AudioProfile == store.ProfileA2DP {
		// HFP is disconnected only after A2DP is confirmed up (§4.3 step 9).
		if err := c.session.DisconnectProfile(ctx, address, bluez.UUIDHFP); err != nil {
			c.log.Debug("hfp disconnect after a2dp activation failed", "address", address, "error", err)
		}
		_ = sink
	}

	live.LastConnectAt = time.Now()
	c.idle.onDeviceConnected(address, d.Settings)
	if d.Settings.MPDEnabled {
		c.bridge.Start(address, d.Settings.MPDPort)
	}

	c.broadcastDeviceList()
	return nil
}

func (c *Controller) waitServicesResolved(ctx context.Context, address macaddr.Address) error {
	deadline := time.Now().Add(servicesResolvedTimeout)
	for time.Now().Before(deadline) {
		if devInfo, ok := c.session.Device(address); ok && devInfo.ServicesResolved {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
	return fault.New("services resolved timeout")
}

// Disconnect sets the user-disconnect suppression, cancels any pending
// reconnect, and tears down idle-mode handling and the MPD bridge (§4.3).
func (c *Controller) Disconnect(ctx context.Context, address macaddr.Address) error {
	result := make(chan error, 1)
	c.enqueue(func(ctx context.Context) {
		live := c.live.GetOrCreate(address)
		live.SuppressReconnect = true
		c.reconnect.cancel(address)
		c.idle.onDeviceDisconnected(address)
		c.bridge.Stop(address)

		err := c.session.Disconnect(ctx, address)
		c.broadcastDeviceList()
		result <- err
	})
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ForceReconnect disconnects, waits out the radio-reset window, then
// reconnects — exposed for recovering zombie connections (§4.3).
func (c *Controller) ForceReconnect(ctx context.Context, address macaddr.Address) error {
	if err := c.Disconnect(ctx, address); err != nil {
		c.log.Debug("force reconnect: disconnect step failed", "address", address, "error", err)
	}
	select {
	case <-time.After(forceReconnectGap):
	case <-ctx.Done():
		return ctx.Err()
	}
	return c.Connect(ctx, address)
}

// Forget disconnects, removes the device from every adapter, releases its
// MPD port, and deletes its persisted record (§4.3).
func (c *Controller) Forget(ctx context.Context, address macaddr.Address) error {
	result := make(chan error, 1)
	c.enqueue(func(ctx context.Context) {
		c.reconnect.cancel(address)
		c.idle.onDeviceDisconnected(address)
		c.bridge.Stop(address)
		_ = c.session.Disconnect(ctx, address)

		if d, ok := c.devices.Get(address); ok && d.Settings.MPDPort != 0 {
			c.devices.ReleaseMPDPort(d.Settings.MPDPort)
		}

		err := c.session.RemoveDevice(ctx, address)
		c.live.Remove(address)
		if storeErr := c.devices.Forget(address); storeErr != nil && err == nil {
			err = storeErr
		}
		c.broadcastDeviceList()
		result <- err
	})
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ClearAll disconnects every managed device, wipes the persistent store,
// and clears all in-memory per-device state — used before switching
// adapters (§4.3).
func (c *Controller) ClearAll(ctx context.Context) error {
	result := make(chan error, 1)
	c.enqueue(func(ctx context.Context) {
		c.notice("clearing all devices")
		c.reconnect.suspend()
		defer c.reconnect.resume()

		for _, d := range c.devices.All() {
			c.idle.onDeviceDisconnected(d.Address)
			c.bridge.Stop(d.Address)
			_ = c.session.Disconnect(ctx, d.Address)
			_ = c.session.RemoveDevice(ctx, d.Address)
			c.live.Remove(d.Address)
		}

		err := c.devices.ClearAll()
		c.notice("all devices cleared")
		result <- err
	})
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
