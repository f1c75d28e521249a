package orchestrator

import (
	"context"
	"time"

	"github.com/btorch/btaudiod/internal/bluez"
	"github.com/btorch/btaudiod/internal/macaddr"
	"github.com/btorch/btaudiod/internal/pulse"
	"github.com/btorch/btaudiod/internal/store"
)

// applyProfile activates the configured audio profile for a connected
// device, escalating through BlueZ when direct PulseAudio activation
// fails (§4.2, §4.3 step 7).
func (c *Controller) applyProfile(ctx context.Context, d store.Device) error {
	switch d.Settings.AudioProfile {
	case store.ProfileHFP:
		return c.activateWithEscalation(ctx, d.Address, pulse.ProfileHFP, bluez.UUIDHFP)
	default:
		return c.guaranteeA2DP(ctx, d.Address)
	}
}

// activateWithEscalation tries PulseAudio card-profile activation directly;
// on failure it asks BlueZ to (re)connect the owning profile and retries
// once before giving up (§4.4.2, null HFP handler path).
func (c *Controller) activateWithEscalation(ctx context.Context, address macaddr.Address, kind pulse.ProfileKind, uuid string) error {
	if _, err := c.pulse.ActivateBTCardProfile(ctx, address, kind); err == nil {
		return nil
	}

	if err := c.session.ConnectProfile(ctx, address, uuid); err != nil {
		c.log.Debug("profile reconnect failed", "address", address, "uuid", uuid, "error", err)
	}

	select {
	case <-time.After(2 * time.Second):
	case <-ctx.Done():
		return ctx.Err()
	}

	_, err := c.pulse.ActivateBTCardProfile(ctx, address, kind)
	return err
}

// guaranteeA2DP implements the A2DP activation guarantee of §4.4.3: verify
// the card exposes an A2DP sink profile, activate it, and escalate through
// a profile-level reconnect and then a full device disconnect/reconnect
// cycle — "the only reliable way to recover devices stuck in LE-only
// mode" — before giving up. Capped at a2dpActivationCap consecutive
// failures per device so a device stuck without an A2DP-capable card
// doesn't spin forever.
func (c *Controller) guaranteeA2DP(ctx context.Context, address macaddr.Address) error {
	live := c.live.GetOrCreate(address)

	if live.A2DPActivationAttempts >= a2dpActivationCap {
		return nil
	}

	if c.a2dpSinkConfirmed(ctx, address) {
		live.A2DPActivationAttempts = 0
		return nil
	}

	live.A2DPActivationAttempts++
	c.log.Warn("a2dp sink not confirmed, forcing profile reconnect", "address", address, "attempt", live.A2DPActivationAttempts)

	if err := c.session.DisconnectProfile(ctx, address, bluez.UUIDA2DPSink); err != nil {
		c.log.Debug("a2dp disconnect during guarantee cycle failed", "address", address, "error", err)
	}
	if err := c.wait(ctx, 1*time.Second); err != nil {
		return err
	}
	if err := c.session.ConnectProfile(ctx, address, bluez.UUIDA2DPSink); err != nil {
		c.log.Debug("a2dp reconnect during guarantee cycle failed", "address", address, "error", err)
	}

	if c.a2dpSinkConfirmed(ctx, address) {
		live.A2DPActivationAttempts = 0
		return nil
	}

	// Last resort (§4.4.3): a profile-level cycle alone doesn't recover
	// devices that dropped into LE-only mode, so force a full ACL
	// disconnect/reconnect and retry activation once more.
	c.log.Warn("a2dp sink still unconfirmed, forcing full device reconnect", "address", address)
	if err := c.session.Disconnect(ctx, address); err != nil {
		c.log.Debug("device disconnect during guarantee cycle failed", "address", address, "error", err)
	}
	if err := c.wait(ctx, forceReconnectGap); err != nil {
		return err
	}
	if err := c.session.Connect(ctx, address); err != nil {
		return err
	}

	_, err := c.pulse.ActivateBTCardProfile(ctx, address, pulse.ProfileA2DP)
	if err != nil {
		return err
	}
	live.A2DPActivationAttempts = 0
	return nil
}

// a2dpSinkConfirmed reports whether the A2DP card profile is active and the
// corresponding PulseAudio sink is up and not suspended.
func (c *Controller) a2dpSinkConfirmed(ctx context.Context, address macaddr.Address) bool {
	if _, err := c.pulse.ActivateBTCardProfile(ctx, address, pulse.ProfileA2DP); err != nil {
		return false
	}
	sink, ok, err := c.pulse.GetSinkForAddress(ctx, address)
	return err == nil && ok && sink.State != pulse.SinkSuspended
}

// wait blocks for d or returns ctx's error if it ends first.
func (c *Controller) wait(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// refreshAVRCPSession implements the §4.4.4 AVRCP session refresh recovery
// sequence for a device found already connected at startup: cycle the
// AVRCP profiles off and on, force a full ACL disconnect/reconnect, then
// re-register the MPRIS player so the remote's transport controls bind to
// a fresh AVRCP session.
func (c *Controller) refreshAVRCPSession(ctx context.Context, address macaddr.Address) {
	if err := c.session.DisconnectProfile(ctx, address, bluez.UUIDAVRCPTarget); err != nil {
		c.log.Debug("avrcp target disconnect during session refresh failed", "address", address, "error", err)
	}
	if err := c.session.DisconnectProfile(ctx, address, bluez.UUIDAVRCPCtl); err != nil {
		c.log.Debug("avrcp controller disconnect during session refresh failed", "address", address, "error", err)
	}
	if err := c.wait(ctx, 1*time.Second); err != nil {
		return
	}
	if err := c.session.ConnectProfile(ctx, address, bluez.UUIDAVRCPTarget); err != nil {
		c.log.Debug("avrcp target reconnect during session refresh failed", "address", address, "error", err)
	}
	if err := c.session.ConnectProfile(ctx, address, bluez.UUIDAVRCPCtl); err != nil {
		c.log.Debug("avrcp controller reconnect during session refresh failed", "address", address, "error", err)
	}

	if err := c.session.Disconnect(ctx, address); err != nil {
		c.log.Debug("device disconnect during avrcp session refresh failed", "address", address, "error", err)
	}
	if err := c.wait(ctx, forceReconnectGap); err != nil {
		return
	}
	if err := c.session.Connect(ctx, address); err != nil {
		c.log.Warn("device reconnect during avrcp session refresh failed", "address", address, "error", err)
		return
	}

	if err := c.session.RegisterPlayer(ctx, c.adapter, c.onMPRISCommand); err != nil {
		c.log.Warn("mpris re-registration after avrcp session refresh failed", "address", address, "error", err)
	}
}
