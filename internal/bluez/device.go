//go:build linux

package bluez

import (
	"context"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/btorch/btaudiod/internal/macaddr"
)

// Device operations address devices by MAC rather than by a cached D-Bus
// path, per §9: "never cache the adapter path inside a device handle."

// Pair invokes BlueZ Pair on the device currently known at address.
func (s *Session) Pair(ctx context.Context, address macaddr.Address) error {
	path, d, ok := s.deviceByAddress(address)
	if !ok {
		return fault.Wrap(ErrDeviceNotFound, fctx.With(ctx), ftag.With(ftag.NotFound), fmsg.With("pair"))
	}
	if d.Paired {
		return nil
	}
	return s.call(ctx, path, ifaceDevice+".Pair")
}

// CancelPairing aborts an in-flight pairing attempt.
func (s *Session) CancelPairing(ctx context.Context, address macaddr.Address) error {
	path, _, ok := s.deviceByAddress(address)
	if !ok {
		return fault.Wrap(ErrDeviceNotFound, fctx.With(ctx), ftag.With(ftag.NotFound), fmsg.With("cancel-pairing"))
	}
	return s.call(ctx, path, ifaceDevice+".CancelPairing")
}

// Connect always issues BlueZ Connect even if already connected, since
// pairing's auto-connect only brings up the link layer (§4.3 step 4).
func (s *Session) Connect(ctx context.Context, address macaddr.Address) error {
	path, _, ok := s.deviceByAddress(address)
	if !ok {
		return fault.Wrap(ErrDeviceNotFound, fctx.With(ctx), ftag.With(ftag.NotFound), fmsg.With("connect"))
	}
	return s.call(ctx, path, ifaceDevice+".Connect")
}

// Disconnect issues BlueZ Disconnect for address.
func (s *Session) Disconnect(ctx context.Context, address macaddr.Address) error {
	path, _, ok := s.deviceByAddress(address)
	if !ok {
		return fault.Wrap(ErrDeviceNotFound, fctx.With(ctx), ftag.With(ftag.NotFound), fmsg.With("disconnect"))
	}
	return s.call(ctx, path, ifaceDevice+".Disconnect")
}

// ConnectProfile explicitly connects the named profile UUID, used for the
// A2DP activation guarantee and the HFP escalation chain.
func (s *Session) ConnectProfile(ctx context.Context, address macaddr.Address, uuid string) error {
	path, _, ok := s.deviceByAddress(address)
	if !ok {
		return fault.Wrap(ErrDeviceNotFound, fctx.With(ctx), ftag.With(ftag.NotFound), fmsg.With("connect-profile"))
	}
	return s.call(ctx, path, ifaceDevice+".ConnectProfile", uuid)
}

// DisconnectProfile explicitly disconnects the named profile UUID, used to
// drop HFP after A2DP is confirmed up (§4.3 step 9).
func (s *Session) DisconnectProfile(ctx context.Context, address macaddr.Address, uuid string) error {
	path, _, ok := s.deviceByAddress(address)
	if !ok {
		return fault.Wrap(ErrDeviceNotFound, fctx.With(ctx), ftag.With(ftag.NotFound), fmsg.With("disconnect-profile"))
	}
	return s.call(ctx, path, ifaceDevice+".DisconnectProfile", uuid)
}

// SetTrusted sets Device1.Trusted, used right after a successful pair.
func (s *Session) SetTrusted(ctx context.Context, address macaddr.Address, trusted bool) error {
	path, _, ok := s.deviceByAddress(address)
	if !ok {
		return fault.Wrap(ErrDeviceNotFound, fctx.With(ctx), ftag.With(ftag.NotFound), fmsg.With("set-trusted"))
	}
	call := s.conn.Object(busName, path).Call(dbusSetPropertiesIface, 0, ifaceDevice, "Trusted", trusted)
	if call.Err != nil {
		return fault.Wrap(call.Err, fctx.With(ctx), ftag.With(ftag.Internal), fmsg.With("set trusted"))
	}
	return nil
}

// Device returns the current snapshot for address, or !ok if unknown.
func (s *Session) Device(address macaddr.Address) (DeviceInfo, bool) {
	_, d, ok := s.deviceByAddress(address)
	if !ok {
		return DeviceInfo{}, false
	}
	return *d, true
}

// HasUUID reports whether the device currently advertises uuid.
func (d DeviceInfo) HasUUID(uuid string) bool {
	for _, u := range d.UUIDs {
		if u == uuid {
			return true
		}
	}
	return false
}
