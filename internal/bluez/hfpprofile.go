//go:build linux

package bluez

import (
	"context"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/charmbracelet/log"
	"github.com/godbus/dbus/v5"
)

// nullHFPProfile is a Profile1 handler registered against the HFP UUID that
// immediately closes any inbound connection file descriptor. BlueZ routes
// HFP to us and then fails to establish it, forcing speakers onto AVRCP
// absolute volume instead of AT+VGS (§4.4.2).
type nullHFPProfile struct {
	log        *log.Logger
	conn       *dbus.Conn
	path       dbus.ObjectPath
	registered bool
}

func newNullHFPProfile(logger *log.Logger, conn *dbus.Conn) *nullHFPProfile {
	return &nullHFPProfile{log: logger.With("component", "hfpblock"), conn: conn, path: profilePath}
}

// NewConnection is invoked by BlueZ when an HFP connection arrives; the file
// descriptor is closed immediately without being read from.
func (n *nullHFPProfile) NewConnection(device dbus.ObjectPath, fd dbus.UnixFD, opts map[string]dbus.Variant) *dbus.Error {
	n.log.Debug("closing inbound HFP connection", "device", device)
	_ = dbusCloseFD(fd)
	return nil
}

func (n *nullHFPProfile) RequestDisconnection(device dbus.ObjectPath) *dbus.Error {
	return nil
}

func (n *nullHFPProfile) Release() *dbus.Error {
	return nil
}

func (n *nullHFPProfile) register(ctx context.Context) error {
	if err := n.conn.Export(n, n.path, ifaceProfile1); err != nil {
		return fault.Wrap(err, fctx.With(ctx), ftag.With(ftag.Internal), fmsg.With("export null hfp profile"))
	}

	opts := map[string]dbus.Variant{
		"Name":    dbus.MakeVariant("btaudiod-hfp-block"),
		"Role":    dbus.MakeVariant("client"),
		"Service": dbus.MakeVariant(UUIDHFP),
	}
	manager := n.conn.Object(busName, agentManagerPath)
	if call := manager.Call(ifaceProfileManager+".RegisterProfile", 0, n.path, UUIDHFP, opts); call.Err != nil {
		return fault.Wrap(call.Err, fctx.With(ctx), ftag.With(ftag.Internal), fmsg.With("register null hfp profile"))
	}
	n.registered = true
	return nil
}

func (n *nullHFPProfile) unregister(ctx context.Context) error {
	if !n.registered {
		return nil
	}
	manager := n.conn.Object(busName, agentManagerPath)
	if call := manager.Call(ifaceProfileManager+".UnregisterProfile", 0, n.path); call.Err != nil {
		return fault.Wrap(call.Err, fctx.With(ctx), ftag.With(ftag.Internal), fmsg.With("unregister null hfp profile"))
	}
	n.registered = false
	return nil
}

// RegisterNullHFPProfile registers the blocking HFP profile handler.
// Skipped at startup when any stored device's audio_profile is hfp (§4.3
// step 6); unregistered when any device later opts into HFP (§4.4.2).
func (s *Session) RegisterNullHFPProfile(ctx context.Context) error {
	s.profile = newNullHFPProfile(s.log, s.conn)
	return s.profile.register(ctx)
}

// UnregisterNullHFPProfile reverses RegisterNullHFPProfile.
func (s *Session) UnregisterNullHFPProfile(ctx context.Context) error {
	if s.profile == nil {
		return nil
	}
	return s.profile.unregister(ctx)
}

// HFPSwitchingEnabled reports whether the null HFP handler is currently
// registered, surfaced via GET /api/info's hfp_switching_enabled.
func (s *Session) HFPSwitchingEnabled() bool {
	return s.profile != nil && s.profile.registered
}

func dbusCloseFD(fd dbus.UnixFD) error {
	return closeUnixFD(fd)
}
