//go:build linux

package bluez

import (
	"context"

	"github.com/godbus/dbus/v5"
)

// RegisterPlayer constructs and registers the MPRIS player against the
// given adapter's Media1 object (§4.3 step 4).
func (s *Session) RegisterPlayer(ctx context.Context, adapter dbus.ObjectPath, callback CommandCallback) error {
	s.player = NewPlayer(s.log, s.conn, callback)
	return s.player.Register(ctx, adapter)
}

// UnregisterPlayer reverses RegisterPlayer.
func (s *Session) UnregisterPlayer(ctx context.Context, adapter dbus.ObjectPath) error {
	if s.player == nil {
		return nil
	}
	return s.player.Unregister(ctx, adapter)
}

// SetPlaybackStatus forwards to the registered player, if any.
func (s *Session) SetPlaybackStatus(status string) {
	if s.player != nil {
		s.player.SetPlaybackStatus(status)
	}
}
