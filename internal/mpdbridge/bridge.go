// Package mpdbridge defines the contract the Device Lifecycle Controller
// uses to start and stop the per-device MPD command-routing bridge
// mentioned in spec.md §4.4 and §6. The embedded MPD server itself is out
// of scope (SPEC_FULL.md Non-goals); this package owns the interface, a
// no-op default, and ProcessBridge (process.go), which drives a host-installed
// mpd and is the implementation the daemon wires in.
package mpdbridge

import "github.com/btorch/btaudiod/internal/macaddr"

// Bridge starts and stops per-device MPD command routing on the device's
// allocated mpd_port. The daemon uses ProcessBridge, which spawns an mpd
// per device and forwards AVRCP/MPRIS commands onto it; Noop below does
// nothing.
type Bridge interface {
	// Start begins routing MPD protocol commands for address on port.
	// Called once per connect, after the audio profile is active.
	Start(address macaddr.Address, port int)

	// Stop tears down any routing started for address. Safe to call even
	// if Start was never called for that address.
	Stop(address macaddr.Address)
}

// CommandHandler is implemented by bridges that can also forward AVRCP/
// MPRIS commands onto the MPD instance they started. It's optional: the
// orchestrator type-asserts for it rather than requiring it on Bridge,
// since a no-op bridge has nothing to forward to.
type CommandHandler interface {
	HandleCommand(address macaddr.Address, command, detail string)
}

// Noop implements Bridge by doing nothing, for a caller that needs a Bridge
// with no mpd behind it.
type Noop struct{}

func (Noop) Start(macaddr.Address, int) {}
func (Noop) Stop(macaddr.Address)       {}
