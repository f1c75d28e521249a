package store

import (
	"time"

	"github.com/btorch/btaudiod/internal/macaddr"
	"github.com/godbus/dbus/v5"
	"github.com/puzpuzpuz/xsync/v3"
)

// LiveDevice is the in-memory, per-address state the Controller tracks
// alongside the persisted Device record (§3's Live Device State).
type LiveDevice struct {
	Path                     dbus.ObjectPath
	ConnectingInProgress     bool
	SuppressReconnect        bool
	LastConnectAt            time.Time
	LastSignaledAVRCPVolume  int
	A2DPActivationAttempts   int
	KeepAliveActive          bool
	PowerSaveSuspendPending  bool
	IdleDisconnectPending    bool
	SuspendedSink            string
}

// LiveTable is the single in-memory table of LiveDevice, one entry per
// address currently known to the Controller (connected, connecting, or
// recently disconnected with a pending scheduled task).
type LiveTable struct {
	entries *xsync.MapOf[macaddr.Address, *LiveDevice]
}

// NewLiveTable constructs an empty LiveTable.
func NewLiveTable() *LiveTable {
	return &LiveTable{entries: xsync.NewMapOf[macaddr.Address, *LiveDevice]()}
}

// GetOrCreate returns the LiveDevice for address, creating a zero-value
// entry if none exists yet. The returned pointer is shared; callers must
// not retain it past the Controller's single goroutine (§5).
func (t *LiveTable) GetOrCreate(address macaddr.Address) *LiveDevice {
	actual, _ := t.entries.LoadOrStore(address, &LiveDevice{})
	return actual
}

// Get returns the LiveDevice for address, if one exists.
func (t *LiveTable) Get(address macaddr.Address) (*LiveDevice, bool) {
	return t.entries.Load(address)
}

// Remove drops the live state for address, e.g. once a disconnect has
// fully settled and no scheduled task references it anymore.
func (t *LiveTable) Remove(address macaddr.Address) {
	t.entries.Delete(address)
}
