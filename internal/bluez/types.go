//go:build linux

package bluez

import (
	"github.com/btorch/btaudiod/internal/macaddr"
	"github.com/godbus/dbus/v5"
)

// AdapterInfo is the read model returned by ListAdapters.
type AdapterInfo struct {
	Path        dbus.ObjectPath
	Interface   string // e.g. "hci0"
	Address     macaddr.Address
	Alias       string
	Modalias    string
	USBVendor   string
	USBProduct  string
	Powered     bool
	Discovering bool
}

// DeviceInfo is the read model returned by EnumerateAudioDevices and is also
// used to report offline/paired devices that are in the persistent store but
// not currently visible on the bus.
type DeviceInfo struct {
	Path             dbus.ObjectPath
	AdapterPath      dbus.ObjectPath
	Address          macaddr.Address
	Name             string
	Alias            string
	Class            uint32
	Type             string
	UUIDs            []string
	Paired           bool
	Trusted          bool
	Connected        bool
	Blocked          bool
	RSSI             int16
	Percentage       *uint8
	HasTransport     bool
	BearerBREDR      bool
	BearerLE         bool
	ServicesResolved bool
}
