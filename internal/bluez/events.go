//go:build linux

package bluez

import "github.com/godbus/dbus/v5"

// EventKind discriminates the typed event stream the Watcher produces.
type EventKind int

const (
	EventInterfacesAdded EventKind = iota
	EventInterfacesRemoved
	EventPropertiesChanged
)

// Event is the normalized, de-noised form of a raw BlueZ object-manager or
// property-changed signal, as produced by §4.1's watch() contract.
type Event struct {
	Kind        EventKind
	Path        dbus.ObjectPath
	Iface       string
	Ifaces      []string
	Changed     map[string]interface{}
	Invalidated []string
}

// noisyDeviceProps are demoted to debug-only and never propagate as a core
// event when they are the only properties that changed, per §4.1.
var noisyDeviceProps = map[string]bool{
	"RSSI":              true,
	"ManufacturerData":  true,
	"TxPower":           true,
	"ServiceData":       true,
}

// isNoiseOnly reports whether changed contains only noisy property names.
func isNoiseOnly(iface string, changed map[string]interface{}) bool {
	if iface != ifaceDevice {
		return false
	}
	for k := range changed {
		if !noisyDeviceProps[k] {
			return false
		}
	}
	return len(changed) > 0
}
