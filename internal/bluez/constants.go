//go:build linux

package bluez

import (
	"github.com/godbus/dbus/v5"
	"github.com/rs/xid"
)

// D-Bus and BlueZ interface/bus names.
const (
	dbusGetPropertiesIface    = "org.freedesktop.DBus.Properties.Get"
	dbusGetAllPropertiesIface = "org.freedesktop.DBus.Properties.GetAll"
	dbusSetPropertiesIface    = "org.freedesktop.DBus.Properties.Set"
	dbusObjectManagerIface    = "org.freedesktop.DBus.ObjectManager.GetManagedObjects"
	dbusIntrospectableIface   = "org.freedesktop.DBus.Introspectable"

	dbusSignalAddMatch          = "org.freedesktop.DBus.AddMatch"
	dbusSignalPropertyChanged   = "org.freedesktop.DBus.Properties.PropertiesChanged"
	dbusSignalInterfacesAdded   = "org.freedesktop.DBus.ObjectManager.InterfacesAdded"
	dbusSignalInterfacesRemoved = "org.freedesktop.DBus.ObjectManager.InterfacesRemoved"

	busName = "org.bluez"

	ifaceAdapter        = "org.bluez.Adapter1"
	ifaceDevice         = "org.bluez.Device1"
	ifaceBattery        = "org.bluez.Battery1"
	ifaceMediaControl   = "org.bluez.MediaControl1"
	ifaceMediaPlayer    = "org.bluez.MediaPlayer1"
	ifaceMediaTransport = "org.bluez.MediaTransport1"
	ifaceMedia1         = "org.bluez.Media1"
	ifaceProfileManager = "org.bluez.ProfileManager1"
	ifaceProfile1       = "org.bluez.Profile1"

	ifaceAgent        = "org.bluez.Agent1"
	ifaceAgentManager = "org.bluez.AgentManager1"

	ifaceMediaPlayer2 = "org.mpris.MediaPlayer2"
	ifacePlayer       = "org.mpris.MediaPlayer2.Player"
)

var agentManagerPath = dbus.ObjectPath("/org/bluez")

// agentPath and playerPath are randomized so repeated daemon restarts never
// collide with a stale registration left over from a crashed prior process.
var (
	agentPath  = dbus.ObjectPath("/org/btaudiod/agent/" + xid.New().String())
	playerPath = dbus.ObjectPath("/org/btaudiod/player/" + xid.New().String())
	profilePath = dbus.ObjectPath("/org/btaudiod/hfpblock/" + xid.New().String())
)

// Bluetooth profile/service UUIDs referenced by §6 of the external interface
// contract.
const (
	UUIDA2DPSink    = "0000110b-0000-1000-8000-00805f9b34fb"
	UUIDA2DPSource  = "0000110a-0000-1000-8000-00805f9b34fb"
	UUIDAVRCPTarget = "0000110c-0000-1000-8000-00805f9b34fb"
	UUIDAVRCPCtl    = "0000110e-0000-1000-8000-00805f9b34fb"
	UUIDHFP         = "0000111e-0000-1000-8000-00805f9b34fb"
	UUIDHSP         = "00001108-0000-1000-8000-00805f9b34fb"
	UUIDLEAudioPACS = "00001850-0000-1000-8000-00805f9b34fb"
	UUIDLEAudioASCS = "0000184e-0000-1000-8000-00805f9b34fb"
)

// sinkUUIDs is the set that qualifies a device as an audio sink candidate.
var sinkUUIDs = map[string]bool{
	UUIDA2DPSink: true,
	UUIDHFP:      true,
	UUIDHSP:      true,
}
