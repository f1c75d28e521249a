//go:build linux

package bluez

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/btorch/btaudiod/internal/macaddr"
	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
)

// AVRCPEvent is a synthetic or live MediaPlayer1 property observation for a
// connected device, consumed by the Event Fan-out.
type AVRCPEvent struct {
	Address  macaddr.Address
	Property string
	Value    interface{}
}

// avrcpWatchCooldown prevents devices without a remote-side player from
// being hammered with repeated child-node searches (§4.4.1).
const avrcpWatchCooldown = 60 * time.Second

type avrcpWatch struct {
	mu          sync.Mutex
	lastAttempt map[macaddr.Address]time.Time

	activeMu      sync.Mutex
	activeAddress macaddr.Address
	activeDeadline time.Time
}

func newAVRCPWatch() *avrcpWatch {
	return &avrcpWatch{lastAttempt: make(map[macaddr.Address]time.Time)}
}

// WatchAVRCP introspects the device object for a child node named
// "player*" (looked up to 3 times with 2s spacing per §5's AVRCP watch
// retry timeout), emits synthetic events for the player's initial property
// snapshot, and marks the device as the active player. It does not
// subscribe to later MediaPlayer1 property changes.
func (s *Session) WatchAVRCP(ctx context.Context, address macaddr.Address, onEvent func(AVRCPEvent)) {
	s.avrcp.mu.Lock()
	last, seen := s.avrcp.lastAttempt[address]
	if seen && time.Since(last) < avrcpWatchCooldown {
		s.avrcp.mu.Unlock()
		return
	}
	s.avrcp.lastAttempt[address] = time.Now()
	s.avrcp.mu.Unlock()

	go func() {
		var playerPath dbus.ObjectPath
		for attempt := 0; attempt < 3; attempt++ {
			path, devInfo, ok := s.deviceByAddress(address)
			if !ok {
				return
			}
			_ = devInfo
			if p, found := s.findPlayerNode(path); found {
				playerPath = p
				break
			}
			time.Sleep(2 * time.Second)
		}
		if playerPath == "" {
			s.log.Debug("no AVRCP player node found", "address", address)
			return
		}

		s.emitInitialPlayerSnapshot(playerPath, address, onEvent)
		s.markActivePlayer(address)
	}()
}

func (s *Session) findPlayerNode(devicePath dbus.ObjectPath) (dbus.ObjectPath, bool) {
	var xmlData string
	call := s.conn.Object(busName, devicePath).Call(dbusIntrospectableIface+".Introspect", 0)
	if call.Err != nil {
		return "", false
	}
	if err := call.Store(&xmlData); err != nil {
		return "", false
	}
	node, err := introspect.NewNode(xmlData, "", "")
	if err != nil {
		return "", false
	}
	for _, child := range node.Children {
		if strings.HasPrefix(child.Name, "player") {
			return devicePath + "/" + dbus.ObjectPath(child.Name), true
		}
	}
	return "", false
}

func (s *Session) emitInitialPlayerSnapshot(playerPath dbus.ObjectPath, address macaddr.Address, onEvent func(AVRCPEvent)) {
	var props map[string]dbus.Variant
	call := s.conn.Object(busName, playerPath).Call(dbusGetAllPropertiesIface, 0, ifaceMediaPlayer)
	if call.Err != nil {
		return
	}
	if err := call.Store(&props); err != nil {
		return
	}
	for k, v := range props {
		onEvent(AVRCPEvent{Address: address, Property: k, Value: v.Value()})
		if k == "Status" {
			s.markActivePlayer(address)
		}
	}
}

// markActivePlayer remembers the last device whose Status property changed,
// valid for a short window, per §4.4.1's dispatch rule.
func (s *Session) markActivePlayer(address macaddr.Address) {
	s.avrcp.activeMu.Lock()
	defer s.avrcp.activeMu.Unlock()
	s.avrcp.activeAddress = address
	s.avrcp.activeDeadline = time.Now().Add(2 * time.Second)
}

// ActiveAVRCPDevice returns the device an incoming MPRIS command should be
// routed to, if the dispatch window hasn't expired.
func (s *Session) ActiveAVRCPDevice() (macaddr.Address, bool) {
	s.avrcp.activeMu.Lock()
	defer s.avrcp.activeMu.Unlock()
	if s.avrcp.activeAddress == "" || time.Now().After(s.avrcp.activeDeadline) {
		return "", false
	}
	return s.avrcp.activeAddress, true
}

// MediaControlPlayerPath reads MediaControl1.Player for address, used to
// confirm a device's AVRCP session is bound to our MPRIS object (scenario 4
// of §8's end-to-end tests).
func (s *Session) MediaControlPlayerPath(address macaddr.Address) (dbus.ObjectPath, error) {
	path, _, ok := s.deviceByAddress(address)
	if !ok {
		return "", ErrDeviceNotFound
	}
	var playerObj dbus.ObjectPath
	call := s.conn.Object(busName, path).Call(dbusGetPropertiesIface, 0, ifaceMediaControl, "Player")
	if call.Err != nil {
		return "", ErrMediaPlayerNotConnected
	}
	var v dbus.Variant
	if err := call.Store(&v); err != nil {
		return "", ErrMediaPlayerNotConnected
	}
	playerObj, _ = v.Value().(dbus.ObjectPath)
	return playerObj, nil
}
