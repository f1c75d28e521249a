//go:build linux

// Package bluez watches and drives the BlueZ object tree over the system
// message bus: adapters, devices, the pairing agent, the exported MPRIS
// player, and the optional null HFP profile handler.
package bluez

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/btorch/btaudiod/internal/macaddr"
	"github.com/charmbracelet/log"
	"github.com/godbus/dbus/v5"
)

// reconnectBaseDelay and reconnectMaxDelay bound the backoff the watcher
// uses to re-establish the bus connection after the signal channel closes
// unexpectedly (§4.1 failure semantics).
const (
	reconnectBaseDelay = 1 * time.Second
	reconnectMaxDelay  = 30 * time.Second
)

// Session owns the system bus connection and the in-memory object-tree
// mirror built from GetManagedObjects plus live InterfacesAdded/Removed and
// PropertiesChanged signals.
type Session struct {
	log  *log.Logger
	conn *dbus.Conn

	mu       sync.RWMutex
	adapters map[dbus.ObjectPath]*AdapterInfo
	devices  map[dbus.ObjectPath]*DeviceInfo

	events chan Event

	agent   *pairingAgent
	player  *Player
	profile *nullHFPProfile
	avrcp   *avrcpWatch

	sigCh chan *dbus.Signal
	stop  chan struct{}
	done  chan struct{}
}

// NewSession constructs a Session without connecting to the bus yet.
func NewSession(logger *log.Logger) *Session {
	if logger == nil {
		logger = log.Default()
	}
	return &Session{
		log:      logger.With("component", "bluez"),
		adapters: make(map[dbus.ObjectPath]*AdapterInfo),
		devices:  make(map[dbus.ObjectPath]*DeviceInfo),
		events:   make(chan Event, 256),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		avrcp:    newAVRCPWatch(),
	}
}

// Start connects the system bus, takes an initial GetManagedObjects
// snapshot, registers the match rule for org.bluez signals and begins the
// dispatch goroutine. It mirrors the teacher's BluezSession.Start/refreshStore
// shape.
func (s *Session) Start(ctx context.Context) error {
	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return fault.Wrap(err,
			fctx.With(ctx),
			ftag.With(ftag.Internal),
			fmsg.With("connect system bus"),
		)
	}
	s.conn = conn

	if err := s.refresh(ctx); err != nil {
		return err
	}

	call := conn.BusObject().Call(dbusSignalAddMatch, 0,
		"type='signal',sender='org.bluez'")
	if call.Err != nil {
		return fault.Wrap(call.Err,
			fctx.With(ctx),
			ftag.With(ftag.Internal),
			fmsg.With("register bluez signal match"),
		)
	}

	s.sigCh = make(chan *dbus.Signal, 256)
	conn.Signal(s.sigCh)

	go s.watch(ctx)

	return nil
}

// Stop closes the system bus connection and stops the dispatch goroutine.
func (s *Session) Stop() {
	close(s.stop)
	<-s.done
	if s.conn != nil {
		_ = s.conn.Close()
	}
}

// Events returns the normalized event stream. Callers should treat it as
// possibly-gapped across a bus reconnect and re-sync via EnumerateAudioDevices.
func (s *Session) Events() <-chan Event { return s.events }

func (s *Session) refresh(ctx context.Context) error {
	var objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	err := s.conn.Object(busName, "/").Call(dbusObjectManagerIface, 0).Store(&objects)
	if err != nil {
		return fault.Wrap(err,
			fctx.With(ctx),
			ftag.With(ftag.Internal),
			fmsg.With("get managed objects"),
		)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for path, ifaces := range objects {
		for iface, props := range ifaces {
			s.applyLocked(path, iface, props)
		}
	}
	return nil
}

func (s *Session) watch(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		case sig, ok := <-s.sigCh:
			if !ok {
				if !s.reconnectLoop(ctx) {
					return
				}
				continue
			}
			s.dispatch(sig)
		}
	}
}

// reconnectLoop re-dials the system bus and re-subscribes the org.bluez
// match rule after the signal channel closes, retrying with exponential
// backoff until it succeeds or the watcher is stopped. Returns false if
// stop/ctx ended the watcher instead of a successful reconnect.
func (s *Session) reconnectLoop(ctx context.Context) bool {
	delay := reconnectBaseDelay
	for {
		s.log.Warn("bluez signal channel closed, reconnecting", "delay", delay)
		select {
		case <-s.stop:
			return false
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}

		if err := s.reconnectBus(ctx); err != nil {
			s.log.Warn("bluez bus reconnect failed", "error", err)
			delay *= 2
			if delay > reconnectMaxDelay {
				delay = reconnectMaxDelay
			}
			continue
		}

		s.log.Info("bluez bus reconnected")
		return true
	}
}

// reconnectBus dials a fresh system bus connection, re-snapshots the object
// tree, and re-registers the org.bluez signal match, mirroring Start's setup.
func (s *Session) reconnectBus(ctx context.Context) error {
	if s.conn != nil {
		_ = s.conn.Close()
	}

	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return fault.Wrap(err, fctx.With(ctx), ftag.With(ftag.Internal), fmsg.With("reconnect system bus"))
	}
	s.conn = conn

	if err := s.refresh(ctx); err != nil {
		return err
	}

	call := conn.BusObject().Call(dbusSignalAddMatch, 0,
		"type='signal',sender='org.bluez'")
	if call.Err != nil {
		return fault.Wrap(call.Err,
			fctx.With(ctx),
			ftag.With(ftag.Internal),
			fmsg.With("register bluez signal match"),
		)
	}

	s.sigCh = make(chan *dbus.Signal, 256)
	conn.Signal(s.sigCh)
	return nil
}

// dispatch decodes a raw signal into store mutations and a normalized Event,
// following the same per-interface branching as the teacher's parseSignalData.
func (s *Session) dispatch(sig *dbus.Signal) {
	switch sig.Name {
	case dbusSignalPropertyChanged:
		s.onPropertiesChanged(sig)
	case dbusSignalInterfacesAdded:
		s.onInterfacesAdded(sig)
	case dbusSignalInterfacesRemoved:
		s.onInterfacesRemoved(sig)
	}
}

func (s *Session) onPropertiesChanged(sig *dbus.Signal) {
	if len(sig.Body) < 3 {
		return
	}
	iface, ok := sig.Body[0].(string)
	if !ok {
		return
	}
	changedVariants, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return
	}
	invalidated, _ := sig.Body[2].([]string)

	changed := make(map[string]interface{}, len(changedVariants))
	for k, v := range changedVariants {
		changed[k] = v.Value()
	}

	s.mu.Lock()
	s.applyLocked(sig.Path, iface, changedVariants)
	s.mu.Unlock()

	if isNoiseOnly(iface, changed) {
		s.log.Debug("demoted property change", "path", sig.Path, "iface", iface)
		return
	}

	s.emit(Event{
		Kind:        EventPropertiesChanged,
		Path:        sig.Path,
		Iface:       iface,
		Changed:     changed,
		Invalidated: invalidated,
	})
}

func (s *Session) onInterfacesAdded(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}
	path, ok := sig.Body[0].(dbus.ObjectPath)
	if !ok {
		return
	}
	ifaces, ok := sig.Body[1].(map[string]map[string]dbus.Variant)
	if !ok {
		return
	}

	names := make([]string, 0, len(ifaces))
	s.mu.Lock()
	for iface, props := range ifaces {
		names = append(names, iface)
		s.applyLocked(path, iface, props)
	}
	s.mu.Unlock()

	s.emit(Event{Kind: EventInterfacesAdded, Path: path, Ifaces: names})
}

func (s *Session) onInterfacesRemoved(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}
	path, ok := sig.Body[0].(dbus.ObjectPath)
	if !ok {
		return
	}
	ifaces, _ := sig.Body[1].([]string)

	s.mu.Lock()
	for _, iface := range ifaces {
		switch iface {
		case ifaceAdapter:
			delete(s.adapters, path)
		case ifaceDevice:
			delete(s.devices, path)
		}
	}
	s.mu.Unlock()

	s.emit(Event{Kind: EventInterfacesRemoved, Path: path, Ifaces: ifaces})
}

func (s *Session) emit(e Event) {
	select {
	case s.events <- e:
	default:
		s.log.Warn("event stream full, dropping event", "kind", e.Kind, "path", e.Path)
	}
}

// applyLocked decodes the given interface's properties into the adapter or
// device store entry at path. Caller must hold s.mu.
func (s *Session) applyLocked(path dbus.ObjectPath, iface string, props map[string]dbus.Variant) {
	switch iface {
	case ifaceAdapter:
		a := s.adapters[path]
		if a == nil {
			a = &AdapterInfo{Path: path, Interface: string(pathBase(path))}
			s.adapters[path] = a
		}
		if v, ok := props["Address"]; ok {
			if addrStr, ok2 := v.Value().(string); ok2 {
				if parsed, err := macaddr.Parse(addrStr); err == nil {
					a.Address = parsed
				}
			}
		}
		if v, ok := props["Alias"]; ok {
			a.Alias, _ = v.Value().(string)
		}
		if v, ok := props["Modalias"]; ok {
			a.Modalias, _ = v.Value().(string)
			a.USBVendor, a.USBProduct = parseModalias(a.Modalias)
		}
		if v, ok := props["Powered"]; ok {
			a.Powered, _ = v.Value().(bool)
		}
		if v, ok := props["Discovering"]; ok {
			a.Discovering, _ = v.Value().(bool)
		}

	case ifaceDevice:
		d := s.devices[path]
		if d == nil {
			d = &DeviceInfo{Path: path, AdapterPath: dbus.ObjectPath(parentPath(path))}
			s.devices[path] = d
		}
		if v, ok := props["Address"]; ok {
			if addrStr, ok2 := v.Value().(string); ok2 {
				if parsed, err := macaddr.Parse(addrStr); err == nil {
					d.Address = parsed
				}
			}
		}
		if v, ok := props["Name"]; ok {
			d.Name, _ = v.Value().(string)
		}
		if v, ok := props["Alias"]; ok {
			d.Alias, _ = v.Value().(string)
		}
		if v, ok := props["Class"]; ok {
			if c, ok2 := v.Value().(uint32); ok2 {
				d.Class = c
				d.Type = DeviceTypeFromClass(c)
			}
		}
		if v, ok := props["UUIDs"]; ok {
			d.UUIDs, _ = v.Value().([]string)
		}
		if v, ok := props["Paired"]; ok {
			d.Paired, _ = v.Value().(bool)
		}
		if v, ok := props["Trusted"]; ok {
			d.Trusted, _ = v.Value().(bool)
		}
		if v, ok := props["Connected"]; ok {
			d.Connected, _ = v.Value().(bool)
		}
		if v, ok := props["Blocked"]; ok {
			d.Blocked, _ = v.Value().(bool)
		}
		if v, ok := props["RSSI"]; ok {
			if r, ok2 := v.Value().(int16); ok2 {
				d.RSSI = r
			}
		}
		if v, ok := props["ServicesResolved"]; ok {
			d.ServicesResolved, _ = v.Value().(bool)
		}

	case ifaceBattery:
		// Battery1 lives on the device object itself; percentage is folded
		// into the device record at the same path. Caller already holds the
		// write lock.
		if d := s.devices[path]; d != nil {
			if v, ok := props["Percentage"]; ok {
				if p, ok2 := v.Value().(byte); ok2 {
					pp := uint8(p)
					d.Percentage = &pp
				}
			}
		}

	case ifaceMediaTransport:
		devPath := dbus.ObjectPath(parentPath(path))
		if d := s.devices[devPath]; d != nil {
			d.HasTransport = true
		}
	}
}

func (s *Session) deviceAt(path dbus.ObjectPath) *DeviceInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.devices[path]
}

func pathBase(p dbus.ObjectPath) string {
	parts := strings.Split(string(p), "/")
	return parts[len(parts)-1]
}

func parentPath(p dbus.ObjectPath) string {
	s := string(p)
	idx := strings.LastIndex(s, "/")
	if idx <= 0 {
		return s
	}
	return s[:idx]
}

// parseModalias extracts "usb:vNNNNpNNNN..." vendor/product hex codes, when
// the adapter's Modalias advertises a USB identity.
func parseModalias(modalias string) (vendor, product string) {
	if !strings.HasPrefix(modalias, "usb:") {
		return "", ""
	}
	fields := strings.Split(strings.TrimPrefix(modalias, "usb:"), "p")
	if len(fields) != 2 {
		return "", ""
	}
	vendor = strings.TrimPrefix(fields[0], "v")
	idx := strings.IndexAny(fields[1], "dD")
	if idx > 0 {
		product = fields[1][:idx]
	} else {
		product = fields[1]
	}
	return vendor, product
}

// ListAdapters returns the current adapter set, per §4.1's list_adapters.
func (s *Session) ListAdapters() []AdapterInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AdapterInfo, 0, len(s.adapters))
	for _, a := range s.adapters {
		out = append(out, *a)
	}
	return out
}

// ResolveAdapter translates "auto" | MAC | legacy interface name into a
// concrete adapter path, per §4.1's resolve_adapter contract.
func (s *Session) ResolveAdapter(spec string) (dbus.ObjectPath, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if spec == "" || strings.EqualFold(spec, "auto") {
		return s.pickAutoLocked()
	}

	if addr, err := macaddr.Parse(spec); err == nil {
		for path, a := range s.adapters {
			if a.Address == addr {
				return path, true, nil
			}
		}
		s.log.Warn("configured adapter not present, falling back to auto", "adapter", spec)
		path, ok, err := s.pickAutoLocked()
		return path, ok, err
	}

	// Legacy interface-name form ("hci0").
	for path, a := range s.adapters {
		if strings.EqualFold(a.Interface, spec) {
			return path, true, nil
		}
	}
	s.log.Warn("configured legacy adapter name not present, falling back to auto", "adapter", spec)
	return s.pickAutoLocked()
}

func (s *Session) pickAutoLocked() (dbus.ObjectPath, bool, error) {
	var firstPath dbus.ObjectPath
	found := false
	for path, a := range s.adapters {
		if !found {
			firstPath = path
			found = true
		}
		if a.Powered {
			return path, true, nil
		}
	}
	return firstPath, found, nil
}

// EnumerateAudioDevices filters the object tree to devices whose UUID set
// (or, failing that, class-of-device) qualifies as an audio sink, per
// §4.1's enumerate_audio_devices contract. Each rejected device is logged
// at debug level on every call; repeated rejections of the same address
// within a scan session are not de-duplicated.
func (s *Session) EnumerateAudioDevices(adapter dbus.ObjectPath) []DeviceInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]DeviceInfo, 0, len(s.devices))
	for _, d := range s.devices {
		if d.AdapterPath != adapter {
			continue
		}
		reason := classifyUUIDs(d.UUIDs)
		if reason == ReasonNoUUIDs {
			reason = classifyByClass(d.Class)
		}
		if reason != ReasonAccepted && reason != ReasonCandidateByCOD {
			s.log.Debug("rejected device from scan", "address", d.Address, "reason", reason)
			continue
		}
		out = append(out, *d)
	}
	return out
}

// GetManagedObjects exposes a raw snapshot for callers needing transport or
// media-control state beyond the typed views above.
func (s *Session) GetManagedObjects(ctx context.Context) (map[dbus.ObjectPath]map[string]map[string]dbus.Variant, error) {
	var objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	err := s.conn.Object(busName, "/").Call(dbusObjectManagerIface, 0).Store(&objects)
	if err != nil {
		return nil, fault.Wrap(err, fctx.With(ctx), ftag.With(ftag.Internal), fmsg.With("get managed objects"))
	}
	return objects, nil
}

// StartDiscovery starts unfiltered discovery on adapter. BlueZ reference
// counts discovery per client, so this never disturbs the host's own scans.
func (s *Session) StartDiscovery(ctx context.Context, adapter dbus.ObjectPath) error {
	call := s.conn.Object(busName, adapter).Call(ifaceAdapter+".StartDiscovery", 0)
	if call.Err != nil {
		return fault.Wrap(call.Err, fctx.With(ctx), ftag.With(ftag.Internal), fmsg.With("start discovery"))
	}
	return nil
}

// StopDiscovery stops discovery; "No discovery started" is swallowed since
// stops must be idempotent.
func (s *Session) StopDiscovery(ctx context.Context, adapter dbus.ObjectPath) error {
	call := s.conn.Object(busName, adapter).Call(ifaceAdapter+".StopDiscovery", 0)
	if call.Err != nil {
		if strings.Contains(call.Err.Error(), "No discovery started") {
			return nil
		}
		return fault.Wrap(call.Err, fctx.With(ctx), ftag.With(ftag.Internal), fmsg.With("stop discovery"))
	}
	return nil
}

// RemoveDevice deletes the device object from every adapter that currently
// holds it, not just the configured one, per §4.1.
func (s *Session) RemoveDevice(ctx context.Context, address macaddr.Address) error {
	s.mu.RLock()
	var targets []struct{ adapter, device dbus.ObjectPath }
	for path, d := range s.devices {
		if d.Address == address {
			targets = append(targets, struct{ adapter, device dbus.ObjectPath }{d.AdapterPath, path})
		}
	}
	s.mu.RUnlock()

	var lastErr error
	for _, t := range targets {
		call := s.conn.Object(busName, t.adapter).Call(ifaceAdapter+".RemoveDevice", 0, t.device)
		if call.Err != nil {
			lastErr = call.Err
		}
	}
	if lastErr != nil {
		return fault.Wrap(lastErr, fctx.With(ctx), ftag.With(ftag.Internal), fmsg.With("remove device"))
	}
	return nil
}

// deviceByAddress resolves the current D-Bus object path for address, since
// a device may appear under multiple adapter paths and the path must never
// be cached by a caller across a RemoveDevice/re-add cycle (§9).
func (s *Session) deviceByAddress(address macaddr.Address) (dbus.ObjectPath, *DeviceInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for path, d := range s.devices {
		if d.Address == address {
			return path, d, true
		}
	}
	return "", nil, false
}

// call invokes a method on path/iface and ignores a returned value.
func (s *Session) call(ctx context.Context, path dbus.ObjectPath, method string, args ...interface{}) error {
	call := s.conn.Object(busName, path).Call(method, 0, args...)
	if call.Err != nil {
		return fault.Wrap(call.Err,
			fctx.With(ctx),
			ftag.With(ftag.Internal),
			fmsg.With("dbus call "+method),
		)
	}
	return nil
}

// hciIndex extracts the numeric suffix from an "hciN" interface name.
func hciIndex(iface string) (int, bool) {
	if !strings.HasPrefix(iface, "hci") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(iface, "hci"))
	if err != nil {
		return 0, false
	}
	return n, true
}
