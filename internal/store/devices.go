package store

import (
	"errors"
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/btorch/btaudiod/internal/macaddr"
	"github.com/charmbracelet/log"
	"github.com/puzpuzpuz/xsync/v3"
)

// ErrDeviceNotFound mirrors the teacher's errorkinds taxonomy for the one
// case this package needs to distinguish from "any other error".
var ErrDeviceNotFound = errors.New("device not found in store")

// DeviceStore is the persisted device-record table: an xsync.MapOf of
// address to Device, rewritten to disk in full on every mutation.
type DeviceStore struct {
	log  *log.Logger
	path string

	devices *xsync.MapOf[macaddr.Address, Device]

	portsMu sync.Mutex
	ports   [10]bool // index i -> port 6600+i in use
}

const mpdPortBase = 6600
const mpdPortCount = 10

// NewDeviceStore constructs an empty DeviceStore bound to path; call Load
// to populate it from disk.
func NewDeviceStore(logger *log.Logger, path string) *DeviceStore {
	return &DeviceStore{
		log:     logger.With("component", "device-store"),
		path:    path,
		devices: xsync.NewMapOf[macaddr.Address, Device](),
	}
}

// deviceDocument is the on-disk shape: a flat list, since map key order
// isn't meaningful and JSON object keys would just duplicate Address.
type deviceDocument struct {
	Devices []Device `json:"devices"`
}

// Load reads the persisted document, if any, clamping settings and
// reconstructing the mpd_port allocation bitmap from what it finds.
func (s *DeviceStore) Load() error {
	var doc deviceDocument
	found, err := readJSON(s.path, &doc)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	s.portsMu.Lock()
	defer s.portsMu.Unlock()
	for _, d := range doc.Devices {
		d.Settings = clampSettings(d.Settings)
		s.devices.Store(d.Address, d)
		if d.Settings.MPDPort >= mpdPortBase && d.Settings.MPDPort < mpdPortBase+mpdPortCount {
			s.ports[d.Settings.MPDPort-mpdPortBase] = true
		}
	}
	return nil
}

// persist rewrites the full document. Device writes are single-record
// granularity in the API but always serialize the whole table (§4.7).
func (s *DeviceStore) persist() error {
	doc := deviceDocument{Devices: make([]Device, 0, s.devices.Size())}
	s.devices.Range(func(_ macaddr.Address, d Device) bool {
		doc.Devices = append(doc.Devices, d)
		return true
	})
	return writeJSONAtomic(s.path, doc)
}

// All returns every persisted device record.
func (s *DeviceStore) All() []Device {
	out := make([]Device, 0, s.devices.Size())
	s.devices.Range(func(_ macaddr.Address, d Device) bool {
		out = append(out, d)
		return true
	})
	return out
}

// Get returns the record for address, if present.
func (s *DeviceStore) Get(address macaddr.Address) (Device, bool) {
	return s.devices.Load(address)
}

// Upsert adds or overwrites a device record and persists the table.
func (s *DeviceStore) Upsert(d Device) error {
	d.Settings = clampSettings(d.Settings)
	s.devices.Store(d.Address, d)
	return s.persist()
}

// Update loads address, applies mutate, and persists the result. Returns
// ErrDeviceNotFound if address isn't stored.
func (s *DeviceStore) Update(address macaddr.Address, mutate func(*Device)) (Device, error) {
	d, ok := s.devices.Load(address)
	if !ok {
		return Device{}, fault.Wrap(ErrDeviceNotFound, ftag.With(ftag.NotFound), fmsg.With(string(address)))
	}
	mutate(&d)
	d.Settings = clampSettings(d.Settings)
	s.devices.Store(address, d)
	if err := s.persist(); err != nil {
		return Device{}, err
	}
	return d, nil
}

// Forget removes address, releasing its mpd_port slot, and persists.
func (s *DeviceStore) Forget(address macaddr.Address) error {
	d, ok := s.devices.Load(address)
	if !ok {
		return nil
	}
	s.releasePortLocked(d.Settings.MPDPort)
	s.devices.Delete(address)
	return s.persist()
}

// ClearAll wipes every record with a single write (§6's clear_all).
func (s *DeviceStore) ClearAll() error {
	s.devices.Range(func(addr macaddr.Address, _ Device) bool {
		s.devices.Delete(addr)
		return true
	})
	s.portsMu.Lock()
	s.ports = [10]bool{}
	s.portsMu.Unlock()
	return s.persist()
}

// AllocateMPDPort returns the lowest free port in {6600..6609}, or false if
// the pool is exhausted. The caller is expected to store the result back
// onto the device's settings via Update.
func (s *DeviceStore) AllocateMPDPort() (int, bool) {
	s.portsMu.Lock()
	defer s.portsMu.Unlock()
	for i := 0; i < mpdPortCount; i++ {
		if !s.ports[i] {
			s.ports[i] = true
			return mpdPortBase + i, true
		}
	}
	return 0, false
}

// ReleaseMPDPort frees a previously allocated port. Releasing an
// unallocated or out-of-range port is a no-op, and a subsequent allocate
// call will hand the same port back out (the pool has no memory beyond the
// bitmap, per §3's invariant).
func (s *DeviceStore) ReleaseMPDPort(port int) {
	s.portsMu.Lock()
	defer s.portsMu.Unlock()
	s.releasePortLocked(port)
}

func (s *DeviceStore) releasePortLocked(port int) {
	if port < mpdPortBase || port >= mpdPortBase+mpdPortCount {
		return
	}
	s.ports[port-mpdPortBase] = false
}
