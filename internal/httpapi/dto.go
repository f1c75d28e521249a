package httpapi

import (
	"time"

	"github.com/btorch/btaudiod/internal/bluez"
	"github.com/btorch/btaudiod/internal/macaddr"
	"github.com/btorch/btaudiod/internal/pulse"
	"github.com/btorch/btaudiod/internal/store"
)

// deviceDTO is the wire shape for a single device in GET /api/devices and
// the devices_changed WS frame: a merge of the persisted record (settings,
// auto_connect) with whatever BlueZ currently reports live on the bus. A
// device present only in the store (forgotten from the bus, or simply out
// of range) is still reported, per §8's "rejected by the audio-UUID filter
// ... remains reportable if it is in the persistent store" invariant.
type deviceDTO struct {
	Address      string   `json:"address"`
	Name         string   `json:"name"`
	Paired       bool     `json:"paired"`
	Trusted      bool     `json:"trusted"`
	Connected    bool     `json:"connected"`
	Blocked      bool     `json:"blocked"`
	RSSI         int16    `json:"rssi,omitempty"`
	HasTransport bool     `json:"has_transport"`
	UUIDs        []string `json:"uuids,omitempty"`

	AutoConnect bool                  `json:"auto_connect"`
	Settings    store.DeviceSettings  `json:"settings"`
	PairedAt    *time.Time            `json:"paired_at,omitempty"`
}

// buildDeviceList merges live BlueZ state for the given adapter with the
// persisted store, so callers see both online devices and offline/paired
// ones the store still remembers.
func buildDeviceList(liveDevices []bluez.DeviceInfo, records []store.Device) []deviceDTO {
	byAddress := make(map[macaddr.Address]*deviceDTO, len(liveDevices)+len(records))
	order := make([]macaddr.Address, 0, len(liveDevices)+len(records))

	for _, dev := range liveDevices {
		dto := &deviceDTO{
			Address:      string(dev.Address),
			Name:         firstNonEmpty(dev.Name, dev.Alias, string(dev.Address)),
			Paired:       dev.Paired,
			Trusted:      dev.Trusted,
			Connected:    dev.Connected,
			Blocked:      dev.Blocked,
			RSSI:         dev.RSSI,
			HasTransport: dev.HasTransport,
			UUIDs:        dev.UUIDs,
		}
		byAddress[dev.Address] = dto
		order = append(order, dev.Address)
	}

	for _, rec := range records {
		dto, known := byAddress[rec.Address]
		if !known {
			dto = &deviceDTO{Address: string(rec.Address), Name: rec.Name}
			byAddress[rec.Address] = dto
			order = append(order, rec.Address)
		}
		dto.AutoConnect = rec.AutoConnect
		dto.Settings = rec.Settings
		paired := rec.PairedAt
		dto.PairedAt = &paired
		if dto.Name == "" || dto.Name == string(rec.Address) {
			dto.Name = rec.Name
		}
	}

	out := make([]deviceDTO, 0, len(order))
	for _, addr := range order {
		out = append(out, *byAddress[addr])
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// sinkDTO is the wire shape for GET /api/audio/sinks.
type sinkDTO struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	State       string `json:"state"`
	VolumePct   int    `json:"volume_pct"`
	Mute        bool   `json:"mute"`
	SampleRate  int    `json:"sample_rate"`
	Channels    int    `json:"channels"`
	SampleFmt   string `json:"sample_fmt"`
}

func sinkDTOFrom(sinks []pulse.BTSink) []sinkDTO {
	out := make([]sinkDTO, 0, len(sinks))
	for _, s := range sinks {
		out = append(out, sinkDTO{
			Name:        s.Name,
			Description: s.Description,
			State:       string(s.State),
			VolumePct:   s.VolumePct,
			Mute:        s.Mute,
			SampleRate:  s.SampleRate,
			Channels:    s.Channels,
			SampleFmt:   s.SampleFmt,
		})
	}
	return out
}
