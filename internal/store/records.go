// Package store holds the two persisted JSON documents (device records,
// adapter settings) plus the live in-memory device-state table. All three
// are guarded for concurrent access since the HTTP API and the orchestrator
// read and write them from different goroutines.
package store

import (
	"time"

	"github.com/btorch/btaudiod/internal/macaddr"
)

// IdleMode selects which idle-mode engine behavior applies to a device.
type IdleMode string

const (
	IdleDefault        IdleMode = "default"
	IdlePowerSave      IdleMode = "power_save"
	IdleKeepAlive      IdleMode = "keep_alive"
	IdleAutoDisconnect IdleMode = "auto_disconnect"
)

// KeepAliveMethod mirrors pulse.KeepAliveMethod without importing it, so
// this package stays free of a pulse dependency.
type KeepAliveMethod string

const (
	KeepAliveSilence    KeepAliveMethod = "silence"
	KeepAliveInfrasound KeepAliveMethod = "infrasound"
)

// AudioProfile is the device's preferred profile family.
type AudioProfile string

const (
	ProfileA2DP AudioProfile = "a2dp"
	ProfileHFP  AudioProfile = "hfp"
)

// DeviceSettings is the settings bag of a Device record. Missing keys take
// the defaults below; unknown keys are ignored on load.
type DeviceSettings struct {
	IdleMode              IdleMode        `json:"idle_mode"`
	KeepAliveMethod       KeepAliveMethod `json:"keep_alive_method"`
	PowerSaveDelay        int             `json:"power_save_delay"`
	AutoDisconnectMinutes int             `json:"auto_disconnect_minutes"`
	MPDEnabled            bool            `json:"mpd_enabled"`
	MPDPort               int             `json:"mpd_port"`
	MPDHWVolume           int             `json:"mpd_hw_volume"`
	AVRCPEnabled          bool            `json:"avrcp_enabled"`
	AudioProfile          AudioProfile    `json:"audio_profile"`
}

// DefaultDeviceSettings returns the settings applied when a field is absent
// from a loaded record.
func DefaultDeviceSettings() DeviceSettings {
	return DeviceSettings{
		IdleMode:              IdleDefault,
		KeepAliveMethod:       KeepAliveInfrasound,
		PowerSaveDelay:        30,
		AutoDisconnectMinutes: 30,
		MPDEnabled:            false,
		MPDPort:               0,
		MPDHWVolume:           100,
		AVRCPEnabled:          true,
		AudioProfile:          ProfileA2DP,
	}
}

// Device is a persisted device record. Address is its immutable key.
type Device struct {
	Address      macaddr.Address `json:"address"`
	Name         string          `json:"name"`
	PairedAt     time.Time       `json:"paired_at"`
	AutoConnect  bool            `json:"auto_connect"`
	Settings     DeviceSettings  `json:"settings"`
}

// clampSettings applies the documented ranges, leaving out-of-range values
// at their nearest bound rather than rejecting the whole record.
func clampSettings(s DeviceSettings) DeviceSettings {
	d := DefaultDeviceSettings()
	if s.IdleMode == "" {
		s.IdleMode = d.IdleMode
	}
	if s.KeepAliveMethod == "" {
		s.KeepAliveMethod = d.KeepAliveMethod
	}
	if s.PowerSaveDelay < 0 {
		s.PowerSaveDelay = 0
	} else if s.PowerSaveDelay > 300 {
		s.PowerSaveDelay = 300
	}
	if s.AutoDisconnectMinutes < 5 {
		s.AutoDisconnectMinutes = 5
	} else if s.AutoDisconnectMinutes > 60 {
		s.AutoDisconnectMinutes = 60
	}
	if s.MPDHWVolume < 1 {
		s.MPDHWVolume = 1
	} else if s.MPDHWVolume > 100 {
		s.MPDHWVolume = 100
	}
	if s.AudioProfile == "" {
		s.AudioProfile = d.AudioProfile
	}
	return s
}
