package store

import (
	"encoding/json"
	"os"

	"github.com/charmbracelet/log"
)

// legacyKeepAliveMarkerName is the sentinel file that records whether the
// historical global keep-alive flag has already been copied onto every
// stored device. Its presence, not its contents, is what matters.
const legacyKeepAliveMarkerName = ".keepalive-migration-done"

// legacyOptionsPath is the Home Assistant add-on options file the original
// implementation read its global keep_alive_enabled/keep_alive_method
// settings from (§9).
const legacyOptionsPath = "/data/options.json"

// ReadLegacyKeepAliveOption reads the historical global keep_alive_enabled
// flag from the add-on options file, returning false if the file is absent,
// unparsable, or the flag was never set.
func ReadLegacyKeepAliveOption() bool {
	return readLegacyKeepAliveOption(legacyOptionsPath)
}

func readLegacyKeepAliveOption(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var opts struct {
		KeepAliveEnabled bool `json:"keep_alive_enabled"`
	}
	if err := json.Unmarshal(data, &opts); err != nil {
		return false
	}
	return opts.KeepAliveEnabled
}

// MigrateLegacyKeepAliveFlag copies legacyGlobalKeepAlive onto every
// device's idle_mode the first time the daemon runs against this config
// directory, gated by a marker file so it runs at most once (§9). A
// device whose idle_mode was already changed by the user is left alone —
// this only backfills still-default records.
func MigrateLegacyKeepAliveFlag(logger *log.Logger, configDir string, devices *DeviceStore, legacyGlobalKeepAlive bool) error {
	markerPath := configDir + string(os.PathSeparator) + legacyKeepAliveMarkerName
	if _, err := os.Stat(markerPath); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}

	if legacyGlobalKeepAlive {
		for _, d := range devices.All() {
			if d.Settings.IdleMode != IdleDefault {
				continue
			}
			addr := d.Address
			if _, err := devices.Update(addr, func(dev *Device) {
				dev.Settings.IdleMode = IdleKeepAlive
			}); err != nil {
				return err
			}
		}
		logger.Info("migrated legacy global keep-alive flag onto stored devices")
	}

	return os.WriteFile(markerPath, []byte("1\n"), 0o644)
}
