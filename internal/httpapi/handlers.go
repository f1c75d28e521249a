package httpapi

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/btorch/btaudiod/internal/events"
	"github.com/btorch/btaudiod/internal/macaddr"
	"github.com/btorch/btaudiod/internal/store"
	"github.com/gorilla/mux"
)

// version is set at build time via -ldflags, matching the teacher's own
// compile-time Version/Revision pattern in cmd/cli.go.
var version = "dev"

// legacyIfacePattern matches the hciN-style interface names §9's migration
// still has to tolerate as input, even though resolved adapters now prefer
// a MAC address.
var legacyIfacePattern = regexp.MustCompile(`^hci[0-9]+$`)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	adapterPath := string(s.ctrl.AdapterPath())
	adapterName := adapterPath
	if idx := lastSlash(adapterPath); idx >= 0 {
		adapterName = adapterPath[idx+1:]
	}

	var adapterMAC *string
	settings := s.ctrl.Settings().Get()
	if macaddr.Valid(settings.BTAdapter) {
		mac := settings.BTAdapter
		adapterMAC = &mac
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version":               version,
		"adapter":               adapterName,
		"adapter_path":          adapterPath,
		"adapter_mac":           adapterMAC,
		"hfp_switching_enabled": s.ctrl.Session().HFPSwitchingEnabled(),
	})
}

func lastSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return i
		}
	}
	return -1
}

// handleRestart asks the process to exit cleanly (status 0) so that a
// supervisor that restarts on any exit (e.g. systemd's Restart=always)
// brings a fresh
// process back up with the adapter/config changes picked up at startup —
// there is no in-process hot-reload path for these (§6).
func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	if s.requestShutdown == nil {
		writeError(w, http.StatusNotImplemented, "restart is not supported by this process")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"restarting": true})
	go s.requestShutdown()
}

func (s *Server) handleListAdapters(w http.ResponseWriter, r *http.Request) {
	adapters := s.ctrl.Session().ListAdapters()
	selected := s.ctrl.AdapterPath()

	out := make([]map[string]interface{}, 0, len(adapters))
	for _, a := range adapters {
		out = append(out, map[string]interface{}{
			"interface": a.Interface,
			"address":   string(a.Address),
			"alias":     a.Alias,
			"powered":   a.Powered,
			"selected":  a.Path == selected,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"adapters": out})
}

func (s *Server) handleSetAdapter(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Adapter string `json:"adapter"`
		Clean   bool   `json:"clean"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if body.Adapter == "" {
		writeError(w, http.StatusBadRequest, "adapter is required")
		return
	}
	if body.Adapter != "auto" && !macaddr.Valid(body.Adapter) && !legacyIfacePattern.MatchString(body.Adapter) {
		writeError(w, http.StatusBadRequest, "adapter must be 'auto', a MAC address, or an hciN name")
		return
	}

	if body.Clean {
		if err := s.ctrl.ClearAll(r.Context()); err != nil {
			writeFriendlyError(w, err)
			return
		}
	}

	current := s.ctrl.Settings().Get()
	current.BTAdapter = body.Adapter
	if err := s.ctrl.Settings().Set(current); err != nil {
		writeFriendlyError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"adapter":          body.Adapter,
		"restart_required": true,
		"cleaned":          body.Clean,
	})
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	live := s.ctrl.Session().EnumerateAudioDevices(s.ctrl.AdapterPath())
	records := s.ctrl.Devices().All()
	writeJSON(w, http.StatusOK, map[string]interface{}{"devices": buildDeviceList(live, records)})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	duration := s.ctrl.Settings().Get().ScanDuration
	if r.Body != nil {
		var body struct {
			Duration int `json:"duration"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Duration > 0 {
			duration = time.Duration(body.Duration) * time.Second
		}
	}

	s.ctrl.Scan(duration)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"scanning": true,
		"duration": int(duration.Seconds()),
	})
}

func (s *Server) handleScanStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"scanning": s.ctrl.IsScanning()})
}

func (s *Server) addressAction(action func(address macaddr.Address) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Address string `json:"address"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		address, ok := validateAddress(w, body.Address)
		if !ok {
			return
		}
		if err := action(address); err != nil {
			writeFriendlyError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"address": string(address), "ok": true})
	}
}

func validateAddress(w http.ResponseWriter, raw string) (macaddr.Address, bool) {
	if raw == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return "", false
	}
	address, err := macaddr.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid Bluetooth address format (expected XX:XX:XX:XX:XX:XX)")
		return "", false
	}
	return address, true
}

func (s *Server) handlePair(w http.ResponseWriter, r *http.Request) {
	s.addressAction(func(address macaddr.Address) error { return s.ctrl.Pair(r.Context(), address) })(w, r)
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	s.addressAction(func(address macaddr.Address) error { return s.ctrl.Connect(r.Context(), address) })(w, r)
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	s.addressAction(func(address macaddr.Address) error { return s.ctrl.Disconnect(r.Context(), address) })(w, r)
}

func (s *Server) handleForceReconnect(w http.ResponseWriter, r *http.Request) {
	s.addressAction(func(address macaddr.Address) error { return s.ctrl.ForceReconnect(r.Context(), address) })(w, r)
}

func (s *Server) handleForget(w http.ResponseWriter, r *http.Request) {
	s.addressAction(func(address macaddr.Address) error { return s.ctrl.Forget(r.Context(), address) })(w, r)
}

// allowedDeviceSettingsKeys mirrors the original's allow-list (§6), so an
// unrecognized key in the request body is silently dropped rather than
// rejected outright.
var allowedDeviceSettingsKeys = map[string]bool{
	"audio_profile": true, "idle_mode": true, "keep_alive_method": true,
	"power_save_delay": true, "auto_disconnect_minutes": true,
	"mpd_enabled": true, "mpd_port": true, "mpd_hw_volume": true,
	"avrcp_enabled": true,
}

func (s *Server) handleUpdateDeviceSettings(w http.ResponseWriter, r *http.Request) {
	address, ok := validateAddress(w, mux.Vars(r)["address"])
	if !ok {
		return
	}

	var raw map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	patch := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		if allowedDeviceSettingsKeys[k] {
			patch[k] = v
		}
	}
	if len(patch) == 0 {
		writeError(w, http.StatusBadRequest, "no valid settings provided")
		return
	}

	if errMsg := validateDeviceSettingsPatch(patch, s, address); errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	if _, ok := s.ctrl.Devices().Get(address); !ok {
		d := store.Device{Address: address, Settings: store.DefaultDeviceSettings()}
		if devInfo, known := s.ctrl.Session().Device(address); known {
			d.Name = devInfo.Name
		}
		if err := s.ctrl.Devices().Upsert(d); err != nil {
			writeFriendlyError(w, err)
			return
		}
	}

	updated, err := s.ctrl.Devices().Update(address, func(d *store.Device) { applyDeviceSettingsPatch(&d.Settings, patch) })
	if err != nil {
		writeError(w, http.StatusNotFound, "device not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"address": string(address), "settings": updated.Settings})
}

func validateDeviceSettingsPatch(patch map[string]interface{}, s *Server, address macaddr.Address) string {
	if v, ok := patch["audio_profile"]; ok {
		str, _ := v.(string)
		if str != "a2dp" && str != "hfp" {
			return "audio_profile must be 'a2dp' or 'hfp'"
		}
	}
	if v, ok := patch["idle_mode"]; ok {
		str, _ := v.(string)
		switch store.IdleMode(str) {
		case store.IdleDefault, store.IdlePowerSave, store.IdleKeepAlive, store.IdleAutoDisconnect:
		default:
			return "idle_mode must be one of default, power_save, keep_alive, auto_disconnect"
		}
	}
	if v, ok := patch["keep_alive_method"]; ok {
		str, _ := v.(string)
		if str != "silence" && str != "infrasound" {
			return "keep_alive_method must be 'silence' or 'infrasound'"
		}
	}
	if v, ok := patch["power_save_delay"]; ok {
		n, isNum := v.(float64)
		if !isNum || n < 0 || n > 300 {
			return "power_save_delay must be 0-300 seconds"
		}
	}
	if v, ok := patch["auto_disconnect_minutes"]; ok {
		n, isNum := v.(float64)
		if !isNum || n < 5 || n > 60 {
			return "auto_disconnect_minutes must be 5-60"
		}
	}
	if v, ok := patch["mpd_hw_volume"]; ok {
		n, isNum := v.(float64)
		if !isNum || n < 1 || n > 100 {
			return "mpd_hw_volume must be an integer 1-100"
		}
	}
	if v, ok := patch["mpd_port"]; ok {
		n, isNum := v.(float64)
		if !isNum || n < 6600 || n > 6609 {
			return "mpd_port must be an integer 6600-6609"
		}
		port := int(n)
		for _, d := range s.ctrl.Devices().All() {
			if d.Address != address && d.Settings.MPDPort == port {
				return "port is already in use by another device"
			}
		}
	}
	if v, ok := patch["mpd_enabled"]; ok {
		if _, isBool := v.(bool); !isBool {
			return "mpd_enabled must be a boolean"
		}
	}
	if v, ok := patch["avrcp_enabled"]; ok {
		if _, isBool := v.(bool); !isBool {
			return "avrcp_enabled must be a boolean"
		}
	}
	return ""
}

func applyDeviceSettingsPatch(settings *store.DeviceSettings, patch map[string]interface{}) {
	if v, ok := patch["audio_profile"].(string); ok {
		settings.AudioProfile = store.AudioProfile(v)
	}
	if v, ok := patch["idle_mode"].(string); ok {
		settings.IdleMode = store.IdleMode(v)
	}
	if v, ok := patch["keep_alive_method"].(string); ok {
		settings.KeepAliveMethod = store.KeepAliveMethod(v)
	}
	if v, ok := patch["power_save_delay"].(float64); ok {
		settings.PowerSaveDelay = int(v)
	}
	if v, ok := patch["auto_disconnect_minutes"].(float64); ok {
		settings.AutoDisconnectMinutes = int(v)
	}
	if v, ok := patch["mpd_enabled"].(bool); ok {
		settings.MPDEnabled = v
	}
	if v, ok := patch["mpd_port"].(float64); ok {
		settings.MPDPort = int(v)
	}
	if v, ok := patch["mpd_hw_volume"].(float64); ok {
		settings.MPDHWVolume = int(v)
	}
	if v, ok := patch["avrcp_enabled"].(bool); ok {
		settings.AVRCPEnabled = v
	}
}

// runtimeSettingsDTO is the §6 wire shape for GET/PUT /api/settings,
// expressed in whole seconds since that's the unit the original
// configuration surface (and its 5..600/60..3600/5..120 range checks) uses.
type runtimeSettingsDTO struct {
	AutoReconnect              bool `json:"auto_reconnect"`
	ReconnectIntervalSeconds   int  `json:"reconnect_interval_seconds"`
	ReconnectMaxBackoffSeconds int  `json:"reconnect_max_backoff_seconds"`
	ScanDurationSeconds        int  `json:"scan_duration_seconds"`
}

func settingsToDTO(s store.AdapterSettings) runtimeSettingsDTO {
	return runtimeSettingsDTO{
		AutoReconnect:              s.AutoReconnect,
		ReconnectIntervalSeconds:   int(s.ReconnectInterval.Seconds()),
		ReconnectMaxBackoffSeconds: int(s.ReconnectMaxBackoff.Seconds()),
		ScanDurationSeconds:        int(s.ScanDuration.Seconds()),
	}
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, settingsToDTO(s.ctrl.Settings().Get()))
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	current := s.ctrl.Settings().Get()

	if v, ok := body["auto_reconnect"]; ok {
		b, isBool := v.(bool)
		if !isBool {
			writeError(w, http.StatusBadRequest, "auto_reconnect must be a boolean")
			return
		}
		current.AutoReconnect = b
	}
	if v, ok := body["reconnect_interval_seconds"]; ok {
		n, isNum := v.(float64)
		if !isNum || n < 5 || n > 600 {
			writeError(w, http.StatusBadRequest, "reconnect_interval_seconds must be an integer between 5 and 600")
			return
		}
		current.ReconnectInterval = time.Duration(n) * time.Second
	}
	if v, ok := body["reconnect_max_backoff_seconds"]; ok {
		n, isNum := v.(float64)
		if !isNum || n < 60 || n > 3600 {
			writeError(w, http.StatusBadRequest, "reconnect_max_backoff_seconds must be an integer between 60 and 3600")
			return
		}
		current.ReconnectMaxBackoff = time.Duration(n) * time.Second
	}
	if v, ok := body["scan_duration_seconds"]; ok {
		n, isNum := v.(float64)
		if !isNum || n < 5 || n > 120 {
			writeError(w, http.StatusBadRequest, "scan_duration_seconds must be an integer between 5 and 120")
			return
		}
		current.ScanDuration = time.Duration(n) * time.Second
	}

	if err := s.ctrl.Settings().Set(current); err != nil {
		writeFriendlyError(w, err)
		return
	}

	dto := settingsToDTO(current)
	s.ctrl.Bus().Publish(events.KindNotice, events.Now(), map[string]interface{}{
		"event": "settings_changed", "settings": dto,
	})
	writeJSON(w, http.StatusOK, dto)
}

func (s *Server) handleAudioSinks(w http.ResponseWriter, r *http.Request) {
	sinks, err := s.ctrl.Pulse().ListBTSinks(r.Context())
	if err != nil {
		writeFriendlyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sinks": sinkDTOFrom(sinks)})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	live := s.ctrl.Session().EnumerateAudioDevices(s.ctrl.AdapterPath())
	records := s.ctrl.Devices().All()

	sinks, err := s.ctrl.Pulse().ListBTSinks(r.Context())
	if err != nil {
		sinks = nil
	}

	mprisAfter := parseTimestampQuery(r, "mpris_after")
	avrcpAfter := parseTimestampQuery(r, "avrcp_after")

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"devices":      buildDeviceList(live, records),
		"sinks":        sinkDTOFrom(sinks),
		"mpris_events": filterEventsAfter(s.ctrl.Bus().ReplayMPRIS(), mprisAfter),
		"avrcp_events": filterEventsAfter(s.ctrl.Bus().ReplayAVRCP(), avrcpAfter),
	})
}

func parseTimestampQuery(r *http.Request, key string) int64 {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0
	}
	ts, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return ts
}

// filterEventsAfter returns the subset of events strictly newer than after,
// so a client reconnecting with its last-seen timestamp only gets the gap.
func filterEventsAfter(all []events.Event, after int64) []events.Event {
	if after <= 0 {
		return all
	}
	out := make([]events.Event, 0, len(all))
	for _, ev := range all {
		if ev.Timestamp > after {
			out = append(out, ev)
		}
	}
	return out
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"logs": s.ctrl.Bus().ReplayLog()})
}
