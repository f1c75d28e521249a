package httpapi

import (
	"testing"

	"github.com/btorch/btaudiod/internal/events"
	"github.com/btorch/btaudiod/internal/macaddr"
	"github.com/btorch/btaudiod/internal/store"
)

func TestFilterEventsAfter(t *testing.T) {
	all := []events.Event{
		{Kind: events.KindMPRIS, Timestamp: 10},
		{Kind: events.KindMPRIS, Timestamp: 20},
		{Kind: events.KindMPRIS, Timestamp: 30},
	}

	if got := filterEventsAfter(all, 0); len(got) != 3 {
		t.Fatalf("after=0 should return everything, got %d", len(got))
	}
	got := filterEventsAfter(all, 15)
	if len(got) != 2 || got[0].Timestamp != 20 || got[1].Timestamp != 30 {
		t.Fatalf("unexpected filtered events: %+v", got)
	}
}

func TestValidateDeviceSettingsPatch(t *testing.T) {
	addr := macaddr.Address("AA:BB:CC:DD:EE:01")

	cases := []struct {
		name    string
		patch   map[string]interface{}
		wantErr bool
	}{
		{"valid audio_profile", map[string]interface{}{"audio_profile": "hfp"}, false},
		{"invalid audio_profile", map[string]interface{}{"audio_profile": "sbc"}, true},
		{"valid idle_mode", map[string]interface{}{"idle_mode": "power_save"}, false},
		{"invalid idle_mode", map[string]interface{}{"idle_mode": "nope"}, true},
		{"valid keep_alive_method", map[string]interface{}{"keep_alive_method": "silence"}, false},
		{"invalid keep_alive_method", map[string]interface{}{"keep_alive_method": "tone"}, true},
		{"power_save_delay in range", map[string]interface{}{"power_save_delay": float64(0)}, false},
		{"power_save_delay out of range", map[string]interface{}{"power_save_delay": float64(301)}, true},
		{"auto_disconnect_minutes accepted at 60", map[string]interface{}{"auto_disconnect_minutes": float64(60)}, false},
		{"auto_disconnect_minutes rejected at 61", map[string]interface{}{"auto_disconnect_minutes": float64(61)}, true},
		{"mpd_hw_volume out of range", map[string]interface{}{"mpd_hw_volume": float64(0)}, true},
		{"mpd_enabled wrong type", map[string]interface{}{"mpd_enabled": "yes"}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// None of these cases touch mpd_port, so the Server (only
			// needed for the port-conflict scan) is never dereferenced.
			got := validateDeviceSettingsPatch(tc.patch, nil, addr)
			if tc.wantErr && got == "" {
				t.Fatalf("expected a validation error, got none")
			}
			if !tc.wantErr && got != "" {
				t.Fatalf("expected no validation error, got %q", got)
			}
		})
	}
}

func TestApplyDeviceSettingsPatch(t *testing.T) {
	settings := store.DefaultDeviceSettings()
	patch := map[string]interface{}{
		"audio_profile":    "hfp",
		"power_save_delay": float64(45),
		"mpd_enabled":      true,
	}

	applyDeviceSettingsPatch(&settings, patch)

	if settings.AudioProfile != store.ProfileHFP {
		t.Fatalf("audio_profile not applied: %+v", settings)
	}
	if settings.PowerSaveDelay != 45 {
		t.Fatalf("power_save_delay not applied: %+v", settings)
	}
	if !settings.MPDEnabled {
		t.Fatalf("mpd_enabled not applied: %+v", settings)
	}
	// Untouched fields keep their defaults.
	if settings.KeepAliveMethod != store.KeepAliveInfrasound {
		t.Fatalf("unrelated field mutated: %+v", settings)
	}
}
