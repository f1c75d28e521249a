//go:build linux

package bluez

import "testing"

func TestClassifyUUIDs(t *testing.T) {
	cases := []struct {
		name  string
		uuids []string
		want  ClassifyReason
	}{
		{"empty", nil, ReasonNoUUIDs},
		{"a2dp sink accepted", []string{UUIDA2DPSink}, ReasonAccepted},
		{"hfp accepted", []string{UUIDHFP}, ReasonAccepted},
		{"hsp accepted", []string{UUIDHSP}, ReasonAccepted},
		{"sink wins over source", []string{UUIDA2DPSource, UUIDA2DPSink}, ReasonAccepted},
		{"source only rejected", []string{UUIDA2DPSource}, ReasonSourceOnly},
		{"avrcp only rejected", []string{UUIDAVRCPTarget}, ReasonAVRCPOnly},
		{"le audio rejected", []string{UUIDLEAudioPACS}, ReasonLEAudio},
		{"unrelated uuid falls back to no sink profile", []string{"0000180f-0000-1000-8000-00805f9b34fb"}, ReasonNoSinkProfile},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := classifyUUIDs(tc.uuids); got != tc.want {
				t.Fatalf("classifyUUIDs(%v) = %q, want %q", tc.uuids, got, tc.want)
			}
		})
	}
}

func TestDeviceTypeFromClass(t *testing.T) {
	cases := []struct {
		name  string
		class uint32
		want  string
	}{
		{"headset", 0x04<<8 | 0x01<<2, "Headset"},
		{"hands-free", 0x04<<8 | 0x02<<2, "Hands-free"},
		{"headphones", 0x04<<8 | 0x06<<2, "Headphones"},
		{"loudspeaker", 0x04<<8 | 0x0a<<2, "Loudspeaker"},
		{"car audio", 0x04<<8 | 0x0c<<2, "Car audio"},
		{"hifi audio", 0x04<<8 | 0x0e<<2, "HiFi audio"},
		{"other audio minor", 0x04<<8 | 0x03<<2, "Audio device"},
		{"computer", 0x01 << 8, "Computer"},
		{"phone", 0x02 << 8, "Phone"},
		{"keyboard", 0x05<<8 | 0x01<<2, "Keyboard"},
		{"mouse", 0x05<<8 | 0x02<<2, "Mouse"},
		{"other peripheral", 0x05<<8 | 0x03<<2, "Peripheral"},
		{"unknown major", 0x1f << 8, "Unknown"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeviceTypeFromClass(tc.class); got != tc.want {
				t.Fatalf("DeviceTypeFromClass(0x%x) = %q, want %q", tc.class, got, tc.want)
			}
		})
	}
}

func TestClassifyByClass(t *testing.T) {
	cases := []struct {
		name  string
		class uint32
		want  ClassifyReason
	}{
		{"headset accepted via COD", 0x04<<8 | 0x01<<2, ReasonCandidateByCOD},
		{"loudspeaker accepted via COD", 0x04<<8 | 0x0a<<2, ReasonCandidateByCOD},
		{"keyboard rejected", 0x05<<8 | 0x01<<2, ReasonNoUUIDs},
		{"non-audio minor under audio major rejected", 0x04<<8 | 0x03<<2, ReasonNoUUIDs},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := classifyByClass(tc.class); got != tc.want {
				t.Fatalf("classifyByClass(0x%x) = %q, want %q", tc.class, got, tc.want)
			}
		})
	}
}
