//go:build linux

package bluez

// ClassifyReason explains why a discovered device was rejected or accepted
// as an audio sink candidate. EnumerateAudioDevices logs a rejection at
// debug level each time it runs, with no per-session de-duplication.
type ClassifyReason string

const (
	ReasonAccepted        ClassifyReason = ""
	ReasonLEAudio         ClassifyReason = "LE-Audio not supported"
	ReasonSourceOnly      ClassifyReason = "audio source only"
	ReasonAVRCPOnly       ClassifyReason = "AVRCP-only"
	ReasonNoUUIDs         ClassifyReason = "no UUIDs advertised"
	ReasonNoSinkProfile   ClassifyReason = "no audio sink profile"
	ReasonCandidateByCOD  ClassifyReason = "accepted via class-of-device heuristic"
)

// classifyUUIDs decides whether a device's advertised UUID set qualifies it
// as an audio sink, per §4.1's enumerate_audio_devices contract.
func classifyUUIDs(uuids []string) ClassifyReason {
	if len(uuids) == 0 {
		return ReasonNoUUIDs
	}

	var (
		hasSink     bool
		hasSource   bool
		hasAVRCP    bool
		hasLEAudio  bool
	)

	for _, u := range uuids {
		switch u {
		case UUIDA2DPSink, UUIDHFP, UUIDHSP:
			hasSink = true
		case UUIDA2DPSource:
			hasSource = true
		case UUIDAVRCPTarget, UUIDAVRCPCtl:
			hasAVRCP = true
		case UUIDLEAudioPACS, UUIDLEAudioASCS:
			hasLEAudio = true
		}
	}

	switch {
	case hasSink:
		return ReasonAccepted
	case hasLEAudio:
		return ReasonLEAudio
	case hasSource:
		return ReasonSourceOnly
	case hasAVRCP:
		return ReasonAVRCPOnly
	default:
		return ReasonNoSinkProfile
	}
}

// DeviceTypeFromClass decodes the BlueZ Class-of-Device bitfield into a
// human device type string, used both for display and for the best-effort
// class-of-device sink candidate heuristic when no UUIDs are advertised.
//
// Grounded on the major/minor class layout BlueZ exposes verbatim (bits
// 8-12 major, bits 2-7 minor).
func DeviceTypeFromClass(class uint32) string {
	major := (class & 0x1f00) >> 8
	minor := (class & 0xfc) >> 2

	switch major {
	case 0x01:
		return "Computer"
	case 0x02:
		return "Phone"
	case 0x03:
		return "Network"
	case 0x04:
		switch minor {
		case 0x01:
			return "Headset"
		case 0x02:
			return "Hands-free"
		case 0x06:
			return "Headphones"
		case 0x0a:
			return "Loudspeaker"
		case 0x0c:
			return "Car audio"
		case 0x0e:
			return "HiFi audio"
		default:
			return "Audio device"
		}
	case 0x05:
		switch minor {
		case 0x01:
			return "Keyboard"
		case 0x02:
			return "Mouse"
		default:
			return "Peripheral"
		}
	case 0x06:
		return "Imaging"
	case 0x07:
		return "Wearable"
	case 0x08:
		return "Toy"
	default:
		return "Unknown"
	}
}

// sinkCODMinors is the set of Audio/Video minor classes §4.1 allows as
// best-effort sink candidates when a device advertises no UUIDs at all.
var sinkCODMinors = map[uint32]bool{
	0x01: true, // headset
	0x02: true, // hands-free
	0x0a: true, // loudspeaker
	0x06: true, // headphones
	0x0c: true, // car audio
	0x0e: true, // HiFi audio
	0x08: true, // portable audio
}

// classifyByClass applies the class-of-device fallback when a device
// advertises no UUIDs.
func classifyByClass(class uint32) ClassifyReason {
	major := (class & 0x1f00) >> 8
	minor := (class & 0xfc) >> 2
	if major == 0x04 && sinkCODMinors[minor] {
		return ReasonCandidateByCOD
	}
	return ReasonNoUUIDs
}
