package pulse

import (
	"context"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/btorch/btaudiod/internal/macaddr"
	"github.com/the-jonsey/pulseaudio"
)

// ProfileA2DP and ProfileHFP identify the two profile families §4.2
// distinguishes; PulseAudio itself names the underlying card profiles
// differently across versions, hence the candidate lists below.
type ProfileKind string

const (
	ProfileA2DP ProfileKind = "a2dp"
	ProfileHFP  ProfileKind = "hfp"
)

// candidateProfileNames lists, in preference order, the card profile names
// PulseAudio/PipeWire-pulse have used for each profile kind across releases.
// The first name present on the card's Profiles list wins.
var candidateProfileNames = map[ProfileKind][]string{
	ProfileA2DP: {"a2dp_sink", "a2dp-sink"},
	ProfileHFP: {
		"handsfree_head_unit",
		"handsfree-head-unit",
		"headset_head_unit",
		"headset-head-unit",
	},
}

// ActivateBTCardProfile switches the bluez_card for address to the first
// supported candidate name for kind, returning ErrCardNotFound or
// ErrProfileNotSupported when the switch cannot be made.
func (f *Facade) ActivateBTCardProfile(ctx context.Context, address macaddr.Address, kind ProfileKind) (string, error) {
	client, err := f.client_()
	if err != nil {
		return "", fault.Wrap(err, fctx.With(ctx), ftag.With(ftag.Unavailable), fmsg.With("activate card profile"))
	}

	cards, err := client.Cards()
	if err != nil {
		return "", fault.Wrap(err, fctx.With(ctx), ftag.With(ftag.Internal), fmsg.With("list cards"))
	}

	cardName := BTCardName(address)
	var profiles []*pulseaudio.ProfileInfo
	found := false
	for _, c := range cards {
		if c.Name == cardName {
			profiles = c.Profiles
			found = true
			break
		}
	}
	if !found {
		return "", fault.Wrap(ErrCardNotFound, fctx.With(ctx), ftag.With(ftag.NotFound), fmsg.With(cardName))
	}

	for _, candidate := range candidateProfileNames[kind] {
		profile := findProfile(profiles, candidate)
		if profile == nil {
			continue
		}

		if kind == ProfileHFP && !profile.Available {
			f.log.Warn("hfp profile reports unavailable, attempting anyway", "card", cardName, "profile", candidate)
		}

		if err := profile.Activate(); err != nil {
			if kind != ProfileA2DP {
				return "", fault.Wrap(err, fctx.With(ctx), ftag.With(ftag.Internal), fmsg.With("set card profile "+candidate))
			}
			// A2DP direct activation can fail when the card is mid-transition;
			// cycling through "off" first clears stuck negotiation state.
			f.log.Debug("direct a2dp activation failed, cycling off first", "card", cardName, "error", err)
			if off := findProfile(profiles, "off"); off != nil {
				if offErr := off.Activate(); offErr != nil {
					return "", fault.Wrap(offErr, fctx.With(ctx), ftag.With(ftag.Internal), fmsg.With("set card profile off"))
				}
			}
			if err := profile.Activate(); err != nil {
				return "", fault.Wrap(err, fctx.With(ctx), ftag.With(ftag.Internal), fmsg.With("set card profile "+candidate))
			}
		}

		f.log.Debug("activated card profile", "card", cardName, "profile", candidate)
		return candidate, nil
	}

	return "", fault.Wrap(ErrProfileNotSupported, fctx.With(ctx), ftag.With(ftag.FailedPrecondition), fmsg.With(cardName))
}

func findProfile(profiles []*pulseaudio.ProfileInfo, name string) *pulseaudio.ProfileInfo {
	for _, p := range profiles {
		if p.Name == name {
			return p
		}
	}
	return nil
}
