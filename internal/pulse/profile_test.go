package pulse

import (
	"testing"

	"github.com/the-jonsey/pulseaudio"
)

func TestFindProfile(t *testing.T) {
	profiles := []*pulseaudio.ProfileInfo{
		{Name: "off"},
		{Name: "a2dp_sink"},
		{Name: "handsfree_head_unit"},
	}

	if got := findProfile(profiles, "a2dp_sink"); got == nil || got.Name != "a2dp_sink" {
		t.Fatalf("findProfile(a2dp_sink) = %+v", got)
	}
	if got := findProfile(profiles, "not-present"); got != nil {
		t.Fatalf("findProfile(not-present) = %+v, want nil", got)
	}
}

func TestCandidateProfileNamesOrdering(t *testing.T) {
	a2dp := candidateProfileNames[ProfileA2DP]
	if len(a2dp) == 0 || a2dp[0] != "a2dp_sink" {
		t.Fatalf("a2dp candidates = %v, want first entry a2dp_sink", a2dp)
	}
	hfp := candidateProfileNames[ProfileHFP]
	if len(hfp) == 0 || hfp[0] != "handsfree_head_unit" {
		t.Fatalf("hfp candidates = %v, want first entry handsfree_head_unit", hfp)
	}
}
