package pulse

import (
	"testing"

	"github.com/btorch/btaudiod/internal/macaddr"
)

func TestBTSinkName(t *testing.T) {
	addr := macaddr.MustParse("AA:BB:CC:DD:EE:01")
	got := BTSinkName(addr, "a2dp_sink")
	want := "bluez_sink.AA_BB_CC_DD_EE_01.a2dp_sink"
	if got != want {
		t.Fatalf("BTSinkName = %q, want %q", got, want)
	}
}

func TestBTCardName(t *testing.T) {
	addr := macaddr.MustParse("AA:BB:CC:DD:EE:01")
	got := BTCardName(addr)
	want := "bluez_card.AA_BB_CC_DD_EE_01"
	if got != want {
		t.Fatalf("BTCardName = %q, want %q", got, want)
	}
}

func TestCandidateSocketPathsFallsBackToUIDPath(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "")
	paths := candidateSocketPaths()
	if len(paths) != 3 {
		t.Fatalf("candidateSocketPaths() = %v, want 3 entries", paths)
	}
	if paths[1] != "/var/run/pulse/native" || paths[2] != "/run/pulse/native" {
		t.Fatalf("candidateSocketPaths() = %v, unexpected fallback entries", paths)
	}
}

func TestCandidateSocketPathsHonorsXDGRuntimeDir(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/custom/runtime")
	paths := candidateSocketPaths()
	if paths[0] != "/custom/runtime/pulse/native" {
		t.Fatalf("candidateSocketPaths()[0] = %q, want override-based path", paths[0])
	}
}

func TestParseSampleSpec(t *testing.T) {
	got := parseSampleSpec("s16le 2ch 48000Hz")
	want := sampleSpec{format: "s16le", channels: 2, rate: 48000}
	if got != want {
		t.Fatalf("parseSampleSpec() = %+v, want %+v", got, want)
	}
}

func TestParseSampleSpecMalformed(t *testing.T) {
	got := parseSampleSpec("")
	if got != (sampleSpec{}) {
		t.Fatalf("parseSampleSpec(\"\") = %+v, want zero value", got)
	}
}
