package pulse

import (
	"encoding/binary"
	"io"
	"math"
	"testing"

	"github.com/charmbracelet/log"
)

func TestGenerateSilenceIsAllZero(t *testing.T) {
	buf := generateSilence()
	wantLen := int(keepAliveSampleRate*keepAliveStreamSeconds) * 2
	if len(buf) != wantLen {
		t.Fatalf("len(buf) = %d, want %d", len(buf), wantLen)
	}
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d = %d, want 0", i, b)
		}
	}
}

func TestGenerateInfrasoundProducesExpectedSamples(t *testing.T) {
	buf := generateInfrasound(infrasoundFreqHz, infrasoundAmplitude)
	wantLen := int(keepAliveSampleRate*keepAliveStreamSeconds) * 2
	if len(buf) != wantLen {
		t.Fatalf("len(buf) = %d, want %d", len(buf), wantLen)
	}

	// Sample 0 is sin(0) == 0.
	first := int16(binary.LittleEndian.Uint16(buf[0:2]))
	if first != 0 {
		t.Fatalf("first sample = %d, want 0", first)
	}

	// Every sample must stay within the configured amplitude.
	for i := 0; i < len(buf)/2; i++ {
		v := int16(binary.LittleEndian.Uint16(buf[i*2 : i*2+2]))
		if math.Abs(float64(v)) > infrasoundAmplitude {
			t.Fatalf("sample %d = %d, exceeds amplitude %d", i, v, infrasoundAmplitude)
		}
	}
}

func TestKeepAliveStartStopIsIdempotent(t *testing.T) {
	k := NewKeepAlive(log.New(io.Discard), MethodSilence)
	k.Start()
	k.Start() // no-op while already running
	k.Stop()
	k.Stop() // no-op while already stopped
}

func TestKeepAliveBurstWithNoSinkIsNoop(t *testing.T) {
	k := NewKeepAlive(log.New(io.Discard), MethodInfrasound)
	// No SetTargetSink call: burst should bail out before touching pacat.
	k.burst()
}
