package pulse

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"os/exec"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// KeepAliveMethod selects the waveform streamed to a bluez sink to prevent
// the remote speaker's own standby timer from disconnecting it (§4.5).
type KeepAliveMethod string

const (
	MethodSilence    KeepAliveMethod = "silence"
	MethodInfrasound KeepAliveMethod = "infrasound"
)

const (
	keepAliveSampleRate    = 44100
	keepAliveChannels      = 1
	keepAliveStreamSeconds = 1.0
	keepAliveIntervalSecs  = 5.0
	infrasoundFreqHz       = 2.0
	infrasoundAmplitude    = 100
)

// KeepAlive streams a short inaudible burst to a target sink every
// keepAliveIntervalSecs seconds via pacat, for as long as it is running. One
// KeepAlive exists per connected device with an active sink.
type KeepAlive struct {
	log    *log.Logger
	method KeepAliveMethod
	pcm    []byte

	mu         sync.Mutex
	sink       string
	cancel     context.CancelFunc
	running    bool
}

// NewKeepAlive precomputes the PCM burst for method once, since it never
// changes for the lifetime of the service.
func NewKeepAlive(logger *log.Logger, method KeepAliveMethod) *KeepAlive {
	k := &KeepAlive{log: logger.With("component", "keepalive"), method: method}
	if method == MethodSilence {
		k.pcm = generateSilence()
	} else {
		k.pcm = generateInfrasound(infrasoundFreqHz, infrasoundAmplitude)
	}
	return k
}

// SetTargetSink switches the sink the next burst is written to.
func (k *KeepAlive) SetTargetSink(sink string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.sink = sink
}

// Start begins the periodic burst loop. A second Start while already
// running is a no-op.
func (k *KeepAlive) Start() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	k.cancel = cancel
	k.running = true
	go k.loop(ctx)
	k.log.Info("keep-alive started", "method", k.method)
}

// Stop halts the burst loop.
func (k *KeepAlive) Stop() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.running {
		return
	}
	k.cancel()
	k.running = false
	k.log.Info("keep-alive stopped")
}

func (k *KeepAlive) loop(ctx context.Context) {
	ticker := time.NewTicker(keepAliveIntervalSecs * time.Second)
	defer ticker.Stop()

	k.burst()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			k.burst()
		}
	}
}

func (k *KeepAlive) burst() {
	k.mu.Lock()
	sink := k.sink
	k.mu.Unlock()
	if sink == "" {
		return
	}

	cmd := exec.Command("pacat",
		"--device", sink,
		"--format=s16le",
		"--rate=44100",
		"--channels=1",
	)
	cmd.Stdin = bytes.NewReader(k.pcm)
	if err := cmd.Run(); err != nil {
		k.log.Debug("keep-alive stream error", "error", err)
	}
}

func generateSilence() []byte {
	numSamples := int(keepAliveSampleRate * keepAliveStreamSeconds)
	return make([]byte, numSamples*2)
}

func generateInfrasound(freq float64, amplitude int) []byte {
	numSamples := int(keepAliveSampleRate * keepAliveStreamSeconds)
	buf := make([]byte, numSamples*2)
	for i := 0; i < numSamples; i++ {
		value := int16(float64(amplitude) * math.Sin(2.0*math.Pi*freq*float64(i)/keepAliveSampleRate))
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(value))
	}
	return buf
}
