// Package pulse is the PulseAudio Facade: a single connection-pool-managed
// handle to PulseAudio with typed operations for bluez sinks and card
// profiles (spec §4.2).
package pulse

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/btorch/btaudiod/internal/macaddr"
	"github.com/charmbracelet/log"
	"github.com/the-jonsey/pulseaudio"
)

// candidateSocketPaths is tried in order when no explicit server address is
// configured, per §4.2's connection contract.
func candidateSocketPaths() []string {
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		runtimeDir = fmt.Sprintf("/run/user/%d", os.Getuid())
	}
	return []string{
		runtimeDir + "/pulse/native",
		"/var/run/pulse/native",
		"/run/pulse/native",
	}
}

// Facade is the primary PulseAudio connection. A second, independent
// connection is opened by Subscriber for the event loop, since the native
// binding's subscribe call monopolizes its connection (§4.2).
type Facade struct {
	log     *log.Logger
	address string

	mu     sync.Mutex
	client *pulseaudio.Client
}

// New constructs a Facade. addr, if non-empty, is tried before the
// well-known candidate socket paths.
func New(logger *log.Logger, addr string) *Facade {
	return &Facade{log: logger.With("component", "pulse"), address: addr}
}

// Connect tries the injected address first, then the ordered candidate
// list, raising a single typed error when none succeed.
func (f *Facade) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	addrs := candidateSocketPaths()
	if f.address != "" {
		addrs = append([]string{f.address}, addrs...)
	}

	var lastErr error
	for _, addr := range addrs {
		client, err := pulseaudio.NewClient(addr)
		if err != nil {
			lastErr = err
			continue
		}
		f.client = client
		f.log.Info("connected to pulseaudio", "address", addr)
		return nil
	}

	return fault.Wrap(ErrUnavailable,
		fctx.With(ctx),
		ftag.With(ftag.Unavailable),
		fmsg.WithDesc("pulse-connect", lastErr.Error()),
	)
}

// Reconnect closes and re-establishes the primary connection, for use after
// an audio-service restart.
func (f *Facade) Reconnect(ctx context.Context) error {
	f.mu.Lock()
	if f.client != nil {
		f.client.Close()
		f.client = nil
	}
	f.mu.Unlock()
	return f.Connect(ctx)
}

// Close releases the primary connection.
func (f *Facade) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.client != nil {
		f.client.Close()
		f.client = nil
	}
}

func (f *Facade) client_() (*pulseaudio.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.client == nil {
		return nil, ErrUnavailable
	}
	return f.client, nil
}

// BTSink is a Bluetooth-named PulseAudio sink, per §3's Sink Snapshot model.
type BTSink struct {
	Name        string
	Description string
	State       SinkState
	VolumePct   int
	Mute        bool
	SampleRate  int
	Channels    int
	SampleFmt   string
}

// SinkState mirrors PulseAudio's sink_state_t as exposed to listeners.
type SinkState string

const (
	SinkRunning   SinkState = "running"
	SinkIdle      SinkState = "idle"
	SinkSuspended SinkState = "suspended"
)

// sinkNamePrefix is the bluez sink naming contract of §6:
// "bluez_sink.<MAC-underscored>.<profile>".
const sinkNamePrefix = "bluez_sink."

// BTSinkName builds the expected sink name for address under profile
// ("a2dp_sink" or "headset_head_unit").
func BTSinkName(address macaddr.Address, profile string) string {
	return sinkNamePrefix + address.Underscored() + "." + profile
}

// BTCardName builds the expected card name for address.
func BTCardName(address macaddr.Address) string {
	return "bluez_card." + address.Underscored()
}

// ListBTSinks returns all sinks whose name carries the bluez_sink. prefix.
func (f *Facade) ListBTSinks(ctx context.Context) ([]BTSink, error) {
	client, err := f.client_()
	if err != nil {
		return nil, fault.Wrap(err, fctx.With(ctx), ftag.With(ftag.Unavailable), fmsg.With("list bt sinks"))
	}

	sinks, err := client.Sinks()
	if err != nil {
		return nil, fault.Wrap(err, fctx.With(ctx), ftag.With(ftag.Internal), fmsg.With("list sinks"))
	}

	specs := f.pactlSampleSpecs(ctx)

	out := make([]BTSink, 0, len(sinks))
	for _, s := range sinks {
		if !strings.HasPrefix(s.Name, sinkNamePrefix) {
			continue
		}
		out = append(out, convertSink(s, specs[s.Name]))
	}
	return out, nil
}

// sampleSpec is a sink's PCM format as reported by "pactl list sinks", e.g.
// "s16le 2ch 48000Hz" parsed into its three fields.
type sampleSpec struct {
	format   string
	rate     int
	channels int
}

// pactlSampleSpecs shells out to pactl for sample-spec data the native
// binding's Sink struct doesn't expose (its sample_spec field is still a
// TODO upstream). Best-effort: a missing pactl binary or parse failure just
// leaves sinks without sample-spec data rather than failing the snapshot.
func (f *Facade) pactlSampleSpecs(ctx context.Context) map[string]sampleSpec {
	specs := make(map[string]sampleSpec)

	out, err := exec.CommandContext(ctx, "pactl", "list", "sinks").Output()
	if err != nil {
		f.log.Debug("pactl not available", "error", err)
		return specs
	}

	var currentName string
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "Name:"):
			currentName = strings.TrimSpace(strings.TrimPrefix(line, "Name:"))
		case strings.HasPrefix(line, "Sample Specification:") && currentName != "":
			specs[currentName] = parseSampleSpec(strings.TrimSpace(strings.TrimPrefix(line, "Sample Specification:")))
		}
	}
	return specs
}

// parseSampleSpec parses a line like "s16le 2ch 48000Hz" into its parts.
func parseSampleSpec(line string) sampleSpec {
	var spec sampleSpec
	for _, part := range strings.Fields(line) {
		switch {
		case strings.HasSuffix(part, "Hz"):
			if rate, err := strconv.Atoi(strings.TrimSuffix(part, "Hz")); err == nil {
				spec.rate = rate
			}
		case strings.HasSuffix(part, "ch"):
			if ch, err := strconv.Atoi(strings.TrimSuffix(part, "ch")); err == nil {
				spec.channels = ch
			}
		default:
			spec.format = part
		}
	}
	return spec
}

// GetSinkForAddress finds the bluez sink currently bound to address,
// regardless of which profile it's under.
func (f *Facade) GetSinkForAddress(ctx context.Context, address macaddr.Address) (BTSink, bool, error) {
	sinks, err := f.ListBTSinks(ctx)
	if err != nil {
		return BTSink{}, false, err
	}
	prefix := sinkNamePrefix + address.Underscored() + "."
	for _, s := range sinks {
		if strings.HasPrefix(s.Name, prefix) {
			return s, true, nil
		}
	}
	return BTSink{}, false, nil
}

// WaitForBTSink polls until a sink for address appears, bailing out early
// when stillConnected reports false (§4.2).
func (f *Facade) WaitForBTSink(ctx context.Context, address macaddr.Address, timeout time.Duration, stillConnected func() bool) (BTSink, bool) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		if sink, ok, _ := f.GetSinkForAddress(ctx, address); ok {
			return sink, true
		}
		if stillConnected != nil && !stillConnected() {
			return BTSink{}, false
		}
		if time.Now().After(deadline) {
			return BTSink{}, false
		}
		select {
		case <-ctx.Done():
			return BTSink{}, false
		case <-ticker.C:
		}
	}
}

// SetSinkVolume sets sink volume 0..100, clamped. On bluez sinks this
// propagates to AVRCP absolute volume automatically via BlueZ's own
// loopback plumbing.
func (f *Facade) SetSinkVolume(ctx context.Context, sinkName string, pct int) error {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	client, err := f.client_()
	if err != nil {
		return fault.Wrap(err, fctx.With(ctx), ftag.With(ftag.Unavailable), fmsg.With("set sink volume"))
	}
	sink, err := client.SinkByName(sinkName)
	if err != nil {
		return fault.Wrap(err, fctx.With(ctx), ftag.With(ftag.NotFound), fmsg.With("lookup sink"))
	}
	if err := sink.SetVolume(float32(pct) / 100); err != nil {
		return fault.Wrap(err, fctx.With(ctx), ftag.With(ftag.Internal), fmsg.With("set sink volume"))
	}
	return nil
}

// SetDefaultSink sets sinkName as the system default.
func (f *Facade) SetDefaultSink(ctx context.Context, sinkName string) error {
	client, err := f.client_()
	if err != nil {
		return fault.Wrap(err, fctx.With(ctx), ftag.With(ftag.Unavailable), fmsg.With("set default sink"))
	}
	if err := client.SetDefaultSink(sinkName); err != nil {
		return fault.Wrap(err, fctx.With(ctx), ftag.With(ftag.Internal), fmsg.With("set default sink"))
	}
	return nil
}

// SuspendSink and ResumeSink drive the power-save idle mode.
func (f *Facade) SuspendSink(ctx context.Context, sinkName string) error {
	client, err := f.client_()
	if err != nil {
		return fault.Wrap(err, fctx.With(ctx), ftag.With(ftag.Unavailable), fmsg.With("suspend sink"))
	}
	sink, err := client.SinkByName(sinkName)
	if err != nil {
		return fault.Wrap(err, fctx.With(ctx), ftag.With(ftag.NotFound), fmsg.With("lookup sink"))
	}
	if err := sink.Suspend(true); err != nil {
		return fault.Wrap(err, fctx.With(ctx), ftag.With(ftag.Internal), fmsg.With("suspend sink"))
	}
	return nil
}

func (f *Facade) ResumeSink(ctx context.Context, sinkName string) error {
	client, err := f.client_()
	if err != nil {
		return fault.Wrap(err, fctx.With(ctx), ftag.With(ftag.Unavailable), fmsg.With("resume sink"))
	}
	sink, err := client.SinkByName(sinkName)
	if err != nil {
		return fault.Wrap(err, fctx.With(ctx), ftag.With(ftag.NotFound), fmsg.With("lookup sink"))
	}
	if err := sink.Suspend(false); err != nil {
		return fault.Wrap(err, fctx.With(ctx), ftag.With(ftag.Internal), fmsg.With("resume sink"))
	}
	return nil
}

// convertSink maps the library's Sink into our own BTSink. State isn't
// populated by the underlying client in every server version; sinks that
// don't report one are treated as idle rather than guessed at. spec carries
// the sample-rate/channels/format data pactl reported for this sink, if any.
func convertSink(s *pulseaudio.Sink, spec sampleSpec) BTSink {
	state := SinkIdle
	switch strings.ToLower(s.State) {
	case "running":
		state = SinkRunning
	case "suspended":
		state = SinkSuspended
	}
	return BTSink{
		Name:        s.Name,
		Description: s.Description,
		State:       state,
		VolumePct:   int(s.GetVolume() * 100),
		Mute:        s.Mute,
		SampleRate:  spec.rate,
		Channels:    spec.channels,
		SampleFmt:   spec.format,
	}
}
