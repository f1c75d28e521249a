package pulse

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/the-jonsey/pulseaudio"
)

// EventKind enumerates the per-sink facts §4.2 requires the subscription
// loop to emit; everything else from the native subscribe stream is
// dropped.
type EventKind string

const (
	EventVolumeChanged    EventKind = "volume_changed"
	EventSinkRunning      EventKind = "sink_running"
	EventSinkIdle         EventKind = "sink_idle"
)

// Event is a single observation delivered to the subscriber callback, in
// event-arrival order.
type Event struct {
	Kind      EventKind
	SinkName  string
	VolumePct int
	Mute      bool
}

// Subscriber owns a second, dedicated connection to PulseAudio purely for
// its subscribe stream, since native-protocol subscribe calls block the
// connection they're issued on (§4.2).
type Subscriber struct {
	log     *log.Logger
	address string
	onEvent func(Event)

	lastState map[string]string
	lastVol   map[string]int
	lastMute  map[string]bool
}

// NewSubscriber constructs a Subscriber. addr follows the same candidate
// resolution Facade.Connect uses.
func NewSubscriber(logger *log.Logger, addr string, onEvent func(Event)) *Subscriber {
	return &Subscriber{
		log:       logger.With("component", "pulse-sub"),
		address:   addr,
		onEvent:   onEvent,
		lastState: make(map[string]string),
		lastVol:   make(map[string]int),
		lastMute:  make(map[string]bool),
	}
}

// Run connects and processes subscription updates until ctx is cancelled,
// reconnecting with exponential backoff (1s doubling, capped at 30s) on
// disconnect.
func (s *Subscriber) Run(ctx context.Context) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := s.runOnce(ctx); err != nil {
			s.log.Warn("pulse subscriber disconnected, retrying", "error", err, "backoff", backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second
	}
}

func (s *Subscriber) runOnce(ctx context.Context) error {
	addrs := candidateSocketPaths()
	if s.address != "" {
		addrs = append([]string{s.address}, addrs...)
	}

	var client *pulseaudio.Client
	var err error
	for _, addr := range addrs {
		client, err = pulseaudio.NewClient(addr)
		if err == nil {
			break
		}
	}
	if client == nil {
		return err
	}
	defer client.Close()

	notify := make(chan struct{}, 8)
	client.Subscribe(func() {
		select {
		case notify <- struct{}{}:
		default:
		}
	})

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !client.Connected() {
				return ErrUnavailable
			}
		case <-notify:
			s.pollAndEmit(client)
		}
	}
}

// pollAndEmit re-reads sink state after each native update notification,
// since the subscribe stream signals "something changed" without payload
// detail. Only actual transitions are emitted: state-for-state and
// volume-for-volume, compared against the last observation per sink
// (hysteresis, not per-sample).
func (s *Subscriber) pollAndEmit(client *pulseaudio.Client) {
	sinks, err := client.Sinks()
	if err != nil {
		return
	}
	for _, sink := range sinks {
		volPct := int(sink.GetVolume() * 100)
		if prev, ok := s.lastVol[sink.Name]; !ok || prev != volPct || s.lastMute[sink.Name] != sink.Mute {
			s.lastVol[sink.Name] = volPct
			s.lastMute[sink.Name] = sink.Mute
			s.onEvent(Event{Kind: EventVolumeChanged, SinkName: sink.Name, VolumePct: volPct, Mute: sink.Mute})
		}

		wasRunning := s.lastState[sink.Name] == "running"
		isRunning := strings.EqualFold(sink.State, "running")
		if isRunning && !wasRunning {
			s.onEvent(Event{Kind: EventSinkRunning, SinkName: sink.Name})
		} else if !isRunning && wasRunning {
			s.onEvent(Event{Kind: EventSinkIdle, SinkName: sink.Name})
		}
		if isRunning {
			s.lastState[sink.Name] = "running"
		} else {
			s.lastState[sink.Name] = "idle"
		}
	}
}
