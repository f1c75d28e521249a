// Package events is the Event Fan-out: bounded per-subscriber queues feeding
// the WebSocket transport, plus replay ring buffers for MPRIS, AVRCP, and
// log history (§4.7, §3).
package events

import (
	"time"

	"github.com/cskr/pubsub/v2"
)

// Kind enumerates the event categories the HTTP/WS transport cares about.
type Kind string

const (
	KindDeviceState  Kind = "device_state"
	KindSinkSnapshot Kind = "sink_snapshot"
	KindMPRIS        Kind = "mpris_command"
	KindAVRCP        Kind = "avrcp_property"
	KindLog          Kind = "log"
	KindNotice       Kind = "notice"
)

// Event is a single JSON-safe observation, with a monotonic Unix-seconds
// timestamp per §3.
type Event struct {
	Kind      Kind        `json:"kind"`
	Timestamp int64       `json:"ts"`
	Payload   interface{} `json:"payload"`
}

// subscriberCapacity is the bounded per-subscriber queue depth (§4.7).
const subscriberCapacity = 64

// topic is the single broadcast topic every subscriber listens on; the
// Fan-out doesn't offer per-kind subscriptions, callers filter by Kind.
const topic = "events"

// Bus is the bounded, non-blocking publish/subscribe Fan-out. A full
// subscriber queue drops the event for that subscriber only; it never
// blocks the publisher.
type Bus struct {
	ps *pubsub.PubSub[string, Event]

	mpris *ringBuffer
	avrcp *ringBuffer
	logs  *ringBuffer

	warn func(msg string, args ...interface{})
}

// NewBus constructs a Bus. warn is called (non-blockingly, from the
// publishing goroutine) whenever a subscriber's queue is full.
func NewBus(warn func(msg string, args ...interface{})) *Bus {
	return &Bus{
		ps:    pubsub.New[string, Event](subscriberCapacity),
		mpris: newRingBuffer(50),
		avrcp: newRingBuffer(50),
		logs:  newRingBuffer(500),
		warn:  warn,
	}
}

// Subscribe returns a channel receiving every future event, plus an
// unsubscribe function the caller must call exactly once.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	ch := b.ps.Sub(topic)
	return ch, func() { go b.ps.Unsub(ch, topic) }
}

// Publish emits an event to every current subscriber, appending to the
// matching ring buffer first so a subscriber connecting immediately after
// can still replay it.
func (b *Bus) Publish(kind Kind, nowUnix int64, payload interface{}) {
	ev := Event{Kind: kind, Timestamp: nowUnix, Payload: payload}

	switch kind {
	case KindMPRIS:
		b.mpris.push(ev)
	case KindAVRCP:
		b.avrcp.push(ev)
	case KindLog:
		b.logs.push(ev)
	}

	if !b.ps.TryPub(ev, topic) && b.warn != nil {
		b.warn("event dropped, subscriber queue full", "kind", kind)
	}
}

// ReplayMPRIS, ReplayAVRCP, and ReplayLog return the current ring-buffer
// contents, oldest first, for a newly-connected subscriber.
func (b *Bus) ReplayMPRIS() []Event { return b.mpris.snapshot() }
func (b *Bus) ReplayAVRCP() []Event { return b.avrcp.snapshot() }
func (b *Bus) ReplayLog() []Event   { return b.logs.snapshot() }

// Now is a small indirection so callers don't each import "time" just to
// get a Unix timestamp for Publish.
func Now() int64 { return time.Now().Unix() }
