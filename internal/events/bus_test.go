package events

import (
	"testing"
	"time"
)

func TestPublishSubscribeDelivery(t *testing.T) {
	bus := NewBus(nil)
	ch, unsub := bus.Subscribe()
	defer unsub()

	bus.Publish(KindDeviceState, 100, map[string]interface{}{"address": "AA:BB:CC:DD:EE:01"})

	select {
	case ev := <-ch:
		if ev.Kind != KindDeviceState || ev.Timestamp != 100 {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published event")
	}
}

func TestReplayBuffersTrackPublishedEventsByKind(t *testing.T) {
	bus := NewBus(nil)

	bus.Publish(KindMPRIS, 1, "play")
	bus.Publish(KindAVRCP, 2, "volume_up")
	bus.Publish(KindLog, 3, "log line")
	// device_state/sink_snapshot/notice aren't buffered for replay.
	bus.Publish(KindDeviceState, 4, "ignored")

	if got := bus.ReplayMPRIS(); len(got) != 1 || got[0].Timestamp != 1 {
		t.Fatalf("ReplayMPRIS = %+v", got)
	}
	if got := bus.ReplayAVRCP(); len(got) != 1 || got[0].Timestamp != 2 {
		t.Fatalf("ReplayAVRCP = %+v", got)
	}
	if got := bus.ReplayLog(); len(got) != 1 || got[0].Timestamp != 3 {
		t.Fatalf("ReplayLog = %+v", got)
	}
}

func TestPublishWithoutSubscribersNeverBlocks(t *testing.T) {
	bus := NewBus(nil)
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberCapacity*2; i++ {
			bus.Publish(KindLog, int64(i), "line")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked with no subscribers")
	}
}

func TestPublishWarnsOnFullSubscriberQueue(t *testing.T) {
	var warned bool
	bus := NewBus(func(msg string, args ...interface{}) { warned = true })

	ch, unsub := bus.Subscribe()
	defer unsub()

	// Flood the subscriber's bounded queue without draining it.
	for i := 0; i < subscriberCapacity+10; i++ {
		bus.Publish(KindLog, int64(i), "line")
	}

	if !warned {
		t.Fatal("expected warn callback once the subscriber queue filled up")
	}
	// Drain so the goroutine backing ch isn't left blocked past the test.
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

func TestNowReturnsUnixSeconds(t *testing.T) {
	before := time.Now().Unix()
	got := Now()
	after := time.Now().Unix()
	if got < before || got > after {
		t.Fatalf("Now() = %d, want between %d and %d", got, before, after)
	}
}
