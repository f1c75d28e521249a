package events

import "testing"

func TestRingBufferEvictsOldest(t *testing.T) {
	r := newRingBuffer(3)
	for i := int64(1); i <= 5; i++ {
		r.push(Event{Kind: KindLog, Timestamp: i})
	}

	got := r.snapshot()
	if len(got) != 3 {
		t.Fatalf("snapshot length = %d, want 3", len(got))
	}
	want := []int64{3, 4, 5}
	for i, ev := range got {
		if ev.Timestamp != want[i] {
			t.Fatalf("snapshot[%d].Timestamp = %d, want %d", i, ev.Timestamp, want[i])
		}
	}
}

func TestRingBufferSnapshotIsACopy(t *testing.T) {
	r := newRingBuffer(2)
	r.push(Event{Kind: KindLog, Timestamp: 1})

	snap := r.snapshot()
	snap[0].Timestamp = 999

	if got := r.snapshot(); got[0].Timestamp != 1 {
		t.Fatalf("mutating a snapshot affected the ring buffer: %+v", got)
	}
}
