package buffer

import (
	"testing"

	"github.com/tomtom215/mallardmetrics/event"
)

func TestPushAndDrainPreservesOrder(t *testing.T) {
	b := New()
	b.Push(event.Event{EventName: "a"})
	b.Push(event.Event{EventName: "b"})
	b.Push(event.Event{EventName: "c"})

	drained := b.Drain()
	if len(drained) != 3 {
		t.Fatalf("expected 3 events, got %d", len(drained))
	}
	for i, want := range []string{"a", "b", "c"} {
		if drained[i].EventName != want {
			t.Fatalf("position %d: got %q, want %q", i, drained[i].EventName, want)
		}
	}
	if b.Len() != 0 {
		t.Fatalf("expected buffer empty after drain, got len %d", b.Len())
	}
}

func TestRestoreReinsertsAtFront(t *testing.T) {
	b := New()
	drained := []event.Event{{EventName: "old1"}, {EventName: "old2"}}
	b.Push(event.Event{EventName: "new1"})
	b.Restore(drained)

	all := b.Drain()
	if len(all) != 3 {
		t.Fatalf("expected 3 events after restore, got %d", len(all))
	}
	if all[0].EventName != "old1" || all[1].EventName != "old2" || all[2].EventName != "new1" {
		t.Fatalf("expected restored batch ahead of newly pushed events, got %+v", all)
	}
}

func TestDrainEmptyReturnsNil(t *testing.T) {
	b := New()
	if drained := b.Drain(); drained != nil {
		t.Fatalf("expected nil for an empty buffer drain, got %+v", drained)
	}
}
