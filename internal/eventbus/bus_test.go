package eventbus

import (
	"testing"
)

func TestBus_FanoutAndFilter(t *testing.T) {
	t.Parallel()
	b := New()

	all, unsubAll := b.Subscribe(4)
	defer unsubAll()
	titles, unsubTitles := b.Subscribe(4, "titles.")
	defer unsubTitles()

	b.Publish(Event{Type: RegionUpdated, Data: RegionData{Region: "title_queues", Key: "sage"}})
	b.Publish(Event{Type: SlotAssigned})

	if got := len(all); got != 2 {
		t.Fatalf("all subscriber got %d events, want 2", got)
	}
	if got := len(titles); got != 1 {
		t.Fatalf("filtered subscriber got %d events, want 1", got)
	}
	e := <-titles
	if e.Type != SlotAssigned {
		t.Fatalf("type=%q", e.Type)
	}
	if e.Time.IsZero() {
		t.Fatalf("publish should stamp time")
	}
}

func TestBus_DropsWhenFull(t *testing.T) {
	t.Parallel()
	b := New()
	_, unsub := b.Subscribe(1)
	defer unsub()

	b.Publish(Event{Type: RegionCommitted})
	b.Publish(Event{Type: RegionCommitted})
	b.Publish(Event{Type: RegionCommitted})

	if got := b.Dropped(); got != 2 {
		t.Fatalf("dropped=%d want 2", got)
	}
}

func TestBus_UnsubscribeClosesAndIsIdempotent(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()
	unsub()

	if _, ok := <-ch; ok {
		t.Fatalf("channel should be closed")
	}
	// Publishing after unsubscribe must not panic.
	b.Publish(Event{Type: RegionReset})
}
