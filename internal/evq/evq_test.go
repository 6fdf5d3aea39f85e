package evq

import "testing"

func TestFIFOOrdering(t *testing.T) {
	q := New(4)
	for i := uint32(1); i <= 3; i++ {
		if !q.Enqueue(Event{Type: i}, false) {
			t.Fatalf("enqueue %d failed", i)
		}
	}
	for i := uint32(1); i <= 3; i++ {
		evt, ok := q.Dequeue()
		if !ok || evt.Type != i {
			t.Fatalf("got=%+v ok=%v want type=%d", evt, ok, i)
		}
	}
}

func TestUrgentInsertsAtHead(t *testing.T) {
	q := New(4)
	q.Enqueue(Event{Type: 1}, false)
	q.Enqueue(Event{Type: 2}, true)
	q.Enqueue(Event{Type: 3}, true)

	// Urgent items are LIFO relative to each other, ahead of ordinary ones.
	want := []uint32{3, 2, 1}
	for _, w := range want {
		evt, ok := q.Dequeue()
		if !ok || evt.Type != w {
			t.Fatalf("got=%+v ok=%v want type=%d", evt, ok, w)
		}
	}
}

func TestEnqueueFailsWhenFull(t *testing.T) {
	q := New(2)
	if !q.Enqueue(Event{Type: 1}, false) {
		t.Fatal("expected first enqueue to succeed")
	}
	if !q.Enqueue(Event{Type: 2}, false) {
		t.Fatal("expected second enqueue to succeed")
	}
	if q.Enqueue(Event{Type: 3}, false) {
		t.Fatal("expected enqueue on full queue to fail")
	}
	if q.Len() != 2 {
		t.Fatalf("len=%d want 2", q.Len())
	}
}

func TestDequeueEmpty(t *testing.T) {
	q := New(2)
	if _, ok := q.Dequeue(); ok {
		t.Fatal("expected dequeue on empty queue to fail")
	}
}

func TestDrainInvokesOnDrop(t *testing.T) {
	q := New(4)
	q.Enqueue(Event{Type: 1}, false)
	q.Enqueue(Event{Type: 2}, false)

	var dropped []uint32
	q.OnDrop = func(evt Event) { dropped = append(dropped, evt.Type) }
	q.Drain()

	if len(dropped) != 2 || dropped[0] != 1 || dropped[1] != 2 {
		t.Fatalf("dropped=%v", dropped)
	}
	if q.Len() != 0 {
		t.Fatalf("len=%d want 0", q.Len())
	}
}
