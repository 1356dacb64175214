package containers

import (
	"errors"
	"testing"
)

func TestRingQueueFIFOAcrossWrap(t *testing.T) {
	rq := NewRingQueue[uint64](3)
	for v := uint64(1); v <= 3; v++ {
		rq.Enqueue(v)
	}
	if !rq.IsFull() {
		t.Fatal("expected full queue")
	}
	if v, _ := rq.Dequeue(); v != 1 {
		t.Fatalf("got %d, want 1", v)
	}
	rq.Enqueue(4)
	rq.Enqueue(5) // grows while wrapped

	if rq.Cap() != 6 {
		t.Fatalf("cap = %d, want 6", rq.Cap())
	}
	for want := uint64(2); want <= 5; want++ {
		got, err := rq.Dequeue()
		if err != nil || got != want {
			t.Fatalf("got %d (%v), want %d", got, err, want)
		}
	}
	if _, err := rq.Dequeue(); !errors.Is(err, ErrQueueEmpty) {
		t.Fatalf("expected ErrQueueEmpty, got %v", err)
	}
}

func TestRingQueuePeek(t *testing.T) {
	rq := NewRingQueue[string](0)
	if _, err := rq.Peek(); err == nil {
		t.Fatal("expected error on empty peek")
	}
	rq.Enqueue("a")
	rq.Enqueue("b")
	if v, _ := rq.Peek(); v != "a" || rq.Len() != 2 {
		t.Fatalf("peek = %q len = %d", v, rq.Len())
	}
}
