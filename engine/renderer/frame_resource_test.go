package renderer

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/anima-shapes/engine/renderer/headless"
	"github.com/spaghettifunk/anima-shapes/engine/renderer/metadata"
)

func newTestRing(t *testing.T, dev *headless.Device, n int) (*FrameResourceRing, metadata.Fence) {
	t.Helper()
	fence, err := dev.CreateFence(0)
	if err != nil {
		t.Fatal(err)
	}
	ring, err := NewFrameResourceRing(dev, fence, n, 2)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(ring.Destroy)
	return ring, fence
}

func TestRingVisitsSlotsInOrder(t *testing.T) {
	dev := headless.NewDevice(headless.Options{})
	ring, _ := newTestRing(t, dev, 3)

	want := []int{0, 1, 2, 0, 1, 2, 0}
	for i, w := range want {
		if got := ring.Advance(); got != w {
			t.Fatalf("advance %d = slot %d, want %d", i, got, w)
		}
	}
	if ring.Current() != ring.At(0) {
		t.Fatal("current slot mismatch")
	}
}

func TestRingRejectsZeroDepth(t *testing.T) {
	dev := headless.NewDevice(headless.Options{})
	fence, _ := dev.CreateFence(0)
	expectPanic(t, "zero depth", func() {
		NewFrameResourceRing(dev, fence, 0, 1)
	})
}

func TestFrameResourceBuffers(t *testing.T) {
	dev := headless.NewDevice(headless.Options{})
	ring, _ := newTestRing(t, dev, 2)

	for i := 0; i < ring.Len(); i++ {
		fr := ring.At(i)
		if fr.PassCB.Count() != 1 || fr.ObjectCB.Count() != 2 {
			t.Fatalf("slot %d: pass=%d objects=%d", i, fr.PassCB.Count(), fr.ObjectCB.Count())
		}
		if fr.State != FRAME_RESOURCE_STATE_IDLE || fr.Fence != 0 {
			t.Fatalf("slot %d starts %s with fence %d", i, fr.State, fr.Fence)
		}
	}
	if ring.At(0).ObjectCB.Resource() == ring.At(1).ObjectCB.Resource() {
		t.Fatal("slots share an object constant buffer")
	}
	expectPanic(t, "slot out of range", func() { ring.At(2) })
}

// Acquire may only block when the slot's previous submission is unfinished.
// A cancelled context turns any wait into an immediate error.
func TestAcquireBlocksOnlyWhenUnmet(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4} {
		dev := headless.NewDevice(headless.Options{Manual: true})
		ring, fence := newTestRing(t, dev, n)
		ctx := cancelledContext()

		// the first n frames find fresh slots
		for frame := 1; frame <= n; frame++ {
			idx := ring.Advance()
			if _, err := ring.Acquire(ctx, idx); err != nil {
				t.Fatalf("n=%d frame %d: acquire of a fresh slot failed: %v", n, frame, err)
			}
			if err := dev.Signal(fence, uint64(frame)); err != nil {
				t.Fatal(err)
			}
			ring.Stamp(idx, uint64(frame))
			if ring.State(idx) != FRAME_RESOURCE_STATE_SUBMITTED {
				t.Fatalf("n=%d: slot %d is %s after stamp", n, idx, ring.State(idx))
			}
		}
		if ring.Waits() != 0 {
			t.Fatalf("n=%d: %d waits while filling the ring", n, ring.Waits())
		}

		// frame n+1 reuses slot 0, whose fence 1 is still pending
		idx := ring.Advance()
		if idx != 0 {
			t.Fatalf("n=%d: frame %d landed in slot %d", n, n+1, idx)
		}
		if _, err := ring.Acquire(ctx, idx); !errors.Is(err, context.Canceled) {
			t.Fatalf("n=%d: acquire of an unfinished slot returned %v", n, err)
		}
		if ring.Waits() != 1 {
			t.Fatalf("n=%d: waits = %d, want 1", n, ring.Waits())
		}

		dev.Complete(1)
		if ring.State(0) != FRAME_RESOURCE_STATE_IDLE {
			t.Fatalf("n=%d: slot 0 is %s after its fence completed", n, ring.State(0))
		}
		if n > 1 && ring.State(1) != FRAME_RESOURCE_STATE_SUBMITTED {
			t.Fatalf("n=%d: slot 1 is %s before its fence completed", n, ring.State(1))
		}
		if _, err := ring.Acquire(ctx, idx); err != nil {
			t.Fatalf("n=%d: acquire after completion failed: %v", n, err)
		}
		if ring.Waits() != 1 {
			t.Fatalf("n=%d: waits = %d after a satisfied acquire", n, ring.Waits())
		}
	}
}

func TestStampInvariants(t *testing.T) {
	dev := headless.NewDevice(headless.Options{})
	ring, _ := newTestRing(t, dev, 2)

	expectPanic(t, "stamp of an idle slot", func() { ring.Stamp(0, 1) })

	idx := ring.Advance()
	if _, err := ring.Acquire(context.Background(), idx); err != nil {
		t.Fatal(err)
	}
	expectPanic(t, "double acquire", func() { ring.Acquire(context.Background(), idx) })
	ring.Stamp(idx, 5)

	idx = ring.Advance()
	if _, err := ring.Acquire(context.Background(), idx); err != nil {
		t.Fatal(err)
	}
	expectPanic(t, "non increasing fence value", func() { ring.Stamp(idx, 5) })
}

func TestReleaseRestoresState(t *testing.T) {
	dev := headless.NewDevice(headless.Options{Latency: 8})
	ring, fence := newTestRing(t, dev, 1)

	idx := ring.Advance()
	if _, err := ring.Acquire(context.Background(), idx); err != nil {
		t.Fatal(err)
	}
	ring.Release(idx)
	if ring.State(idx) != FRAME_RESOURCE_STATE_IDLE {
		t.Fatalf("released fresh slot is %s", ring.State(idx))
	}

	if _, err := ring.Acquire(context.Background(), idx); err != nil {
		t.Fatal(err)
	}
	dev.Signal(fence, 1)
	ring.Stamp(idx, 1)

	// the latency keeps fence 1 pending, acquire completes it
	idx = ring.Advance()
	if _, err := ring.Acquire(context.Background(), idx); err != nil {
		t.Fatal(err)
	}
	ring.Release(idx)
	if ring.At(idx).State != FRAME_RESOURCE_STATE_SUBMITTED {
		t.Fatalf("released stamped slot is %s", ring.At(idx).State)
	}
}

func TestRingFlush(t *testing.T) {
	dev := headless.NewDevice(headless.Options{Latency: 4})
	ring, fence := newTestRing(t, dev, 3)

	for v := uint64(1); v <= 3; v++ {
		idx := ring.Advance()
		if _, err := ring.Acquire(context.Background(), idx); err != nil {
			t.Fatal(err)
		}
		dev.Signal(fence, v)
		ring.Stamp(idx, v)
	}
	if fence.CompletedValue() != 0 {
		t.Fatalf("completed = %d before flush", fence.CompletedValue())
	}
	if err := ring.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if fence.CompletedValue() != 3 {
		t.Fatalf("completed = %d after flush, want 3", fence.CompletedValue())
	}
	for i := 0; i < ring.Len(); i++ {
		if ring.At(i).State != FRAME_RESOURCE_STATE_IDLE {
			t.Fatalf("slot %d is %s after flush", i, ring.At(i).State)
		}
	}
}
