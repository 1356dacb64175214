package headless

import (
	"context"
	"sync"

	"github.com/spaghettifunk/anima-shapes/engine/containers"
	"github.com/spaghettifunk/anima-shapes/engine/core"
)

// Fence simulates a device timeline. Signaled values wait in a queue until
// the latency model or a test completes them.
type Fence struct {
	device *Device

	mu        sync.Mutex
	completed uint64
	pending   *containers.RingQueue[uint64]
	changed   chan struct{}
	destroyed bool
}

func newFence(device *Device, initialValue uint64) *Fence {
	return &Fence{
		device:    device,
		completed: initialValue,
		pending:   containers.NewRingQueue[uint64](4),
		changed:   make(chan struct{}),
	}
}

func (f *Fence) CompletedValue() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed
}

// Pending returns how many signaled values have not completed yet.
func (f *Fence) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending.Len()
}

func (f *Fence) enqueue(value uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending.Enqueue(value)
}

// completeBeyond completes the oldest values until at most keep remain.
func (f *Fence) completeBeyond(keep int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	advanced := false
	for f.pending.Len() > keep {
		v, _ := f.pending.Dequeue()
		if v > f.completed {
			f.completed = v
		}
		advanced = true
	}
	if advanced {
		f.broadcastLocked()
	}
}

func (f *Fence) completeUpTo(value uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	advanced := false
	for !f.pending.IsEmpty() {
		v, _ := f.pending.Peek()
		if v > value {
			break
		}
		f.pending.Dequeue()
		if v > f.completed {
			f.completed = v
		}
		advanced = true
	}
	if advanced {
		f.broadcastLocked()
	}
	return advanced
}

func (f *Fence) broadcastLocked() {
	close(f.changed)
	f.changed = make(chan struct{})
}

// Wait blocks until value completes. Outside manual mode the device finishes
// the outstanding work right away, as a real device eventually would.
func (f *Fence) Wait(ctx context.Context, value uint64) error {
	for {
		f.mu.Lock()
		if f.completed >= value {
			f.mu.Unlock()
			return nil
		}
		changed := f.changed
		f.mu.Unlock()

		if !f.device.manual() {
			f.completeUpTo(value)
			if f.CompletedValue() >= value {
				return nil
			}
			return core.NewFatalDeviceError("Fence.Wait", ErrNeverSignaled)
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (f *Fence) Destroy() {
	f.mu.Lock()
	f.destroyed = true
	f.mu.Unlock()
}
