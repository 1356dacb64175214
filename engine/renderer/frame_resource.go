package renderer

import (
	"context"
	"fmt"

	"github.com/spaghettifunk/anima-shapes/engine/core"
	"github.com/spaghettifunk/anima-shapes/engine/renderer/metadata"
)

type FrameResourceState uint8

const (
	// The device finished with the slot, it may be reused.
	FRAME_RESOURCE_STATE_IDLE FrameResourceState = iota
	// The CPU is writing commands and constants into the slot.
	FRAME_RESOURCE_STATE_RECORDING
	// The slot carries a fence value the device has not necessarily reached.
	FRAME_RESOURCE_STATE_SUBMITTED
)

func (s FrameResourceState) String() string {
	switch s {
	case FRAME_RESOURCE_STATE_IDLE:
		return "idle"
	case FRAME_RESOURCE_STATE_RECORDING:
		return "recording"
	case FRAME_RESOURCE_STATE_SUBMITTED:
		return "submitted"
	}
	return "unknown"
}

// FrameResource holds everything the CPU writes for one frame in flight.
type FrameResource struct {
	CmdListAlloc metadata.CommandAllocator
	PassCB       *UploadBuffer[PassConstants]
	ObjectCB     *UploadBuffer[ObjectConstants]
	// Fence is the value that marks the commands of this frame as complete.
	Fence uint64
	State FrameResourceState
}

func NewFrameResource(device metadata.Device, index int, passCount, objectCount uint32) (*FrameResource, error) {
	alloc, err := device.CreateCommandAllocator()
	if err != nil {
		err = fmt.Errorf("frame resource %d: failed to create command allocator: %w", index, err)
		core.LogError(err.Error())
		return nil, err
	}

	passCB, err := NewUploadBuffer[PassConstants](device, fmt.Sprintf("frame%d.pass", index), passCount, true)
	if err != nil {
		alloc.Destroy()
		return nil, err
	}

	objectCB, err := NewUploadBuffer[ObjectConstants](device, fmt.Sprintf("frame%d.objects", index), objectCount, true)
	if err != nil {
		passCB.Destroy()
		alloc.Destroy()
		return nil, err
	}

	return &FrameResource{
		CmdListAlloc: alloc,
		PassCB:       passCB,
		ObjectCB:     objectCB,
		State:        FRAME_RESOURCE_STATE_IDLE,
	}, nil
}

func (f *FrameResource) Destroy() {
	f.ObjectCB.Destroy()
	f.PassCB.Destroy()
	f.CmdListAlloc.Destroy()
}

// FrameResourceRing rotates through N frame resources so the CPU can record
// frame k+N-1 while the device still executes frame k. A slot is only waited
// on when its previous fence value has not been reached.
type FrameResourceRing struct {
	fence    metadata.Fence
	slots    []*FrameResource
	current  int
	lastSeen uint64
	waits    uint64
}

func NewFrameResourceRing(device metadata.Device, fence metadata.Fence, n int, objectCount uint32) (*FrameResourceRing, error) {
	core.Assert(n >= 1, "frame resource ring depth must be at least 1, got %d", n)
	core.Assert(objectCount >= 1, "frame resource ring needs at least one object slot")

	ring := &FrameResourceRing{
		fence:   fence,
		slots:   make([]*FrameResource, 0, n),
		current: n - 1,
	}
	for i := 0; i < n; i++ {
		fr, err := NewFrameResource(device, i, 1, objectCount)
		if err != nil {
			ring.Destroy()
			return nil, err
		}
		ring.slots = append(ring.slots, fr)
	}
	core.LogInfo("frame resource ring created: %d slots, %d objects each", n, objectCount)
	return ring, nil
}

func (r *FrameResourceRing) Len() int {
	return len(r.slots)
}

func (r *FrameResourceRing) CurrentIndex() int {
	return r.current
}

func (r *FrameResourceRing) Current() *FrameResource {
	return r.slots[r.current]
}

func (r *FrameResourceRing) At(index int) *FrameResource {
	core.Assert(index >= 0 && index < len(r.slots), "frame resource index %d out of range [0, %d)", index, len(r.slots))
	return r.slots[index]
}

// State reports the slot state, observing the fence for submitted slots.
func (r *FrameResourceRing) State(index int) FrameResourceState {
	fr := r.At(index)
	if fr.State == FRAME_RESOURCE_STATE_SUBMITTED && r.fence.CompletedValue() >= fr.Fence {
		fr.State = FRAME_RESOURCE_STATE_IDLE
	}
	return fr.State
}

// Waits returns how many times Acquire had to block.
func (r *FrameResourceRing) Waits() uint64 {
	return r.waits
}

// Advance moves to the next slot and returns its index.
func (r *FrameResourceRing) Advance() int {
	r.current = (r.current + 1) % len(r.slots)
	return r.current
}

// Acquire makes slot index safe to record into. It blocks only when the slot
// still carries a fence value the device has not completed, then resets the
// slot's command allocator.
func (r *FrameResourceRing) Acquire(ctx context.Context, index int) (*FrameResource, error) {
	fr := r.At(index)
	core.Assert(fr.State != FRAME_RESOURCE_STATE_RECORDING, "frame resource %d acquired twice", index)

	if fr.Fence != 0 && r.fence.CompletedValue() < fr.Fence {
		r.waits++
		core.LogDebug("frame resource %d: waiting for fence %d (completed %d)", index, fr.Fence, r.fence.CompletedValue())
		if err := r.fence.Wait(ctx, fr.Fence); err != nil {
			err = fmt.Errorf("frame resource %d: wait for fence %d: %w", index, fr.Fence, err)
			core.LogError(err.Error())
			return nil, err
		}
	}

	if err := fr.CmdListAlloc.Reset(); err != nil {
		err = fmt.Errorf("frame resource %d: failed to reset command allocator: %w", index, err)
		core.LogError(err.Error())
		return nil, err
	}
	fr.State = FRAME_RESOURCE_STATE_RECORDING
	return fr, nil
}

// Stamp records the fence value signalled after the slot's commands.
func (r *FrameResourceRing) Stamp(index int, value uint64) {
	fr := r.At(index)
	core.Assert(fr.State == FRAME_RESOURCE_STATE_RECORDING, "frame resource %d stamped while %s", index, fr.State)
	core.Assert(value > r.lastSeen, "fence value %d is not above %d", value, r.lastSeen)
	fr.Fence = value
	fr.State = FRAME_RESOURCE_STATE_SUBMITTED
	r.lastSeen = value
}

// Release returns a slot that was acquired but never submitted to idle.
func (r *FrameResourceRing) Release(index int) {
	fr := r.At(index)
	if fr.State == FRAME_RESOURCE_STATE_RECORDING {
		if fr.Fence != 0 {
			fr.State = FRAME_RESOURCE_STATE_SUBMITTED
		} else {
			fr.State = FRAME_RESOURCE_STATE_IDLE
		}
	}
}

// Flush waits for the highest stamped fence value, leaving every slot idle.
func (r *FrameResourceRing) Flush(ctx context.Context) error {
	if r.lastSeen != 0 && r.fence.CompletedValue() < r.lastSeen {
		if err := r.fence.Wait(ctx, r.lastSeen); err != nil {
			err = fmt.Errorf("failed to flush frame resources at fence %d: %w", r.lastSeen, err)
			core.LogError(err.Error())
			return err
		}
	}
	for _, fr := range r.slots {
		if fr.State == FRAME_RESOURCE_STATE_SUBMITTED {
			fr.State = FRAME_RESOURCE_STATE_IDLE
		}
	}
	return nil
}

// Destroy frees the slots. Call Flush first.
func (r *FrameResourceRing) Destroy() {
	for _, fr := range r.slots {
		fr.Destroy()
	}
	r.slots = nil
}
