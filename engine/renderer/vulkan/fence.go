package vulkan

import (
	"context"
	"math"
	"sync"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-shapes/engine/containers"
	"github.com/spaghettifunk/anima-shapes/engine/core"
	"github.com/spaghettifunk/anima-shapes/engine/renderer/metadata"
)

type VulkanFence struct {
	Handle     vk.Fence
	IsSignaled bool
}

func NewFence(context *VulkanContext, createSignaled bool) (*VulkanFence, error) {
	fence := &VulkanFence{
		// Make sure to signal the fence if required.
		IsSignaled: createSignaled,
	}

	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if fence.IsSignaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var pFence vk.Fence
	if res := vk.CreateFence(context.Device.LogicalDevice, &fenceCreateInfo, context.Allocator, &pFence); res != vk.Success {
		return nil, resultError("vkCreateFence", res)
	}
	fence.Handle = pFence
	return fence, nil
}

func (vf *VulkanFence) FenceDestroy(context *VulkanContext) {
	if vf.Handle != nil {
		vk.DestroyFence(context.Device.LogicalDevice, vf.Handle, context.Allocator)
		vf.Handle = nil
	}
	vf.IsSignaled = false
}

// FenceWait returns true once the fence is signalled, false on timeout.
func (vf *VulkanFence) FenceWait(context *VulkanContext, timeoutNs uint64) (bool, error) {
	if vf.IsSignaled {
		// If already signaled, do not wait.
		return true, nil
	}
	result := vk.WaitForFences(context.Device.LogicalDevice, 1, []vk.Fence{vf.Handle}, vk.True, timeoutNs)
	switch result {
	case vk.Success:
		vf.IsSignaled = true
		return true, nil
	case vk.Timeout:
		return false, nil
	default:
		return false, resultError("vkWaitForFences", result)
	}
}

// FencePoll checks the fence without blocking.
func (vf *VulkanFence) FencePoll(context *VulkanContext) (bool, error) {
	if vf.IsSignaled {
		return true, nil
	}
	switch result := vk.GetFenceStatus(context.Device.LogicalDevice, vf.Handle); result {
	case vk.Success:
		vf.IsSignaled = true
		return true, nil
	case vk.NotReady:
		return false, nil
	default:
		return false, resultError("vkGetFenceStatus", result)
	}
}

func (vf *VulkanFence) FenceReset(context *VulkanContext) error {
	if vf.IsSignaled {
		if res := vk.ResetFences(context.Device.LogicalDevice, 1, []vk.Fence{vf.Handle}); res != vk.Success {
			return resultError("vkResetFences", res)
		}
		vf.IsSignaled = false
	}
	return nil
}

type pendingSignal struct {
	value uint64
	fence *VulkanFence
}

// Fence is a monotonically increasing counter built from binary fences. Every
// Signal enqueues an empty submit guarded by a binary fence; the counter
// advances as those fences complete, in submission order.
type Fence struct {
	device *Device

	mu        sync.Mutex
	completed uint64
	signaled  uint64
	pending   *containers.RingQueue[pendingSignal]
}

func (d *Device) CreateFence(initialValue uint64) (metadata.Fence, error) {
	return &Fence{
		device:    d,
		completed: initialValue,
		signaled:  initialValue,
		pending:   containers.NewRingQueue[pendingSignal](int(d.context.MaxFramesInFlight) + 1),
	}, nil
}

// signal must be called with the queue lock held.
func (f *Fence) signal(value uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if value <= f.signaled {
		core.LogWarn("fence signalled with %d, already at %d", value, f.signaled)
		return nil
	}

	vf, err := f.device.acquireFence()
	if err != nil {
		return err
	}
	submitInfo := vk.SubmitInfo{
		SType: vk.StructureTypeSubmitInfo,
	}
	if res := vk.QueueSubmit(f.device.context.Device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, vf.Handle); res != vk.Success {
		f.device.releaseFence(vf)
		return resultError("vkQueueSubmit", res)
	}
	f.pending.Enqueue(pendingSignal{value: value, fence: vf})
	f.signaled = value
	return nil
}

// poll retires every pending signal whose fence completed. Callers hold f.mu.
func (f *Fence) poll() error {
	for !f.pending.IsEmpty() {
		head, _ := f.pending.Peek()
		done, err := head.fence.FencePoll(f.device.context)
		if err != nil {
			return err
		}
		if !done {
			return nil
		}
		_, _ = f.pending.Dequeue()
		f.completed = head.value
		f.device.releaseFence(head.fence)
	}
	return nil
}

func (f *Fence) CompletedValue() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.poll(); err != nil {
		core.LogError("fence poll failed: %v", err)
	}
	return f.completed
}

func (f *Fence) Wait(ctx context.Context, value uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if value > f.signaled {
		return core.NewFatalDeviceError("Fence.Wait", errors.Newf("waiting for %d but the fence was only signalled up to %d", value, f.signaled))
	}
	for {
		if err := f.poll(); err != nil {
			return err
		}
		if f.completed >= value {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		head, _ := f.pending.Peek()
		if _, err := head.fence.FenceWait(f.device.context, VULKAN_FENCE_WAIT_SLICE_NS); err != nil {
			return err
		}
	}
}

func (f *Fence) Destroy() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for !f.pending.IsEmpty() {
		p, _ := f.pending.Dequeue()
		if _, err := p.fence.FenceWait(f.device.context, math.MaxUint64); err != nil {
			core.LogError("fence drain failed: %v", err)
		}
		f.device.releaseFence(p.fence)
	}
}
