package headless

import (
	"github.com/spaghettifunk/anima-shapes/engine/core"
	"github.com/spaghettifunk/anima-shapes/engine/renderer/metadata"
)

type Buffer struct {
	device    *Device
	desc      metadata.BufferDescriptor
	data      []byte
	mapped    bool
	destroyed bool
}

func (b *Buffer) Name() string {
	return b.desc.Name
}

func (b *Buffer) Size() uint64 {
	return b.desc.Size
}

func (b *Buffer) Heap() metadata.HeapType {
	return b.desc.Heap
}

// Contents exposes the simulated device memory.
func (b *Buffer) Contents() []byte {
	return b.data
}

func (b *Buffer) Map() ([]byte, error) {
	if b.desc.Heap != metadata.HeapTypeUpload {
		return nil, core.NewFatalDeviceError("Map", ErrNotMappable)
	}
	b.mapped = true
	return b.data, nil
}

func (b *Buffer) Unmap() {
	b.mapped = false
}

func (b *Buffer) Destroy() {
	if b.destroyed {
		return
	}
	b.destroyed = true
	b.device.mu.Lock()
	b.device.liveBuffers--
	b.device.mu.Unlock()
}

type CommandAllocator struct {
	device   *Device
	pending  bool
	retireAt uint64
	fence    *Fence
	resets   int
}

// Reset fails when the device has not finished the lists recorded from it.
func (a *CommandAllocator) Reset() error {
	if a.pending {
		if a.fence == nil || a.fence.CompletedValue() < a.retireAt {
			return core.NewFatalDeviceError("CommandAllocator.Reset", ErrAllocatorInUse)
		}
		a.pending = false
	}
	a.resets++
	return nil
}

func (a *CommandAllocator) Resets() int {
	return a.resets
}

func (a *CommandAllocator) Destroy() {}

type Pipeline struct {
	desc metadata.PipelineDescriptor
}

func (p *Pipeline) Name() string {
	return p.desc.Name
}

func (p *Pipeline) Wireframe() bool {
	return p.desc.Wireframe
}

func (p *Pipeline) Destroy() {}
