package vulkan

import (
	"fmt"
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-shapes/engine/core"
	"github.com/spaghettifunk/anima-shapes/engine/renderer/metadata"
)

var ErrNotMappable = errors.New("buffer is not host visible")

type Buffer struct {
	device *Device
	desc   metadata.BufferDescriptor

	Handle vk.Buffer
	Memory vk.DeviceMemory

	mapped        []byte
	descriptorSet vk.DescriptorSet
	live          bool
	destroyed     bool
}

func bufferUsageFlags(usage metadata.BufferUsage) vk.BufferUsageFlags {
	var flags vk.BufferUsageFlagBits
	if usage&metadata.BufferUsageVertex != 0 {
		flags |= vk.BufferUsageVertexBufferBit
	}
	if usage&metadata.BufferUsageIndex != 0 {
		flags |= vk.BufferUsageIndexBufferBit
	}
	if usage&metadata.BufferUsageConstant != 0 {
		flags |= vk.BufferUsageUniformBufferBit
	}
	if usage&metadata.BufferUsageTransferSrc != 0 {
		flags |= vk.BufferUsageTransferSrcBit
	}
	if usage&metadata.BufferUsageTransferDst != 0 {
		flags |= vk.BufferUsageTransferDstBit
	}
	return vk.BufferUsageFlags(flags)
}

func heapMemoryFlags(heap metadata.HeapType) vk.MemoryPropertyFlags {
	if heap == metadata.HeapTypeUpload {
		return vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	}
	return vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
}

func (d *Device) CreateBuffer(desc metadata.BufferDescriptor) (metadata.Buffer, error) {
	if desc.Size == 0 {
		return nil, core.NewFatalDeviceError("CreateBuffer", fmt.Errorf("buffer %s has zero size", desc.Name))
	}
	ctx := d.context
	b := &Buffer{device: d, desc: desc}

	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(desc.Size),
		Usage:       bufferUsageFlags(desc.Usage),
		SharingMode: vk.SharingModeExclusive,
	}
	if res := vk.CreateBuffer(ctx.Device.LogicalDevice, &bufferInfo, ctx.Allocator, &b.Handle); res != vk.Success {
		return nil, resultError("vkCreateBuffer", res)
	}

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(ctx.Device.LogicalDevice, b.Handle, &requirements)
	requirements.Deref()

	memoryType := ctx.FindMemoryIndex(requirements.MemoryTypeBits, uint32(heapMemoryFlags(desc.Heap)))
	if memoryType == -1 {
		b.Destroy()
		return nil, core.NewFatalDeviceError("CreateBuffer", fmt.Errorf("no memory type for buffer %s", desc.Name))
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: uint32(memoryType),
	}
	if res := vk.AllocateMemory(ctx.Device.LogicalDevice, &allocateInfo, ctx.Allocator, &b.Memory); res != vk.Success {
		b.Destroy()
		return nil, resultError("vkAllocateMemory", res)
	}
	if res := vk.BindBufferMemory(ctx.Device.LogicalDevice, b.Handle, b.Memory, 0); res != vk.Success {
		b.Destroy()
		return nil, resultError("vkBindBufferMemory", res)
	}

	if desc.Usage&metadata.BufferUsageConstant != 0 && desc.ElementSize > 0 {
		err := d.locks.SafeCall(DescriptorManagement, func() error {
			set, err := ConstantBufferSetAllocate(ctx, d.constantBufferPool, d.constantBufferLayout, b.Handle, desc.ElementSize)
			b.descriptorSet = set
			return err
		})
		if err != nil {
			b.Destroy()
			return nil, err
		}
	}

	b.live = true
	d.liveBuffers.Add(1)
	return b, nil
}

func (b *Buffer) Name() string {
	return b.desc.Name
}

func (b *Buffer) Size() uint64 {
	return b.desc.Size
}

// Map maps the whole buffer once and hands out the same bytes until Unmap.
func (b *Buffer) Map() ([]byte, error) {
	if b.desc.Heap != metadata.HeapTypeUpload {
		return nil, core.NewFatalDeviceError("Map", ErrNotMappable)
	}
	if b.mapped != nil {
		return b.mapped, nil
	}
	var data unsafe.Pointer
	if res := vk.MapMemory(b.device.context.Device.LogicalDevice, b.Memory, 0, vk.DeviceSize(b.desc.Size), 0, &data); res != vk.Success {
		return nil, resultError("vkMapMemory", res)
	}
	b.mapped = unsafe.Slice((*byte)(data), b.desc.Size)
	return b.mapped, nil
}

func (b *Buffer) Unmap() {
	if b.mapped == nil {
		return
	}
	vk.UnmapMemory(b.device.context.Device.LogicalDevice, b.Memory)
	b.mapped = nil
}

func (b *Buffer) Destroy() {
	if b.destroyed {
		return
	}
	ctx := b.device.context

	b.Unmap()
	if b.descriptorSet != nil {
		set := b.descriptorSet
		if err := b.device.locks.SafeCall(DescriptorManagement, func() error {
			return ConstantBufferSetFree(ctx, b.device.constantBufferPool, set)
		}); err != nil {
			core.LogError("freeing the descriptor set of %s: %v", b.desc.Name, err)
		}
		b.descriptorSet = nil
	}
	if b.Handle != nil {
		vk.DestroyBuffer(ctx.Device.LogicalDevice, b.Handle, ctx.Allocator)
		b.Handle = nil
	}
	if b.Memory != nil {
		vk.FreeMemory(ctx.Device.LogicalDevice, b.Memory, ctx.Allocator)
		b.Memory = nil
	}
	if b.live {
		b.device.liveBuffers.Add(-1)
		b.live = false
	}
	b.destroyed = true
}
