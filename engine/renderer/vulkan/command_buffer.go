package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-shapes/engine/core"
	"github.com/spaghettifunk/anima-shapes/engine/renderer/metadata"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

type VulkanCommandBuffer struct {
	Handle vk.CommandBuffer
	// Command buffer state.
	State VulkanCommandBufferState
}

func NewVulkanCommandBuffer(context *VulkanContext, pool vk.CommandPool, isPrimary bool) (*VulkanCommandBuffer, error) {
	vCommandBuffer := &VulkanCommandBuffer{
		State: COMMAND_BUFFER_STATE_NOT_ALLOCATED,
	}

	level := vk.CommandBufferLevelPrimary
	if !isPrimary {
		level = vk.CommandBufferLevelSecondary
	}

	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		CommandBufferCount: 1,
		Level:              level,
	}

	handles := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(context.Device.LogicalDevice, &allocateInfo, handles); res != vk.Success {
		return nil, resultError("vkAllocateCommandBuffers", res)
	}
	vCommandBuffer.Handle = handles[0]
	vCommandBuffer.State = COMMAND_BUFFER_STATE_READY

	return vCommandBuffer, nil
}

func (v *VulkanCommandBuffer) Free(context *VulkanContext, pool vk.CommandPool) {
	vk.FreeCommandBuffers(context.Device.LogicalDevice, pool, 1, []vk.CommandBuffer{v.Handle})
	v.Handle = nil
	v.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}

func (v *VulkanCommandBuffer) Begin(isSingleUse, isRenderpassContinue, isSimultaneousUse bool) error {
	beginInfo := &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if isSingleUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if isRenderpassContinue {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageRenderPassContinueBit)
	}
	if isSimultaneousUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit)
	}

	if res := vk.BeginCommandBuffer(v.Handle, beginInfo); res != vk.Success {
		return resultError("vkBeginCommandBuffer", res)
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING
	return nil
}

func (v *VulkanCommandBuffer) End() error {
	if res := vk.EndCommandBuffer(v.Handle); res != vk.Success {
		return resultError("vkEndCommandBuffer", res)
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

func (v *VulkanCommandBuffer) UpdateSubmitted() {
	v.State = COMMAND_BUFFER_STATE_SUBMITTED
}

func (v *VulkanCommandBuffer) Reset() {
	v.State = COMMAND_BUFFER_STATE_READY
}

// CommandAllocator owns a command pool. Resetting it recycles every command
// buffer allocated from it at once.
type CommandAllocator struct {
	device *Device
	Pool   vk.CommandPool
	// command buffers handed out to lists, freed with the pool
	buffers []*VulkanCommandBuffer
}

func (d *Device) CreateCommandAllocator() (metadata.CommandAllocator, error) {
	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(d.context.Device.GraphicsQueueIndex),
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(d.context.Device.LogicalDevice, &poolCreateInfo, d.context.Allocator, &pool); res != vk.Success {
		return nil, resultError("vkCreateCommandPool", res)
	}
	return &CommandAllocator{device: d, Pool: pool}, nil
}

func (a *CommandAllocator) Reset() error {
	if res := vk.ResetCommandPool(a.device.context.Device.LogicalDevice, a.Pool, 0); res != vk.Success {
		return resultError("vkResetCommandPool", res)
	}
	return nil
}

func (a *CommandAllocator) Destroy() {
	for _, cb := range a.buffers {
		cb.Free(a.device.context, a.Pool)
	}
	a.buffers = nil
	if a.Pool != nil {
		vk.DestroyCommandPool(a.device.context.Device.LogicalDevice, a.Pool, a.device.context.Allocator)
		a.Pool = nil
	}
}

// CommandList records into one primary command buffer per allocator it has
// been reset against, so the same list can cycle through the frame
// allocators.
type CommandList struct {
	device  *Device
	buffers map[*CommandAllocator]*VulkanCommandBuffer
	current *VulkanCommandBuffer

	pipeline      *Pipeline
	usesSwapchain bool
}

func (d *Device) CreateCommandList(allocator metadata.CommandAllocator) (metadata.CommandList, error) {
	alloc, ok := allocator.(*CommandAllocator)
	if !ok {
		return nil, core.NewFatalDeviceError("CreateCommandList", fmt.Errorf("foreign allocator %T", allocator))
	}
	list := &CommandList{
		device:  d,
		buffers: make(map[*CommandAllocator]*VulkanCommandBuffer),
	}
	if _, err := list.bufferFor(alloc); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *CommandList) bufferFor(alloc *CommandAllocator) (*VulkanCommandBuffer, error) {
	if cb, ok := c.buffers[alloc]; ok {
		return cb, nil
	}
	cb, err := NewVulkanCommandBuffer(c.device.context, alloc.Pool, true)
	if err != nil {
		return nil, err
	}
	c.buffers[alloc] = cb
	alloc.buffers = append(alloc.buffers, cb)
	return cb, nil
}

func (c *CommandList) Reset(allocator metadata.CommandAllocator, pipeline metadata.Pipeline) error {
	alloc, ok := allocator.(*CommandAllocator)
	if !ok {
		return core.NewFatalDeviceError("CommandList.Reset", fmt.Errorf("foreign allocator %T", allocator))
	}
	cb, err := c.bufferFor(alloc)
	if err != nil {
		return err
	}
	if err := cb.Begin(true, false, false); err != nil {
		return err
	}
	c.current = cb
	c.usesSwapchain = false
	c.pipeline = nil
	if pipeline != nil {
		c.SetPipeline(pipeline)
	}
	return nil
}

func (c *CommandList) CopyBuffer(dst, src metadata.Buffer, size uint64) {
	d := dst.(*Buffer)
	s := src.(*Buffer)
	vk.CmdCopyBuffer(c.current.Handle, s.Handle, d.Handle, 1, []vk.BufferCopy{
		{
			SrcOffset: 0,
			DstOffset: 0,
			Size:      vk.DeviceSize(size),
		},
	})

	// Geometry reads wait for the copy.
	barrier := vk.BufferMemoryBarrier{
		SType:               vk.StructureTypeBufferMemoryBarrier,
		SrcAccessMask:       vk.AccessFlags(vk.AccessTransferWriteBit),
		DstAccessMask:       vk.AccessFlags(vk.AccessVertexAttributeReadBit | vk.AccessIndexReadBit),
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Buffer:              d.Handle,
		Offset:              0,
		Size:                vk.DeviceSize(size),
	}
	vk.CmdPipelineBarrier(
		c.current.Handle,
		vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		vk.PipelineStageFlags(vk.PipelineStageVertexInputBit),
		0,
		0, nil,
		1, []vk.BufferMemoryBarrier{barrier},
		0, nil)
}

// BeginRenderPass acquires the next swapchain image. A booting or out of date
// swapchain is reported before anything is recorded.
func (c *CommandList) BeginRenderPass(clear metadata.ClearValues) error {
	if err := c.device.acquireNextImage(); err != nil {
		return err
	}
	ctx := c.device.context

	viewport := vk.Viewport{
		X:        0.0,
		Y:        0.0,
		Width:    float32(ctx.FramebufferWidth),
		Height:   float32(ctx.FramebufferHeight),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	}
	scissor := vk.Rect2D{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: vk.Extent2D{
			Width:  ctx.FramebufferWidth,
			Height: ctx.FramebufferHeight,
		},
	}
	vk.CmdSetViewport(c.current.Handle, 0, 1, []vk.Viewport{viewport})
	vk.CmdSetScissor(c.current.Handle, 0, 1, []vk.Rect2D{scissor})

	ctx.MainRenderpass.W = float32(ctx.FramebufferWidth)
	ctx.MainRenderpass.H = float32(ctx.FramebufferHeight)
	ctx.MainRenderpass.RenderpassBegin(c.current, ctx.Swapchain.Framebuffers[ctx.ImageIndex].Handle, clear)
	c.usesSwapchain = true
	return nil
}

func (c *CommandList) SetPipeline(pipeline metadata.Pipeline) {
	p := pipeline.(*Pipeline)
	if c.pipeline == p {
		return
	}
	p.native.Bind(c.current, vk.PipelineBindPointGraphics)
	c.pipeline = p
}

// SetConstantBuffer binds the descriptor set of buffer to set index slot with
// offset as its dynamic offset.
func (c *CommandList) SetConstantBuffer(slot uint32, buffer metadata.Buffer, offset uint64) {
	b := buffer.(*Buffer)
	core.Assert(b.descriptorSet != nil, "buffer %s is not a constant buffer", b.desc.Name)
	vk.CmdBindDescriptorSets(
		c.current.Handle,
		vk.PipelineBindPointGraphics,
		c.device.pipelineLayout,
		slot,
		1,
		[]vk.DescriptorSet{b.descriptorSet},
		1,
		[]uint32{uint32(offset)},
	)
}

func (c *CommandList) SetVertexBuffer(buffer metadata.Buffer, stride uint32) {
	b := buffer.(*Buffer)
	vk.CmdBindVertexBuffers(c.current.Handle, 0, 1, []vk.Buffer{b.Handle}, []vk.DeviceSize{0})
}

func (c *CommandList) SetIndexBuffer(buffer metadata.Buffer, format metadata.IndexFormat) {
	b := buffer.(*Buffer)
	indexType := vk.IndexTypeUint16
	if format == metadata.IndexFormatUint32 {
		indexType = vk.IndexTypeUint32
	}
	vk.CmdBindIndexBuffer(c.current.Handle, b.Handle, 0, indexType)
}

// SetPrimitiveTopology only checks the topology against the bound pipeline,
// Vulkan bakes it into the pipeline state.
func (c *CommandList) SetPrimitiveTopology(topology metadata.PrimitiveTopology) {
	if c.pipeline != nil && c.pipeline.desc.Topology != topology {
		core.LogWarn("pipeline %s was built for topology %d, not %d", c.pipeline.desc.Name, c.pipeline.desc.Topology, topology)
	}
}

func (c *CommandList) DrawIndexedInstanced(indexCount, instanceCount, startIndex uint32, baseVertex int32, startInstance uint32) {
	vk.CmdDrawIndexed(c.current.Handle, indexCount, instanceCount, startIndex, baseVertex, startInstance)
}

func (c *CommandList) EndRenderPass() {
	c.device.context.MainRenderpass.RenderpassEnd(c.current)
}

func (c *CommandList) Close() error {
	if c.current == nil {
		return core.NewFatalDeviceError("CommandList.Close", fmt.Errorf("list was never reset"))
	}
	if c.current.State == COMMAND_BUFFER_STATE_IN_RENDER_PASS {
		c.EndRenderPass()
	}
	return c.current.End()
}
