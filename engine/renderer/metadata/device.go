package metadata

import (
	"context"
)

type HeapType uint8

const (
	// Device local memory, written only through copy commands.
	HeapTypeDefault HeapType = iota
	// Host visible memory, persistently mapped for CPU writes.
	HeapTypeUpload
)

type BufferUsage uint32

const (
	BufferUsageVertex      BufferUsage = 0x1
	BufferUsageIndex       BufferUsage = 0x2
	BufferUsageConstant    BufferUsage = 0x4
	BufferUsageTransferSrc BufferUsage = 0x8
	BufferUsageTransferDst BufferUsage = 0x10
)

type IndexFormat uint8

const (
	IndexFormatUint16 IndexFormat = iota
	IndexFormatUint32
)

// Size returns the byte width of one index.
func (f IndexFormat) Size() uint32 {
	if f == IndexFormatUint32 {
		return 4
	}
	return 2
}

type BufferDescriptor struct {
	Name  string
	Size  uint64
	Heap  HeapType
	Usage BufferUsage
	// ElementSize is the bound range of one constant buffer element.
	ElementSize uint64
}

type Buffer interface {
	Name() string
	Size() uint64
	// Map returns the persistently mapped bytes of an upload heap buffer.
	Map() ([]byte, error)
	Unmap()
	Destroy()
}

type CommandAllocator interface {
	// Reset reclaims the memory of every list recorded from this allocator.
	// The caller guarantees the device finished executing them.
	Reset() error
	Destroy()
}

type ClearValues struct {
	Colour  [4]float32
	Depth   float32
	Stencil uint32
}

type CommandList interface {
	Reset(allocator CommandAllocator, pipeline Pipeline) error
	CopyBuffer(dst, src Buffer, size uint64)
	// BeginRenderPass transitions the back buffer to a render target and clears it.
	BeginRenderPass(clear ClearValues) error
	SetPipeline(pipeline Pipeline)
	SetConstantBuffer(slot uint32, buffer Buffer, offset uint64)
	SetVertexBuffer(buffer Buffer, stride uint32)
	SetIndexBuffer(buffer Buffer, format IndexFormat)
	SetPrimitiveTopology(topology PrimitiveTopology)
	DrawIndexedInstanced(indexCount, instanceCount, startIndex uint32, baseVertex int32, startInstance uint32)
	// EndRenderPass transitions the back buffer back to the present state.
	EndRenderPass()
	Close() error
}

// Fence is a monotonically increasing counter signalled by the device.
type Fence interface {
	CompletedValue() uint64
	// Wait blocks until CompletedValue() >= value or ctx is done.
	Wait(ctx context.Context, value uint64) error
	Destroy()
}

type Pipeline interface {
	Name() string
	Destroy()
}

type VertexAttribute struct {
	Location uint32
	Offset   uint32
	// Components is the number of float32 values (1 to 4).
	Components uint32
}

type PipelineDescriptor struct {
	Name           string
	VertexShader   []byte
	FragmentShader []byte
	VertexStride   uint32
	Attributes     []VertexAttribute
	Topology       PrimitiveTopology
	CullMode       FaceCullMode
	Wireframe      bool
}

// Device is the native graphics collaborator. Every error it returns is a
// *core.FatalDeviceError.
type Device interface {
	CreateBuffer(desc BufferDescriptor) (Buffer, error)
	CreateCommandAllocator() (CommandAllocator, error)
	CreateCommandList(allocator CommandAllocator) (CommandList, error)
	CreateFence(initialValue uint64) (Fence, error)
	CreatePipeline(desc PipelineDescriptor) (Pipeline, error)
	Execute(lists ...CommandList) error
	Signal(fence Fence, value uint64) error
	Present() error
	Resize(width, height uint32) error
	Size() (uint32, uint32)
	WaitIdle() error
	Destroy() error
}
