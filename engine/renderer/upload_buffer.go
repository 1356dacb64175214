package renderer

import (
	"fmt"

	"github.com/spaghettifunk/anima-shapes/engine/core"
	"github.com/spaghettifunk/anima-shapes/engine/renderer/metadata"
)

// UploadBuffer is a persistently mapped upload heap buffer holding count
// elements of T. Constant buffers get their stride rounded to 256 bytes.
type UploadBuffer[T any] struct {
	buffer          metadata.Buffer
	mapped          []byte
	elementByteSize uint64
	count           uint32
}

func NewUploadBuffer[T any](device metadata.Device, name string, count uint32, isConstantBuffer bool) (*UploadBuffer[T], error) {
	core.Assert(count > 0, "upload buffer %s needs at least one element", name)

	elementByteSize := ByteSize[T]()
	usage := metadata.BufferUsageTransferSrc
	if isConstantBuffer {
		elementByteSize = CalcConstantBufferByteSize(elementByteSize)
		usage |= metadata.BufferUsageConstant
	}

	buffer, err := device.CreateBuffer(metadata.BufferDescriptor{
		Name:        name,
		Size:        elementByteSize * uint64(count),
		Heap:        metadata.HeapTypeUpload,
		Usage:       usage,
		ElementSize: elementByteSize,
	})
	if err != nil {
		err = fmt.Errorf("failed to create upload buffer %s: %w", name, err)
		core.LogError(err.Error())
		return nil, err
	}

	mapped, err := buffer.Map()
	if err != nil {
		buffer.Destroy()
		err = fmt.Errorf("failed to map upload buffer %s: %w", name, err)
		core.LogError(err.Error())
		return nil, err
	}

	return &UploadBuffer[T]{
		buffer:          buffer,
		mapped:          mapped,
		elementByteSize: elementByteSize,
		count:           count,
	}, nil
}

// CopyData writes data into element index.
func (u *UploadBuffer[T]) CopyData(index uint32, data *T) {
	core.Assert(index < u.count, "upload buffer %s: element %d out of range (count=%d)", u.buffer.Name(), index, u.count)
	offset := uint64(index) * u.elementByteSize
	copy(u.mapped[offset:offset+u.elementByteSize], encodeConstants(data))
}

// Offset returns the byte offset of element index.
func (u *UploadBuffer[T]) Offset(index uint32) uint64 {
	core.Assert(index < u.count, "upload buffer %s: element %d out of range (count=%d)", u.buffer.Name(), index, u.count)
	return uint64(index) * u.elementByteSize
}

// Bytes exposes element index as the device will read it.
func (u *UploadBuffer[T]) Bytes(index uint32) []byte {
	offset := u.Offset(index)
	return u.mapped[offset : offset+u.elementByteSize]
}

func (u *UploadBuffer[T]) Resource() metadata.Buffer {
	return u.buffer
}

func (u *UploadBuffer[T]) ElementByteSize() uint64 {
	return u.elementByteSize
}

func (u *UploadBuffer[T]) Count() uint32 {
	return u.count
}

func (u *UploadBuffer[T]) Destroy() {
	if u.buffer == nil {
		return
	}
	u.buffer.Unmap()
	u.buffer.Destroy()
	u.buffer = nil
	u.mapped = nil
}
