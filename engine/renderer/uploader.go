package renderer

import (
	"fmt"

	"github.com/spaghettifunk/anima-shapes/engine/core"
	"github.com/spaghettifunk/anima-shapes/engine/renderer/metadata"
)

// CreateDefaultBuffer creates a device local buffer holding initData. The
// bytes travel through an upload buffer and a copy recorded on cmd. The
// returned upload buffer must stay alive until cmd has executed.
func CreateDefaultBuffer(device metadata.Device, cmd metadata.CommandList, name string, initData []byte, usage metadata.BufferUsage) (defaultBuffer metadata.Buffer, uploadBuffer metadata.Buffer, err error) {
	core.Assert(len(initData) > 0, "CreateDefaultBuffer %s: empty payload", name)
	size := uint64(len(initData))

	defaultBuffer, err = device.CreateBuffer(metadata.BufferDescriptor{
		Name:  name,
		Size:  size,
		Heap:  metadata.HeapTypeDefault,
		Usage: usage | metadata.BufferUsageTransferDst,
	})
	if err != nil {
		err = fmt.Errorf("failed to create default buffer %s: %w", name, err)
		core.LogError(err.Error())
		return nil, nil, err
	}

	uploadBuffer, err = device.CreateBuffer(metadata.BufferDescriptor{
		Name:  name + ".upload",
		Size:  size,
		Heap:  metadata.HeapTypeUpload,
		Usage: metadata.BufferUsageTransferSrc,
	})
	if err != nil {
		defaultBuffer.Destroy()
		err = fmt.Errorf("failed to create upload buffer for %s: %w", name, err)
		core.LogError(err.Error())
		return nil, nil, err
	}

	mapped, err := uploadBuffer.Map()
	if err != nil {
		uploadBuffer.Destroy()
		defaultBuffer.Destroy()
		err = fmt.Errorf("failed to map upload buffer for %s: %w", name, err)
		core.LogError(err.Error())
		return nil, nil, err
	}
	copy(mapped, initData)
	uploadBuffer.Unmap()

	cmd.CopyBuffer(defaultBuffer, uploadBuffer, size)

	return defaultBuffer, uploadBuffer, nil
}
