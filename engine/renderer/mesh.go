package renderer

import (
	"encoding/binary"
	"fmt"

	"github.com/spaghettifunk/anima-shapes/engine/core"
	"github.com/spaghettifunk/anima-shapes/engine/renderer/metadata"
)

// SubRange locates one logical shape inside a shared MeshBuffer.
type SubRange struct {
	IndexCount         uint32
	StartIndexLocation uint32
	BaseVertexLocation int32
}

// MeshBuffer owns a device local vertex/index buffer pair. The upload
// buffers are kept alive alongside until the registry is destroyed.
type MeshBuffer struct {
	Name string

	VertexBufferGPU metadata.Buffer
	IndexBufferGPU  metadata.Buffer

	vertexBufferUploader metadata.Buffer
	indexBufferUploader  metadata.Buffer

	VertexByteStride     uint32
	VertexBufferByteSize uint32
	IndexFormat          metadata.IndexFormat
	IndexBufferByteSize  uint32

	DrawArgs map[string]SubRange
}

func (m *MeshBuffer) VertexCount() uint32 {
	return m.VertexBufferByteSize / m.VertexByteStride
}

func (m *MeshBuffer) IndexCount() uint32 {
	return m.IndexBufferByteSize / m.IndexFormat.Size()
}

// DisposeUploaders releases the upload buffers. Only valid once the copy
// commands that read them have completed.
func (m *MeshBuffer) DisposeUploaders() {
	if m.vertexBufferUploader != nil {
		m.vertexBufferUploader.Destroy()
		m.vertexBufferUploader = nil
	}
	if m.indexBufferUploader != nil {
		m.indexBufferUploader.Destroy()
		m.indexBufferUploader = nil
	}
}

func (m *MeshBuffer) destroy() {
	m.DisposeUploaders()
	if m.VertexBufferGPU != nil {
		m.VertexBufferGPU.Destroy()
		m.VertexBufferGPU = nil
	}
	if m.IndexBufferGPU != nil {
		m.IndexBufferGPU.Destroy()
		m.IndexBufferGPU = nil
	}
}

// MeshRegistry exclusively owns every MeshBuffer. Render items only hold
// references obtained through Lookup.
type MeshRegistry struct {
	device metadata.Device
	meshes map[string]*MeshBuffer
}

func NewMeshRegistry(device metadata.Device) *MeshRegistry {
	return &MeshRegistry{
		device: device,
		meshes: make(map[string]*MeshBuffer),
	}
}

// Register uploads the vertex and uint16 index data through cmd and stores
// the resulting MeshBuffer under name.
func (r *MeshRegistry) Register(cmd metadata.CommandList, name string, vertexData []byte, vertexStride uint32, indexData []uint16) (*MeshBuffer, error) {
	_, exists := r.meshes[name]
	core.Assert(!exists, "mesh %s already registered", name)
	core.Assert(vertexStride > 0 && len(vertexData)%int(vertexStride) == 0, "mesh %s: vertex data is not a multiple of stride %d", name, vertexStride)

	indexBytes, err := binary.Append(nil, binary.LittleEndian, indexData)
	if err != nil {
		return nil, fmt.Errorf("failed to encode indices of %s: %w", name, err)
	}

	mesh := &MeshBuffer{
		Name:                 name,
		VertexByteStride:     vertexStride,
		VertexBufferByteSize: uint32(len(vertexData)),
		IndexFormat:          metadata.IndexFormatUint16,
		IndexBufferByteSize:  uint32(len(indexBytes)),
		DrawArgs:             make(map[string]SubRange),
	}

	mesh.VertexBufferGPU, mesh.vertexBufferUploader, err = CreateDefaultBuffer(r.device, cmd, name+".vertices", vertexData, metadata.BufferUsageVertex)
	if err != nil {
		err = fmt.Errorf("failed to register mesh %s: %w", name, err)
		core.LogError(err.Error())
		return nil, err
	}
	mesh.IndexBufferGPU, mesh.indexBufferUploader, err = CreateDefaultBuffer(r.device, cmd, name+".indices", indexBytes, metadata.BufferUsageIndex)
	if err != nil {
		mesh.destroy()
		err = fmt.Errorf("failed to register mesh %s: %w", name, err)
		core.LogError(err.Error())
		return nil, err
	}

	r.meshes[name] = mesh
	core.LogDebug("mesh %s registered: %d vertices, %d indices", name, mesh.VertexCount(), mesh.IndexCount())
	return mesh, nil
}

// AddSubRange names a draw range inside meshName.
func (r *MeshRegistry) AddSubRange(meshName, rangeName string, indexCount, startIndex uint32, baseVertex int32) {
	mesh := r.Lookup(meshName)
	core.Assert(uint64(startIndex)+uint64(indexCount) <= uint64(mesh.IndexCount()),
		"mesh %s range %s: indices [%d, %d) exceed index count %d", meshName, rangeName, startIndex, startIndex+indexCount, mesh.IndexCount())
	core.Assert(baseVertex >= 0 && uint32(baseVertex) < mesh.VertexCount(),
		"mesh %s range %s: base vertex %d exceeds vertex count %d", meshName, rangeName, baseVertex, mesh.VertexCount())

	mesh.DrawArgs[rangeName] = SubRange{
		IndexCount:         indexCount,
		StartIndexLocation: startIndex,
		BaseVertexLocation: baseVertex,
	}
}

func (r *MeshRegistry) Lookup(meshName string) *MeshBuffer {
	mesh, ok := r.meshes[meshName]
	core.Assert(ok, "mesh %s not registered", meshName)
	return mesh
}

func (r *MeshRegistry) LookupRange(meshName, rangeName string) SubRange {
	mesh := r.Lookup(meshName)
	sub, ok := mesh.DrawArgs[rangeName]
	core.Assert(ok, "mesh %s has no range %s", meshName, rangeName)
	return sub
}

// Destroy releases all buffers. The device must be idle.
func (r *MeshRegistry) Destroy() {
	for name, m := range r.meshes {
		m.destroy()
		delete(r.meshes, name)
	}
}
