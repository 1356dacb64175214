package renderer

import (
	"encoding/binary"
	"testing"

	"github.com/spaghettifunk/anima-shapes/engine/renderer/headless"
	"github.com/spaghettifunk/anima-shapes/engine/renderer/metadata"
)

func registerQuads(t *testing.T, dev *headless.Device, reg *MeshRegistry, copies int) (*MeshBuffer, metadata.MeshConfig) {
	t.Helper()
	mc := quadMesh("quad", copies)
	vertexData, err := binary.Append(nil, binary.LittleEndian, mc.Vertices)
	if err != nil {
		t.Fatal(err)
	}

	cmd := newSetupList(t, dev)
	mesh, err := reg.Register(cmd, mc.Name, vertexData, metadata.VertexByteStride, mc.Indices)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range mc.Ranges {
		reg.AddSubRange(mc.Name, r.Name, r.IndexCount, r.StartIndexLocation, r.BaseVertexLocation)
	}
	submit(t, dev, cmd)
	return mesh, mc
}

func TestMeshRegistryConcatenatedRanges(t *testing.T) {
	dev := headless.NewDevice(headless.Options{})
	reg := NewMeshRegistry(dev)
	mesh, mc := registerQuads(t, dev, reg, 3)

	if mesh.VertexCount() != 12 || mesh.IndexCount() != 18 {
		t.Fatalf("mesh holds %d vertices / %d indices, want 12 / 18", mesh.VertexCount(), mesh.IndexCount())
	}
	if mesh.IndexFormat != metadata.IndexFormatUint16 {
		t.Fatalf("index format = %v", mesh.IndexFormat)
	}

	for i, r := range mc.Ranges {
		sub := reg.LookupRange("quad", r.Name)
		if sub.StartIndexLocation != uint32(6*i) || sub.BaseVertexLocation != int32(4*i) || sub.IndexCount != 6 {
			t.Fatalf("range %s = %+v", r.Name, sub)
		}
	}

	// indices are stored relative to each shape's base vertex
	indices := mesh.IndexBufferGPU.(*headless.Buffer).Contents()
	for i := 0; i < 18; i++ {
		got := binary.LittleEndian.Uint16(indices[2*i:])
		if got != mc.Indices[i] {
			t.Fatalf("index %d = %d, want %d", i, got, mc.Indices[i])
		}
	}
	vertices := mesh.VertexBufferGPU.(*headless.Buffer).Contents()
	if uint32(len(vertices)) != 12*metadata.VertexByteStride {
		t.Fatalf("vertex buffer holds %d bytes", len(vertices))
	}

	if reg.Lookup("quad") != mesh {
		t.Fatal("lookup returned another mesh")
	}

	reg.Destroy()
	if dev.LiveBuffers() != 0 {
		t.Fatalf("%d buffers alive after destroy", dev.LiveBuffers())
	}
}

func TestMeshRegistryAssertions(t *testing.T) {
	dev := headless.NewDevice(headless.Options{})
	reg := NewMeshRegistry(dev)
	registerQuads(t, dev, reg, 2)
	defer reg.Destroy()

	expectPanic(t, "duplicate mesh", func() {
		reg.Register(newSetupList(t, dev), "quad", make([]byte, metadata.VertexByteStride), metadata.VertexByteStride, []uint16{0})
	})
	expectPanic(t, "indices beyond the buffer", func() {
		reg.AddSubRange("quad", "tail", 6, 7, 0)
	})
	expectPanic(t, "base vertex beyond the buffer", func() {
		reg.AddSubRange("quad", "far", 6, 0, 8)
	})
	expectPanic(t, "unknown mesh", func() {
		reg.Lookup("teapot")
	})
	expectPanic(t, "unknown range", func() {
		reg.LookupRange("quad", "teapot")
	})
	expectPanic(t, "ragged vertex data", func() {
		reg.Register(newSetupList(t, dev), "ragged", make([]byte, 10), metadata.VertexByteStride, []uint16{0})
	})

	// the last valid range is accepted
	reg.AddSubRange("quad", "all", 12, 0, 0)
	if sub := reg.LookupRange("quad", "all"); sub.IndexCount != 12 {
		t.Fatalf("range all = %+v", sub)
	}
}
