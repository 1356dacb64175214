package renderer

import (
	"context"
	"testing"

	"github.com/spaghettifunk/anima-shapes/engine/math"
	"github.com/spaghettifunk/anima-shapes/engine/renderer/headless"
	"github.com/spaghettifunk/anima-shapes/engine/renderer/metadata"
)

func TestObjectCBOffset(t *testing.T) {
	for i := uint32(0); i < 8; i++ {
		if got := ObjectCBOffset(i); got != uint64(i)*256 {
			t.Fatalf("ObjectCBOffset(%d) = %d, want %d", i, got, i*256)
		}
	}
}

func TestRenderItemListAssignsSlots(t *testing.T) {
	dev := headless.NewDevice(headless.Options{})
	reg := NewMeshRegistry(dev)
	mesh, _ := registerQuads(t, dev, reg, 2)
	defer reg.Destroy()

	list := NewRenderItemList(3)
	a := list.Add(NewRenderItem("a", math.NewMat4Identity(), mesh, "quada"))
	b := list.Add(NewRenderItem("b", math.NewMat4Identity(), mesh, "quadb"))

	if a.ObjCBIndex != 0 || b.ObjCBIndex != 1 {
		t.Fatalf("slots = %d, %d", a.ObjCBIndex, b.ObjCBIndex)
	}
	if a.NumFramesDirty != 3 || b.NumFramesDirty != 3 {
		t.Fatal("new items must be dirty for every frame resource")
	}
	if b.StartIndexLocation != 6 || b.BaseVertexLocation != 4 || b.IndexCount != 6 {
		t.Fatalf("item b draws %+v", b)
	}
	if a.ID == b.ID {
		t.Fatal("items share an id")
	}
	if list.Find("b") != b || list.Find("c") != nil {
		t.Fatal("find returned the wrong item")
	}

	expectPanic(t, "unknown range", func() {
		NewRenderItem("c", math.NewMat4Identity(), mesh, "missing")
	})
}

// A world matrix change must reach every frame resource, one per frame, and
// then stop being rewritten.
func TestDirtyPropagation(t *testing.T) {
	for _, n := range []int{1, 2, 3} {
		dev := headless.NewDevice(headless.Options{})
		reg := NewMeshRegistry(dev)
		mesh, _ := registerQuads(t, dev, reg, 1)
		ring, fence := newTestRing(t, dev, n)

		list := NewRenderItemList(n)
		first := math.NewMat4Translation(math.NewVec3(1, 0, 0))
		item := list.Add(NewRenderItem("a", first, mesh, "quada"))
		list.Add(NewRenderItem("b", math.NewMat4Identity(), mesh, "quada"))

		var value uint64
		frame := func() int {
			idx := ring.Advance()
			fr, err := ring.Acquire(context.Background(), idx)
			if err != nil {
				t.Fatal(err)
			}
			written := list.RefreshConstants(fr)
			value++
			dev.Signal(fence, value)
			ring.Stamp(idx, value)
			return written
		}
		slotsHold := func(world math.Mat4) bool {
			for i := 0; i < n; i++ {
				got := decodeObject(t, ring.At(i).ObjectCB.Bytes(item.ObjCBIndex))
				if !got.World.Compare(math.NewMat4Transposed(world), 0) {
					return false
				}
			}
			return true
		}

		for f := 0; f < n; f++ {
			if w := frame(); w != 2 {
				t.Fatalf("n=%d frame %d wrote %d items, want 2", n, f, w)
			}
		}
		if w := frame(); w != 0 {
			t.Fatalf("n=%d: clean items rewritten (%d)", n, w)
		}
		if !slotsHold(first) {
			t.Fatalf("n=%d: some slot misses the initial world matrix", n)
		}

		second := math.NewMat4Scale(math.NewVec3(2, 2, 2))
		list.SetWorld(item, second)
		for f := 0; f < n; f++ {
			if item.NumFramesDirty != n-f {
				t.Fatalf("n=%d: dirty counter = %d before update %d", n, item.NumFramesDirty, f)
			}
			if w := frame(); w != 1 {
				t.Fatalf("n=%d: update %d wrote %d items, want 1", n, f, w)
			}
		}
		if item.NumFramesDirty != 0 {
			t.Fatalf("n=%d: dirty counter = %d after %d frames", n, item.NumFramesDirty, n)
		}
		if !slotsHold(second) {
			t.Fatalf("n=%d: some slot misses the updated world matrix", n)
		}

		reg.Destroy()
	}
}

func TestRenderItemDraw(t *testing.T) {
	dev := headless.NewDevice(headless.Options{})
	reg := NewMeshRegistry(dev)
	mesh, _ := registerQuads(t, dev, reg, 2)
	defer reg.Destroy()
	ring, _ := newTestRing(t, dev, 1)

	list := NewRenderItemList(1)
	worlds := []math.Mat4{
		math.NewMat4Translation(math.NewVec3(-1, 0, 0)),
		math.NewMat4Translation(math.NewVec3(1, 0, 0)),
	}
	list.Add(NewRenderItem("left", worlds[0], mesh, "quada"))
	list.Add(NewRenderItem("right", worlds[1], mesh, "quadb"))

	fr, err := ring.Acquire(context.Background(), ring.Advance())
	if err != nil {
		t.Fatal(err)
	}
	list.RefreshConstants(fr)

	pipeline, err := dev.CreatePipeline(metadata.PipelineDescriptor{
		Name:         "test",
		VertexStride: metadata.VertexByteStride,
		Attributes:   metadata.VertexAttributes,
	})
	if err != nil {
		t.Fatal(err)
	}
	cmd, _ := dev.CreateCommandList(fr.CmdListAlloc)
	if err := cmd.Reset(fr.CmdListAlloc, pipeline); err != nil {
		t.Fatal(err)
	}
	if err := cmd.BeginRenderPass(metadata.ClearValues{Depth: 1}); err != nil {
		t.Fatal(err)
	}
	list.Draw(fr, cmd)
	cmd.EndRenderPass()
	submit(t, dev, cmd)
	dev.Present()

	draws := dev.LastFrame().Draws
	if len(draws) != 2 {
		t.Fatalf("%d draws recorded, want 2", len(draws))
	}
	for i, d := range draws {
		if d.ObjectOffset != ObjectCBOffset(uint32(i)) {
			t.Fatalf("draw %d reads object constants at %d", i, d.ObjectOffset)
		}
		if d.IndexCount != 6 || d.StartIndex != uint32(6*i) || d.BaseVertex != int32(4*i) {
			t.Fatalf("draw %d = %+v", i, d)
		}
		got := decodeObject(t, d.Object)
		if !got.World.Compare(math.NewMat4Transposed(worlds[i]), 0) {
			t.Fatalf("draw %d saw world %v", i, got.World)
		}
	}
}

// The object constants must read back as the world matrix in the vertex
// shader, so the origin lands on the item's translation.
func TestObjectConstantsShaderLayout(t *testing.T) {
	dev := headless.NewDevice(headless.Options{})
	reg := NewMeshRegistry(dev)
	mesh, _ := registerQuads(t, dev, reg, 1)
	defer reg.Destroy()
	ring, _ := newTestRing(t, dev, 1)

	list := NewRenderItemList(1)
	item := list.Add(NewRenderItem("a", math.NewMat4Translation(math.NewVec3(1, 2, 3)), mesh, "quada"))

	fr, err := ring.Acquire(context.Background(), ring.Advance())
	if err != nil {
		t.Fatal(err)
	}
	list.RefreshConstants(fr)

	world := shaderMat4(t, fr.ObjectCB.Bytes(item.ObjCBIndex), 0)
	got := rowTimes([4]float32{0, 0, 0, 1}, world)
	if !near4(got, [4]float32{1, 2, 3, 1}, 1e-6) {
		t.Fatalf("origin transformed to %v, want [1 2 3 1]", got)
	}
	got = rowTimes([4]float32{1, 0, 0, 1}, world)
	if !near4(got, [4]float32{2, 2, 3, 1}, 1e-6) {
		t.Fatalf("x axis point transformed to %v, want [2 2 3 1]", got)
	}
}
