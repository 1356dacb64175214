package renderer

import (
	"github.com/google/uuid"
	"github.com/spaghettifunk/anima-shapes/engine/core"
	"github.com/spaghettifunk/anima-shapes/engine/math"
	"github.com/spaghettifunk/anima-shapes/engine/renderer/metadata"
)

// RenderItem is everything needed to draw one object.
type RenderItem struct {
	ID   uuid.UUID
	Name string

	World math.Mat4

	// NumFramesDirty counts the frame resources still holding a stale copy
	// of World. Always within [0, ring depth].
	NumFramesDirty int

	// ObjCBIndex is the element of the per object constant buffer used by
	// this item. Assigned by RenderItemList.Add.
	ObjCBIndex uint32

	// Geo is owned by the MeshRegistry.
	Geo *MeshBuffer

	PrimitiveType metadata.PrimitiveTopology

	IndexCount         uint32
	StartIndexLocation uint32
	BaseVertexLocation int32
}

// NewRenderItem creates an item drawing sub range rangeName of geo.
func NewRenderItem(name string, world math.Mat4, geo *MeshBuffer, rangeName string) *RenderItem {
	core.Assert(geo != nil, "render item %s has no geometry", name)
	sub, ok := geo.DrawArgs[rangeName]
	core.Assert(ok, "render item %s: mesh %s has no range %s", name, geo.Name, rangeName)

	return &RenderItem{
		ID:                 core.GenerateID(),
		Name:               name,
		World:              world,
		Geo:                geo,
		PrimitiveType:      metadata.PrimitiveTopologyTriangleList,
		IndexCount:         sub.IndexCount,
		StartIndexLocation: sub.StartIndexLocation,
		BaseVertexLocation: sub.BaseVertexLocation,
	}
}

// RenderItemList owns the render items and keeps every frame resource's
// copy of their constants current.
type RenderItemList struct {
	numFrameResources int
	items             []*RenderItem
}

func NewRenderItemList(numFrameResources int) *RenderItemList {
	core.Assert(numFrameResources >= 1, "render item list needs a ring depth of at least 1")
	return &RenderItemList{
		numFrameResources: numFrameResources,
	}
}

// Add appends item, assigning the next constant buffer slot and marking it
// dirty for every frame resource.
func (l *RenderItemList) Add(item *RenderItem) *RenderItem {
	item.ObjCBIndex = uint32(len(l.items))
	item.NumFramesDirty = l.numFrameResources
	l.items = append(l.items, item)
	return item
}

func (l *RenderItemList) Items() []*RenderItem {
	return l.items
}

func (l *RenderItemList) Len() int {
	return len(l.items)
}

// Find returns the first item called name, or nil.
func (l *RenderItemList) Find(name string) *RenderItem {
	for _, it := range l.items {
		if it.Name == name {
			return it
		}
	}
	return nil
}

// MarkDirty schedules item's world matrix for upload into every frame resource.
func (l *RenderItemList) MarkDirty(item *RenderItem) {
	item.NumFramesDirty = l.numFrameResources
}

// SetWorld replaces the world matrix of item and marks it dirty.
func (l *RenderItemList) SetWorld(item *RenderItem, world math.Mat4) {
	item.World = world
	l.MarkDirty(item)
}

// RefreshConstants writes the transposed world matrix of each dirty item into
// the current frame resource and returns how many items were written.
func (l *RenderItemList) RefreshConstants(current *FrameResource) int {
	written := 0
	for _, item := range l.items {
		if item.NumFramesDirty <= 0 {
			continue
		}
		constants := ObjectConstants{
			World: math.NewMat4Transposed(item.World),
		}
		current.ObjectCB.CopyData(item.ObjCBIndex, &constants)
		item.NumFramesDirty--
		written++
	}
	return written
}

// ObjectCBOffset is the byte offset of item index i inside a per object
// constant buffer.
func ObjectCBOffset(i uint32) uint64 {
	return uint64(i) * CalcConstantBufferByteSize(ByteSize[ObjectConstants]())
}

// Draw records one indexed draw per item, binding its geometry and its
// element of the current frame resource's object constant buffer to slot 0.
func (l *RenderItemList) Draw(current *FrameResource, cmd metadata.CommandList) {
	objectCB := current.ObjectCB.Resource()
	for _, item := range l.items {
		cmd.SetVertexBuffer(item.Geo.VertexBufferGPU, item.Geo.VertexByteStride)
		cmd.SetIndexBuffer(item.Geo.IndexBufferGPU, item.Geo.IndexFormat)
		cmd.SetPrimitiveTopology(item.PrimitiveType)

		cmd.SetConstantBuffer(0, objectCB, ObjectCBOffset(item.ObjCBIndex))

		cmd.DrawIndexedInstanced(item.IndexCount, 1, item.StartIndexLocation, item.BaseVertexLocation, 0)
	}
}
