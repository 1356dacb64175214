package metadata

import (
	"github.com/spaghettifunk/anima-shapes/engine/math"
)

// Vertex is the layout consumed by the shapes pipeline: position then normal.
type Vertex struct {
	Pos    math.Vec3
	Normal math.Vec3
}

const VertexByteStride uint32 = 24

// VertexAttributes describes Vertex for pipeline creation.
var VertexAttributes = []VertexAttribute{
	{Location: 0, Offset: 0, Components: 3},
	{Location: 1, Offset: 12, Components: 3},
}

/**
 * @brief Represents the configuration for a procedurally generated geometry.
 */
type GeometryConfig struct {
	/** @brief The Name of the geometry. */
	Name string
	/** @brief An array of Vertices. */
	Vertices []Vertex
	/** @brief An array of Indices. */
	Indices []uint16
}

func (g *GeometryConfig) VertexCount() uint32 {
	return uint32(len(g.Vertices))
}

func (g *GeometryConfig) IndexCount() uint32 {
	return uint32(len(g.Indices))
}
