package metadata

import "github.com/spaghettifunk/anima-shapes/engine/math"

type SubRangeConfig struct {
	Name               string
	IndexCount         uint32
	StartIndexLocation uint32
	BaseVertexLocation int32
}

// MeshConfig is one vertex/index buffer pair holding any number of shapes.
type MeshConfig struct {
	Name     string
	Vertices []Vertex
	Indices  []uint16
	Ranges   []SubRangeConfig
}

type RenderItemConfig struct {
	Name  string
	Mesh  string
	Range string
	World math.Mat4
	// Spin is an optional rotation speed around the local Y axis in radians
	// per second, applied before World.
	Spin float32
}

type SceneConfig struct {
	Meshes []MeshConfig
	Items  []RenderItemConfig
}
