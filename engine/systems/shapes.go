package systems

import (
	"fmt"

	"github.com/spaghettifunk/anima-shapes/engine/core"
	"github.com/spaghettifunk/anima-shapes/engine/math"
	"github.com/spaghettifunk/anima-shapes/engine/renderer/metadata"
)

const (
	ShapesMeshName = "shapeGeo"

	// BoxSpinSpeed is the box rotation in radians per second when the scene
	// is animated.
	BoxSpinSpeed float32 = 0.5
)

// ConcatenateShapes packs shapes into one vertex and one index array. Each
// shape becomes a sub range named after it: its base vertex is the sum of
// the vertex counts before it and its start index the sum of the index
// counts before it. Indices stay relative to the shape.
func ConcatenateShapes(name string, shapes ...*metadata.GeometryConfig) metadata.MeshConfig {
	mesh := metadata.MeshConfig{Name: name}

	totalVertices, totalIndices := 0, 0
	for _, s := range shapes {
		core.Assert(s != nil, "mesh %s: nil shape", name)
		totalVertices += len(s.Vertices)
		totalIndices += len(s.Indices)
	}
	mesh.Vertices = make([]metadata.Vertex, 0, totalVertices)
	mesh.Indices = make([]uint16, 0, totalIndices)

	for _, s := range shapes {
		mesh.Ranges = append(mesh.Ranges, metadata.SubRangeConfig{
			Name:               s.Name,
			IndexCount:         s.IndexCount(),
			StartIndexLocation: uint32(len(mesh.Indices)),
			BaseVertexLocation: int32(len(mesh.Vertices)),
		})
		mesh.Vertices = append(mesh.Vertices, s.Vertices...)
		mesh.Indices = append(mesh.Indices, s.Indices...)
	}
	return mesh
}

/**
 * @brief Builds the shapes demo scene: a box standing on a grid between
 * rows of columns, each topped by a sphere.
 *
 * @param rows The number of column pairs. Must be non-zero.
 * @return The scene configuration consumed by the renderer.
 */
func BuildShapesScene(rows uint32) (*metadata.SceneConfig, error) {
	if rows == 0 {
		core.LogWarn("rows must be a positive number. Defaulting to five.")
		rows = 5
	}

	box, err := CreateBox(1.5, 0.5, 1.5, DefaultBoxName)
	if err != nil {
		return nil, err
	}
	grid, err := CreateGrid(20.0, 30.0, 60, 40, DefaultGridName)
	if err != nil {
		return nil, err
	}
	sphere, err := CreateSphere(0.5, 20, 20, DefaultSphereName)
	if err != nil {
		return nil, err
	}
	cylinder, err := CreateCylinder(0.5, 0.3, 3.0, 20, 20, DefaultCylinderName)
	if err != nil {
		return nil, err
	}

	scene := &metadata.SceneConfig{
		Meshes: []metadata.MeshConfig{ConcatenateShapes(ShapesMeshName, box, grid, sphere, cylinder)},
	}

	scene.Items = append(scene.Items, metadata.RenderItemConfig{
		Name:  "box",
		Mesh:  ShapesMeshName,
		Range: DefaultBoxName,
		World: math.NewMat4Scale(math.NewVec3(2, 2, 2)).Mul(math.NewMat4Translation(math.NewVec3(0, 0.5, 0))),
		Spin:  BoxSpinSpeed,
	})
	scene.Items = append(scene.Items, metadata.RenderItemConfig{
		Name:  "grid",
		Mesh:  ShapesMeshName,
		Range: DefaultGridName,
		World: math.NewMat4Identity(),
	})

	for i := uint32(0); i < rows; i++ {
		z := -10.0 + float32(i)*5.0
		for _, side := range []struct {
			name string
			x    float32
		}{{"left", -5}, {"right", 5}} {
			scene.Items = append(scene.Items,
				metadata.RenderItemConfig{
					Name:  fmt.Sprintf("%s_cylinder_%d", side.name, i),
					Mesh:  ShapesMeshName,
					Range: DefaultCylinderName,
					World: math.NewMat4Translation(math.NewVec3(side.x, 1.5, z)),
				},
				metadata.RenderItemConfig{
					Name:  fmt.Sprintf("%s_sphere_%d", side.name, i),
					Mesh:  ShapesMeshName,
					Range: DefaultSphereName,
					World: math.NewMat4Translation(math.NewVec3(side.x, 3.5, z)),
				},
			)
		}
	}

	core.LogDebug("shapes scene built: %d vertices, %d indices, %d render items",
		len(scene.Meshes[0].Vertices), len(scene.Meshes[0].Indices), len(scene.Items))
	return scene, nil
}
