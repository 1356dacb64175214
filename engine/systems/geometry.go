package systems

import (
	"fmt"
	gomath "math"

	"github.com/spaghettifunk/anima-shapes/engine/core"
	"github.com/spaghettifunk/anima-shapes/engine/math"
	"github.com/spaghettifunk/anima-shapes/engine/renderer/metadata"
)

// Indices are 16 bit, so a single shape can address at most this many vertices.
const MaxShapeVertices = 0xFFFF

const (
	DefaultBoxName      = "box"
	DefaultGridName     = "grid"
	DefaultSphereName   = "sphere"
	DefaultCylinderName = "cylinder"
)

func finishShape(config *metadata.GeometryConfig, name, fallback string) (*metadata.GeometryConfig, error) {
	if len(name) > 0 {
		config.Name = name
	} else {
		config.Name = fallback
	}
	if len(config.Vertices) > MaxShapeVertices {
		err := fmt.Errorf("shape %s has %d vertices, 16 bit indices address at most %d", config.Name, len(config.Vertices), MaxShapeVertices)
		core.LogError(err.Error())
		return nil, err
	}
	return config, nil
}

/**
 * @brief Generates an axis aligned box centered at the origin. Each face
 * has its own four vertices so normals stay flat.
 *
 * @param width The size along x. Must be non-zero.
 * @param height The size along y. Must be non-zero.
 * @param depth The size along z. Must be non-zero.
 * @param name The name of the generated geometry.
 * @return A geometry configuration ready to be concatenated into a mesh.
 */
func CreateBox(width, height, depth float32, name string) (*metadata.GeometryConfig, error) {
	if width == 0 {
		core.LogWarn("Width must be nonzero. Defaulting to one.")
		width = 1.0
	}
	if height == 0 {
		core.LogWarn("Height must be nonzero. Defaulting to one.")
		height = 1.0
	}
	if depth == 0 {
		core.LogWarn("Depth must be nonzero. Defaulting to one.")
		depth = 1.0
	}

	w := width * 0.5
	h := height * 0.5
	d := depth * 0.5

	// corners are listed clockwise as seen from outside the face
	faces := []struct {
		normal  math.Vec3
		corners [4]math.Vec3
	}{
		// front
		{math.NewVec3(0, 0, -1), [4]math.Vec3{
			math.NewVec3(-w, -h, -d), math.NewVec3(-w, +h, -d), math.NewVec3(+w, +h, -d), math.NewVec3(+w, -h, -d)}},
		// back
		{math.NewVec3(0, 0, 1), [4]math.Vec3{
			math.NewVec3(-w, -h, +d), math.NewVec3(+w, -h, +d), math.NewVec3(+w, +h, +d), math.NewVec3(-w, +h, +d)}},
		// top
		{math.NewVec3(0, 1, 0), [4]math.Vec3{
			math.NewVec3(-w, +h, -d), math.NewVec3(-w, +h, +d), math.NewVec3(+w, +h, +d), math.NewVec3(+w, +h, -d)}},
		// bottom
		{math.NewVec3(0, -1, 0), [4]math.Vec3{
			math.NewVec3(-w, -h, -d), math.NewVec3(+w, -h, -d), math.NewVec3(+w, -h, +d), math.NewVec3(-w, -h, +d)}},
		// left
		{math.NewVec3(-1, 0, 0), [4]math.Vec3{
			math.NewVec3(-w, -h, +d), math.NewVec3(-w, +h, +d), math.NewVec3(-w, +h, -d), math.NewVec3(-w, -h, -d)}},
		// right
		{math.NewVec3(1, 0, 0), [4]math.Vec3{
			math.NewVec3(+w, -h, -d), math.NewVec3(+w, +h, -d), math.NewVec3(+w, +h, +d), math.NewVec3(+w, -h, +d)}},
	}

	config := &metadata.GeometryConfig{
		Vertices: make([]metadata.Vertex, 0, 4*6), // 4 verts per side, 6 sides
		Indices:  make([]uint16, 0, 6*6),          // 6 indices per side, 6 sides
	}
	for i, f := range faces {
		for _, c := range f.corners {
			config.Vertices = append(config.Vertices, metadata.Vertex{Pos: c, Normal: f.normal})
		}
		v := uint16(i * 4)
		config.Indices = append(config.Indices, v+0, v+1, v+2, v+0, v+2, v+3)
	}

	return finishShape(config, name, DefaultBoxName)
}

/**
 * @brief Generates a flat grid in the xz plane facing +y.
 *
 * @param width The size along x. Must be non-zero.
 * @param depth The size along z. Must be non-zero.
 * @param m Number of vertex rows along z. Must be at least two.
 * @param n Number of vertex columns along x. Must be at least two.
 * @param name The name of the generated geometry.
 */
func CreateGrid(width, depth float32, m, n uint32, name string) (*metadata.GeometryConfig, error) {
	if width == 0 {
		core.LogWarn("Width must be nonzero. Defaulting to one.")
		width = 1.0
	}
	if depth == 0 {
		core.LogWarn("Depth must be nonzero. Defaulting to one.")
		depth = 1.0
	}
	if m < 2 {
		core.LogWarn("m must be at least two. Defaulting to two.")
		m = 2
	}
	if n < 2 {
		core.LogWarn("n must be at least two. Defaulting to two.")
		n = 2
	}
	if uint64(m)*uint64(n) > MaxShapeVertices {
		err := fmt.Errorf("grid of %dx%d vertices exceeds %d", m, n, MaxShapeVertices)
		core.LogError(err.Error())
		return nil, err
	}

	halfWidth := 0.5 * width
	halfDepth := 0.5 * depth
	dx := width / float32(n-1)
	dz := depth / float32(m-1)

	config := &metadata.GeometryConfig{
		Vertices: make([]metadata.Vertex, 0, m*n),
		Indices:  make([]uint16, 0, (m-1)*(n-1)*6),
	}
	for i := uint32(0); i < m; i++ {
		z := halfDepth - float32(i)*dz
		for j := uint32(0); j < n; j++ {
			x := -halfWidth + float32(j)*dx
			config.Vertices = append(config.Vertices, metadata.Vertex{
				Pos:    math.NewVec3(x, 0, z),
				Normal: math.NewVec3Up(),
			})
		}
	}

	// two triangles per quad
	for i := uint32(0); i < m-1; i++ {
		for j := uint32(0); j < n-1; j++ {
			config.Indices = append(config.Indices,
				uint16(i*n+j), uint16(i*n+j+1), uint16((i+1)*n+j),
				uint16((i+1)*n+j), uint16(i*n+j+1), uint16((i+1)*n+j+1),
			)
		}
	}

	return finishShape(config, name, DefaultGridName)
}

/**
 * @brief Generates a UV sphere centered at the origin.
 *
 * @param radius Must be non-zero.
 * @param sliceCount Subdivisions around the y axis. At least three.
 * @param stackCount Subdivisions from pole to pole. At least two.
 * @param name The name of the generated geometry.
 */
func CreateSphere(radius float32, sliceCount, stackCount uint32, name string) (*metadata.GeometryConfig, error) {
	if radius == 0 {
		core.LogWarn("Radius must be nonzero. Defaulting to one.")
		radius = 1.0
	}
	if sliceCount < 3 {
		core.LogWarn("sliceCount must be at least three. Defaulting to three.")
		sliceCount = 3
	}
	if stackCount < 2 {
		core.LogWarn("stackCount must be at least two. Defaulting to two.")
		stackCount = 2
	}

	ringVertexCount := sliceCount + 1
	config := &metadata.GeometryConfig{
		Vertices: make([]metadata.Vertex, 0, 2+(stackCount-1)*ringVertexCount),
	}

	config.Vertices = append(config.Vertices, metadata.Vertex{
		Pos:    math.NewVec3(0, radius, 0),
		Normal: math.NewVec3(0, 1, 0),
	})

	phiStep := gomath.Pi / float64(stackCount)
	thetaStep := 2 * gomath.Pi / float64(sliceCount)

	// the rings exclude the poles; the seam vertex is duplicated
	for i := uint32(1); i < stackCount; i++ {
		phi := float64(i) * phiStep
		for j := uint32(0); j <= sliceCount; j++ {
			theta := float64(j) * thetaStep
			p := math.SphericalToCartesian(radius, float32(theta), float32(phi))
			config.Vertices = append(config.Vertices, metadata.Vertex{
				Pos:    p,
				Normal: p.Normalized(),
			})
		}
	}

	config.Vertices = append(config.Vertices, metadata.Vertex{
		Pos:    math.NewVec3(0, -radius, 0),
		Normal: math.NewVec3(0, -1, 0),
	})
	if len(config.Vertices) > MaxShapeVertices {
		return finishShape(config, name, DefaultSphereName)
	}

	// top cap fans around the north pole
	for i := uint32(1); i <= sliceCount; i++ {
		config.Indices = append(config.Indices, 0, uint16(i+1), uint16(i))
	}

	baseIndex := uint32(1)
	for i := uint32(0); i < stackCount-2; i++ {
		for j := uint32(0); j < sliceCount; j++ {
			config.Indices = append(config.Indices,
				uint16(baseIndex+i*ringVertexCount+j),
				uint16(baseIndex+i*ringVertexCount+j+1),
				uint16(baseIndex+(i+1)*ringVertexCount+j),

				uint16(baseIndex+(i+1)*ringVertexCount+j),
				uint16(baseIndex+i*ringVertexCount+j+1),
				uint16(baseIndex+(i+1)*ringVertexCount+j+1),
			)
		}
	}

	southPole := uint32(len(config.Vertices) - 1)
	baseIndex = southPole - ringVertexCount
	for i := uint32(0); i < sliceCount; i++ {
		config.Indices = append(config.Indices, uint16(southPole), uint16(baseIndex+i), uint16(baseIndex+i+1))
	}

	return finishShape(config, name, DefaultSphereName)
}

/**
 * @brief Generates a capped cylinder, or a frustum when the radii differ,
 * centered at the origin along the y axis.
 *
 * @param bottomRadius Radius at y = -height/2.
 * @param topRadius Radius at y = +height/2.
 * @param height Must be non-zero.
 * @param sliceCount Subdivisions around the y axis. At least three.
 * @param stackCount Subdivisions along the y axis. At least one.
 * @param name The name of the generated geometry.
 */
func CreateCylinder(bottomRadius, topRadius, height float32, sliceCount, stackCount uint32, name string) (*metadata.GeometryConfig, error) {
	if height == 0 {
		core.LogWarn("Height must be nonzero. Defaulting to one.")
		height = 1.0
	}
	if bottomRadius == 0 && topRadius == 0 {
		core.LogWarn("At least one radius must be nonzero. Defaulting both to one.")
		bottomRadius = 1.0
		topRadius = 1.0
	}
	if sliceCount < 3 {
		core.LogWarn("sliceCount must be at least three. Defaulting to three.")
		sliceCount = 3
	}
	if stackCount < 1 {
		core.LogWarn("stackCount must be positive. Defaulting to one.")
		stackCount = 1
	}

	ringCount := stackCount + 1
	ringVertexCount := sliceCount + 1
	if uint64(ringCount)*uint64(ringVertexCount)+2*uint64(ringVertexCount+1) > MaxShapeVertices {
		err := fmt.Errorf("cylinder with %d slices and %d stacks exceeds %d vertices", sliceCount, stackCount, MaxShapeVertices)
		core.LogError(err.Error())
		return nil, err
	}

	stackHeight := height / float32(stackCount)
	radiusStep := (topRadius - bottomRadius) / float32(stackCount)
	dTheta := 2 * gomath.Pi / float64(sliceCount)

	config := &metadata.GeometryConfig{}

	for i := uint32(0); i < ringCount; i++ {
		y := -0.5*height + float32(i)*stackHeight
		r := bottomRadius + float32(i)*radiusStep
		for j := uint32(0); j <= sliceCount; j++ {
			c := float32(gomath.Cos(float64(j) * dTheta))
			s := float32(gomath.Sin(float64(j) * dTheta))

			// the side normal leans outwards when the cylinder narrows
			tangent := math.NewVec3(-s, 0, c)
			dr := bottomRadius - topRadius
			bitangent := math.NewVec3(dr*c, -height, dr*s)

			config.Vertices = append(config.Vertices, metadata.Vertex{
				Pos:    math.NewVec3(r*c, y, r*s),
				Normal: tangent.Cross(bitangent).Normalized(),
			})
		}
	}

	for i := uint32(0); i < stackCount; i++ {
		for j := uint32(0); j < sliceCount; j++ {
			config.Indices = append(config.Indices,
				uint16(i*ringVertexCount+j),
				uint16((i+1)*ringVertexCount+j),
				uint16((i+1)*ringVertexCount+j+1),

				uint16(i*ringVertexCount+j),
				uint16((i+1)*ringVertexCount+j+1),
				uint16(i*ringVertexCount+j+1),
			)
		}
	}

	buildCylinderCap(config, topRadius, 0.5*height, sliceCount, true)
	buildCylinderCap(config, bottomRadius, -0.5*height, sliceCount, false)

	return finishShape(config, name, DefaultCylinderName)
}

func buildCylinderCap(config *metadata.GeometryConfig, radius, y float32, sliceCount uint32, top bool) {
	normal := math.NewVec3(0, -1, 0)
	if top {
		normal = math.NewVec3(0, 1, 0)
	}

	baseIndex := uint32(len(config.Vertices))
	dTheta := 2 * gomath.Pi / float64(sliceCount)
	for i := uint32(0); i <= sliceCount; i++ {
		x := radius * float32(gomath.Cos(float64(i)*dTheta))
		z := radius * float32(gomath.Sin(float64(i)*dTheta))
		config.Vertices = append(config.Vertices, metadata.Vertex{Pos: math.NewVec3(x, y, z), Normal: normal})
	}
	config.Vertices = append(config.Vertices, metadata.Vertex{Pos: math.NewVec3(0, y, 0), Normal: normal})

	centerIndex := uint32(len(config.Vertices) - 1)
	for i := uint32(0); i < sliceCount; i++ {
		if top {
			config.Indices = append(config.Indices, uint16(centerIndex), uint16(baseIndex+i+1), uint16(baseIndex+i))
		} else {
			config.Indices = append(config.Indices, uint16(centerIndex), uint16(baseIndex+i), uint16(baseIndex+i+1))
		}
	}
}
