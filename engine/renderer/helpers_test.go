package renderer

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/spaghettifunk/anima-shapes/engine/math"
	"github.com/spaghettifunk/anima-shapes/engine/renderer/components"
	"github.com/spaghettifunk/anima-shapes/engine/renderer/headless"
	"github.com/spaghettifunk/anima-shapes/engine/renderer/metadata"
)

func decodeObject(t *testing.T, b []byte) ObjectConstants {
	t.Helper()
	var oc ObjectConstants
	if _, err := binary.Decode(b, binary.LittleEndian, &oc); err != nil {
		t.Fatalf("decode object constants: %v", err)
	}
	return oc
}

func decodePass(t *testing.T, b []byte) PassConstants {
	t.Helper()
	var pc PassConstants
	if _, err := binary.Decode(b, binary.LittleEndian, &pc); err != nil {
		t.Fatalf("decode pass constants: %v", err)
	}
	return pc
}

// quadMesh is a two triangle mesh with n copies packed back to back.
func quadMesh(name string, copies int) metadata.MeshConfig {
	mc := metadata.MeshConfig{Name: name}
	for c := 0; c < copies; c++ {
		base := uint16(len(mc.Vertices))
		start := uint32(len(mc.Indices))
		mc.Vertices = append(mc.Vertices,
			metadata.Vertex{Pos: math.NewVec3(-1, 0, -1), Normal: math.NewVec3Up()},
			metadata.Vertex{Pos: math.NewVec3(-1, 0, 1), Normal: math.NewVec3Up()},
			metadata.Vertex{Pos: math.NewVec3(1, 0, 1), Normal: math.NewVec3Up()},
			metadata.Vertex{Pos: math.NewVec3(1, 0, -1), Normal: math.NewVec3Up()},
		)
		mc.Indices = append(mc.Indices, 0, 1, 2, 0, 2, 3)
		mc.Ranges = append(mc.Ranges, metadata.SubRangeConfig{
			Name:               name + string(rune('a'+c)),
			IndexCount:         6,
			StartIndexLocation: start,
			BaseVertexLocation: int32(base),
		})
	}
	return mc
}

func testScene() *metadata.SceneConfig {
	return &metadata.SceneConfig{
		Meshes: []metadata.MeshConfig{quadMesh("quad", 2)},
		Items: []metadata.RenderItemConfig{
			{Name: "left", Mesh: "quad", Range: "quada", World: math.NewMat4Translation(math.NewVec3(-2, 0, 0))},
			{Name: "right", Mesh: "quad", Range: "quadb", World: math.NewMat4Translation(math.NewVec3(2, 0, 0))},
			{Name: "spinner", Mesh: "quad", Range: "quada", World: math.NewMat4Translation(math.NewVec3(0, 3, 0)), Spin: 1},
		},
	}
}

func testConfig(framesInFlight int) Config {
	return Config{
		FramesInFlight: framesInFlight,
		ClearColour:    [4]float32{0.690196, 0.768627, 0.870588, 1},
		ShaderName:     "shapes",
		Camera: components.OrbitCameraConfig{
			Theta:     1.5 * math.K_PI,
			Phi:       0.25 * math.K_PI,
			Radius:    5,
			MinRadius: 3,
			MaxRadius: 15,
			FovY:      0.25 * math.K_PI,
			NearZ:     1,
			FarZ:      1000,
		},
		AmbientLight: math.NewVec4(0.25, 0.25, 0.35, 1),
		KeyLight: Light{
			Strength:  math.NewVec3(0.6, 0.6, 0.6),
			Direction: math.NewVec3(0.57735, -0.57735, 0.57735),
		},
	}
}

func newTestRenderer(t *testing.T, framesInFlight int, options headless.Options) (*Renderer, *headless.Device) {
	t.Helper()
	dev := headless.NewDevice(options)
	r := New(dev, nil, testConfig(framesInFlight))
	if err := r.Initialize(testContext(t), testScene()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return r, dev
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func cancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

func expectPanic(t *testing.T, what string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Fatalf("%s: expected an assertion panic", what)
		}
	}()
	fn()
}

// shaderMat4 reads 16 floats at byte offset off the way a std140 uniform
// block with the default column major layout does: element (row, col) is
// stored at col*4+row.
func shaderMat4(t *testing.T, b []byte, off int) [4][4]float32 {
	t.Helper()
	var raw [16]float32
	if _, err := binary.Decode(b[off:], binary.LittleEndian, &raw); err != nil {
		t.Fatalf("decode matrix: %v", err)
	}
	var m [4][4]float32
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			m[row][col] = raw[col*4+row]
		}
	}
	return m
}

// rowTimes is GLSL's v * M.
func rowTimes(v [4]float32, m [4][4]float32) [4]float32 {
	var out [4]float32
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			out[col] += v[row] * m[row][col]
		}
	}
	return out
}

func near4(a, b [4]float32, eps float32) bool {
	for i := range a {
		if d := a[i] - b[i]; d > eps || d < -eps {
			return false
		}
	}
	return true
}
