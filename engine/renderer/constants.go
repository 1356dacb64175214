package renderer

import (
	"encoding/binary"

	"github.com/spaghettifunk/anima-shapes/engine/math"
)

const MaxLights = 16

// ObjectConstants is the per render item constant block.
type ObjectConstants struct {
	World math.Mat4
}

// Light covers directional, point and spot lights. Field order follows the
// 16 byte packing the shaders expect.
type Light struct {
	Strength     math.Vec3
	FalloffStart float32
	Direction    math.Vec3
	FalloffEnd   float32
	Position     math.Vec3
	SpotPower    float32
}

// PassConstants is written once per frame into the current frame resource.
type PassConstants struct {
	View                math.Mat4
	InvView             math.Mat4
	Proj                math.Mat4
	InvProj             math.Mat4
	ViewProj            math.Mat4
	InvViewProj         math.Mat4
	EyePosW             math.Vec3
	NearZ               float32
	FarZ                float32
	TotalTime           float32
	DeltaTime           float32
	_                   float32
	RenderTargetSize    math.Vec2
	InvRenderTargetSize math.Vec2
	AmbientLight        math.Vec4
	Lights              [MaxLights]Light
}

// CalcConstantBufferByteSize rounds byteSize up to the 256 byte constant
// buffer alignment.
func CalcConstantBufferByteSize(byteSize uint64) uint64 {
	return (byteSize + 255) &^ 255
}

// ByteSize returns the packed size of a fixed size constant block.
func ByteSize[T any]() uint64 {
	var v T
	return uint64(binary.Size(&v))
}

func encodeConstants[T any](v *T) []byte {
	buf, err := binary.Append(nil, binary.LittleEndian, v)
	if err != nil {
		// only reachable with a non fixed size T
		panic(err)
	}
	return buf
}
