package renderer

import (
	"testing"

	"github.com/spaghettifunk/anima-shapes/engine/math"
	"github.com/spaghettifunk/anima-shapes/engine/renderer/headless"
)

func TestConstantBufferByteSize(t *testing.T) {
	cases := map[uint64]uint64{0: 0, 1: 256, 64: 256, 256: 256, 257: 512, 1216: 1280}
	for in, want := range cases {
		if got := CalcConstantBufferByteSize(in); got != want {
			t.Errorf("CalcConstantBufferByteSize(%d) = %d, want %d", in, got, want)
		}
	}
	if got := ByteSize[ObjectConstants](); got != 64 {
		t.Errorf("object constants are %d bytes, want 64", got)
	}
	if got := ByteSize[Light](); got != 48 {
		t.Errorf("light is %d bytes, want 48", got)
	}
	if got := ByteSize[PassConstants](); got != 1216 {
		t.Errorf("pass constants are %d bytes, want 1216", got)
	}
}

func TestUploadBufferConstantStride(t *testing.T) {
	dev := headless.NewDevice(headless.Options{})
	ub, err := NewUploadBuffer[ObjectConstants](dev, "objects", 4, true)
	if err != nil {
		t.Fatal(err)
	}
	if ub.ElementByteSize() != 256 {
		t.Fatalf("element stride = %d, want 256", ub.ElementByteSize())
	}
	if ub.Resource().Size() != 4*256 {
		t.Fatalf("buffer size = %d, want %d", ub.Resource().Size(), 4*256)
	}
	for i := uint32(0); i < ub.Count(); i++ {
		if ub.Offset(i) != uint64(i)*256 {
			t.Fatalf("offset(%d) = %d", i, ub.Offset(i))
		}
	}

	world := math.NewMat4Translation(math.NewVec3(1, 2, 3))
	ub.CopyData(2, &ObjectConstants{World: world})

	got := decodeObject(t, ub.Bytes(2))
	if !got.World.Compare(world, 0) {
		t.Fatalf("element 2 = %v, want %v", got.World, world)
	}
	// neighbours untouched
	for _, i := range []uint32{1, 3} {
		if other := decodeObject(t, ub.Bytes(i)); !other.World.Compare(math.Mat4{}, 0) {
			t.Fatalf("element %d was overwritten", i)
		}
	}

	expectPanic(t, "copy past the end", func() {
		ub.CopyData(4, &ObjectConstants{})
	})

	ub.Destroy()
	if dev.LiveBuffers() != 0 {
		t.Fatalf("%d buffers alive after destroy", dev.LiveBuffers())
	}
}

func TestUploadBufferPackedStride(t *testing.T) {
	dev := headless.NewDevice(headless.Options{})
	ub, err := NewUploadBuffer[ObjectConstants](dev, "packed", 3, false)
	if err != nil {
		t.Fatal(err)
	}
	defer ub.Destroy()

	if ub.ElementByteSize() != 64 {
		t.Fatalf("element stride = %d, want 64", ub.ElementByteSize())
	}
	if ub.Offset(2) != 128 {
		t.Fatalf("offset(2) = %d, want 128", ub.Offset(2))
	}
}

func TestUploadBufferCreateFailure(t *testing.T) {
	dev := headless.NewDevice(headless.Options{})
	dev.InjectFailure("CreateBuffer")
	if _, err := NewUploadBuffer[PassConstants](dev, "pass", 1, true); err == nil {
		t.Fatal("expected an error when the device refuses the buffer")
	}
	if dev.LiveBuffers() != 0 {
		t.Fatalf("%d buffers leaked", dev.LiveBuffers())
	}
}
