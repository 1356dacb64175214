package math

import (
	m "math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func sampleWorld() Mat4 {
	s := NewMat4Scale(NewVec3(2, 1, 2))
	r := NewMat4EulerY(0.7).Mul(NewMat4EulerX(-0.3))
	t := NewMat4Translation(NewVec3(-5, 1.5, 10))
	return s.Mul(r).Mul(t)
}

func TestTransposeRoundTrip(t *testing.T) {
	w := sampleWorld()
	upload := NewMat4Transposed(w)
	if upload == w {
		t.Fatal("transpose of a non-symmetric matrix must differ")
	}
	back := NewMat4Transposed(upload)
	if !back.Compare(w, 1e-6) {
		t.Fatalf("round trip mismatch:\n%v\n%v", back.Data, w.Data)
	}
	if upload.Data[3] != w.Data[12] || upload.Data[7] != w.Data[13] || upload.Data[11] != w.Data[14] {
		t.Fatal("translation did not move to the last column")
	}
}

// mgl32 stores matrices column-major, so our row-major data reads as the
// transpose there. (AB)^T = B^T A^T keeps the raw arrays comparable.
func TestMulMatchesMathgl(t *testing.T) {
	a := sampleWorld()
	b := NewMat4PerspectiveLH(0.25*K_PI, 16.0/9.0, 1, 1000)

	got := a.Mul(b)
	want := mgl32.Mat4(b.Data).Mul4(mgl32.Mat4(a.Data))
	if !got.Compare(Mat4{Data: want}, 1e-4) {
		t.Fatalf("mul mismatch:\n%v\n%v", got.Data, want)
	}
}

func TestInverseMatchesMathgl(t *testing.T) {
	tests := []struct {
		name string
		mat  Mat4
	}{
		{"identity", NewMat4Identity()},
		{"world", sampleWorld()},
		{"view", NewMat4LookAtLH(NewVec3(3, 4, -5), NewVec3Zero(), NewVec3Up())},
		{"proj", NewMat4PerspectiveLH(0.25*K_PI, 1.5, 1, 1000)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.mat.Inverse()
			want := mgl32.Mat4(tt.mat.Data).Inv()
			if !got.Compare(Mat4{Data: want}, 1e-3) {
				t.Fatalf("inverse mismatch:\n%v\n%v", got.Data, want)
			}
			if !tt.mat.Mul(got).Compare(NewMat4Identity(), 1e-4) {
				t.Fatal("m * inverse(m) is not identity")
			}
		})
	}
}

func TestInverseSingular(t *testing.T) {
	if got := (Mat4{}).Inverse(); got != NewMat4Identity() {
		t.Fatalf("expected identity for singular input, got %v", got.Data)
	}
}

func TestLookAtLH(t *testing.T) {
	eye := NewVec3(0, 0, -5)
	view := NewMat4LookAtLH(eye, NewVec3Zero(), NewVec3Up())

	if p := eye.TransformPoint(view); !p.Compare(NewVec3Zero(), 1e-5) {
		t.Fatalf("eye should map to origin, got %+v", p)
	}
	if p := NewVec3Zero().TransformPoint(view); !p.Compare(NewVec3(0, 0, 5), 1e-5) {
		t.Fatalf("target should sit on +z in view space, got %+v", p)
	}
}

func TestPerspectiveLHDepthRange(t *testing.T) {
	near, far := float32(1), float32(1000)
	proj := NewMat4PerspectiveLH(0.25*K_PI, 1, near, far)

	if z := NewVec3(0, 0, near).TransformPoint(proj).Z; kabs(z) > 1e-6 {
		t.Fatalf("near plane depth = %f", z)
	}
	if z := NewVec3(0, 0, far).TransformPoint(proj).Z; kabs(z-1) > 1e-5 {
		t.Fatalf("far plane depth = %f", z)
	}
}

func TestSphericalToCartesian(t *testing.T) {
	p := SphericalToCartesian(5, 1.5*K_PI, 0.25*K_PI)
	if kabs(p.Length()-5) > 1e-5 {
		t.Fatalf("radius not preserved: %f", p.Length())
	}
	if kabs(p.Y-5*float32(m.Cos(m.Pi/4))) > 1e-5 {
		t.Fatalf("unexpected height %f", p.Y)
	}
}

func TestClamp(t *testing.T) {
	if Clamp(20, 3, 15) != 15 || Clamp(-1.0, 3.0, 15.0) != 3.0 || Clamp(7, 3, 15) != 7 {
		t.Fatal("clamp out of bounds")
	}
}
