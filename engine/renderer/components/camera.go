package components

import (
	gomath "math"

	"github.com/spaghettifunk/anima-shapes/engine/math"
)

const (
	// Each pixel of a left drag turns the camera a quarter of a degree.
	OrbitDegreesPerPixel float32 = 0.25
	// Each pixel of a right drag moves the camera 0.005 units.
	DollyUnitsPerPixel float32 = 0.005

	PolarMargin float32 = 0.1
)

var (
	// Bounds of the polar angle. They sit one ulp inside [0.1, pi-0.1] so
	// the angle never reaches the margins.
	minPhi = gomath.Nextafter32(PolarMargin, 1)
	maxPhi = gomath.Nextafter32(math.K_PI-PolarMargin, 0)
)

/**
 * @brief An orbit camera looking at the origin from spherical coordinates.
 * Theta is the azimuth (unclamped), Phi the polar angle measured from +Y.
 */
type OrbitCamera struct {
	Theta  float32
	Phi    float32
	Radius float32

	MinRadius float32
	MaxRadius float32

	FovY   float32
	Aspect float32
	NearZ  float32
	FarZ   float32

	/** @brief Internal flag used to determine when the view matrix needs to be rebuilt. */
	IsDirty bool

	position   math.Vec3
	viewMatrix math.Mat4
	projMatrix math.Mat4
}

type OrbitCameraConfig struct {
	Theta     float32
	Phi       float32
	Radius    float32
	MinRadius float32
	MaxRadius float32
	FovY      float32
	NearZ     float32
	FarZ      float32
}

func NewOrbitCamera(config OrbitCameraConfig, aspect float32) *OrbitCamera {
	c := &OrbitCamera{
		Theta:     config.Theta,
		MinRadius: config.MinRadius,
		MaxRadius: config.MaxRadius,
	}
	c.Phi = math.Clamp(config.Phi, minPhi, maxPhi)
	c.Radius = math.Clamp(config.Radius, c.MinRadius, c.MaxRadius)
	c.SetLens(config.FovY, aspect, config.NearZ, config.FarZ)
	c.IsDirty = true
	return c
}

// SetLens rebuilds the projection matrix.
func (c *OrbitCamera) SetLens(fovY, aspect, nearZ, farZ float32) {
	c.FovY = fovY
	c.Aspect = aspect
	c.NearZ = nearZ
	c.FarZ = farZ
	c.projMatrix = math.NewMat4PerspectiveLH(fovY, aspect, nearZ, farZ)
}

// Orbit turns the camera by a mouse drag of dx, dy pixels.
func (c *OrbitCamera) Orbit(dx, dy float32) {
	c.Theta += math.DegToRad(OrbitDegreesPerPixel * dx)
	c.Phi += math.DegToRad(OrbitDegreesPerPixel * dy)
	c.Phi = math.Clamp(c.Phi, minPhi, maxPhi)
	c.IsDirty = true
}

// Dolly moves the camera along its radius by a mouse drag of dx, dy pixels.
func (c *OrbitCamera) Dolly(dx, dy float32) {
	c.Radius += DollyUnitsPerPixel * (dx - dy)
	c.Radius = math.Clamp(c.Radius, c.MinRadius, c.MaxRadius)
	c.IsDirty = true
}

// Update rebuilds the view matrix when the spherical coordinates changed.
func (c *OrbitCamera) Update() {
	if !c.IsDirty {
		return
	}
	c.position = math.SphericalToCartesian(c.Radius, c.Theta, c.Phi)
	c.viewMatrix = math.NewMat4LookAtLH(c.position, math.NewVec3Zero(), math.NewVec3Up())
	c.IsDirty = false
}

func (c *OrbitCamera) GetPosition() math.Vec3 {
	c.Update()
	return c.position
}

func (c *OrbitCamera) GetView() math.Mat4 {
	c.Update()
	return c.viewMatrix
}

func (c *OrbitCamera) GetProjection() math.Mat4 {
	return c.projMatrix
}
