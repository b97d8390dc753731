package scene

import "github.com/go-gl/mathgl/mgl32"

// Projection describes a perspective camera. FovY is in degrees.
type Projection struct {
	FovY   float64
	Aspect float64
	Near   float64
	Far    float64
}

// NewProjection builds a projection for a width x height viewport.
func NewProjection(fovY float64, width, height int, near, far float64) Projection {
	return Projection{
		FovY:   fovY,
		Aspect: float64(width) / float64(height),
		Near:   near,
		Far:    far,
	}
}

// Matrix returns the perspective matrix.
func (p Projection) Matrix() mgl32.Mat4 {
	return mgl32.Perspective(
		mgl32.DegToRad(float32(p.FovY)),
		float32(p.Aspect),
		float32(p.Near),
		float32(p.Far),
	)
}

// ModelView pushes the solid zoomDistance units away from the eye, then
// rotates it by xangle degrees about the vertical axis and by yangle degrees
// about the horizontal axis. The factors compose in that order:
// T(0, 0, -zoom) * Ry(xangle) * Rx(yangle).
func ModelView(zoomDistance, xangle, yangle float64) mgl32.Mat4 {
	return mgl32.Translate3D(0, 0, -float32(zoomDistance)).
		Mul4(mgl32.HomogRotate3DY(mgl32.DegToRad(float32(xangle)))).
		Mul4(mgl32.HomogRotate3DX(mgl32.DegToRad(float32(yangle))))
}

// Transform returns the projection and model-view matrices for one frame.
func Transform(p Projection, zoomDistance, xangle, yangle float64) (proj, modelView mgl32.Mat4) {
	return p.Matrix(), ModelView(zoomDistance, xangle, yangle)
}
