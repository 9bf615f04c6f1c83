package projection

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Camera converts world positions into viewport and screen space.
//
// Viewport coordinates are normalized: x and y run from 0 to 1 with the origin
// at the bottom-left, z is the view-space depth (positive in front of the
// camera). Screen coordinates are viewport x and y scaled to pixels, with the
// same z.
type Camera interface {
	WorldToViewport(p mgl64.Vec3) mgl64.Vec3
	WorldToScreen(p mgl64.Vec3) mgl64.Vec3
	PixelWidth() int
	PixelHeight() int
}

// PerspectiveCamera is a pinhole camera looking down its local +Z axis with +Y
// up.
type PerspectiveCamera struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
	// FieldOfView is the vertical field of view in degrees.
	FieldOfView float64
	Width       int
	Height      int
}

func NewPerspectiveCamera(width, height int, fovDegrees float64) *PerspectiveCamera {
	return &PerspectiveCamera{
		Rotation:    mgl64.QuatIdent(),
		FieldOfView: fovDegrees,
		Width:       width,
		Height:      height,
	}
}

// ToLocal expresses p in camera space.
func (c *PerspectiveCamera) ToLocal(p mgl64.Vec3) mgl64.Vec3 {
	return c.Rotation.Inverse().Rotate(p.Sub(c.Position))
}

func (c *PerspectiveCamera) WorldToViewport(p mgl64.Vec3) mgl64.Vec3 {
	local := c.ToLocal(p)
	tanHalf := math.Tan(mgl64.DegToRad(c.FieldOfView) / 2)
	aspect := float64(c.Width) / float64(c.Height)
	depth := local.Z()
	return mgl64.Vec3{
		0.5 + 0.5*local.X()/(depth*tanHalf*aspect),
		0.5 + 0.5*local.Y()/(depth*tanHalf),
		depth,
	}
}

func (c *PerspectiveCamera) WorldToScreen(p mgl64.Vec3) mgl64.Vec3 {
	v := c.WorldToViewport(p)
	return mgl64.Vec3{v[0] * float64(c.Width), v[1] * float64(c.Height), v[2]}
}

func (c *PerspectiveCamera) PixelWidth() int  { return c.Width }
func (c *PerspectiveCamera) PixelHeight() int { return c.Height }
