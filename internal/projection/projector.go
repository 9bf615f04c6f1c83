// Package projection turns a tracked entity into a viewport bounding box.
package projection

import (
	"fmt"

	"simcapture-go/internal/entity"
)

// Bounds is where a target appears on screen. X and Y are the normalized
// viewport position of the target origin; Width and Height are the pixel size
// of its clamped mesh rectangle. The two are measured independently.
type Bounds struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
	Depth  float64
}

// Empty is returned when there is nothing to box.
var Empty = Bounds{X: -1, Y: -1, Depth: -1}

// InBounds reports whether the target origin is in front of the camera and
// inside the viewport.
func (b Bounds) InBounds() bool {
	return b.Depth > 0 &&
		0 <= b.X && b.X <= 1 &&
		0 <= b.Y && b.Y <= 1
}

func (b Bounds) String() string {
	return fmt.Sprintf("(%v, %v, %v, %v, [%v])", b.X, b.Y, b.Width, b.Height, b.Depth)
}

// Resolver looks up a tracked entity. entity.World satisfies it.
type Resolver interface {
	Get(h entity.Handle) (entity.Entity, bool)
}

// Projector computes Bounds for a handle against a reference camera. Nothing
// is cached; every call reads the current camera and entity state.
type Projector struct {
	camera   Camera
	entities Resolver
}

func NewProjector(camera Camera, entities Resolver) *Projector {
	return &Projector{camera: camera, entities: entities}
}

// Project returns Empty for null or stale handles.
func (p *Projector) Project(target entity.Handle) Bounds {
	if target.IsNull() || p.entities == nil {
		return Empty
	}
	e, ok := p.entities.Get(target)
	if !ok {
		return Empty
	}
	return ProjectEntity(p.camera, e)
}

// ProjectEntity is Project for an entity value already in hand.
func ProjectEntity(camera Camera, e entity.Entity) Bounds {
	origin := camera.WorldToViewport(e.Transform.Position)
	width, height := screenSize(camera, e)
	return Bounds{
		X:      origin[0],
		Y:      origin[1],
		Width:  width,
		Height: height,
		Depth:  origin[2],
	}
}

// screenSize is zero whenever any vertex sits on or behind the camera plane.
func screenSize(camera Camera, e entity.Entity) (float64, float64) {
	vertices := e.WorldVertices()
	if len(vertices) == 0 {
		return 0, 0
	}

	screenW := float64(camera.PixelWidth())
	screenH := float64(camera.PixelHeight())

	var minX, minY, minZ, maxX, maxY float64
	for i, v := range vertices {
		s := camera.WorldToScreen(v)
		x, y, z := s[0], screenH-s[1], s[2]
		if i == 0 {
			minX, maxX = x, x
			minY, maxY = y, y
			minZ = z
			continue
		}
		if x < minX {
			minX = x
		}
		if x > maxX {
			maxX = x
		}
		if y < minY {
			minY = y
		}
		if y > maxY {
			maxY = y
		}
		if z < minZ {
			minZ = z
		}
	}

	if !(minZ > 0) {
		return 0, 0
	}

	if minX < 0 {
		minX = 0
	}
	if minY < 0 {
		minY = 0
	}
	if maxX > screenW {
		maxX = screenW
	}
	if maxY > screenH {
		maxY = screenH
	}
	return nonNegative(maxX - minX), nonNegative(maxY - minY)
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
