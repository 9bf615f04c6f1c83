// Package entity holds scene entities behind generation-checked handles.
//
// Holders of a Handle never own the entity. The scene may destroy it at any
// time; afterwards every lookup through the old handle fails, even if the slot
// has been reused for a newer entity.
package entity

import (
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// Handle refers to an entity in a World. The zero Handle is the null handle.
type Handle struct {
	Index      uint32
	Generation uint32
}

// IsNull reports whether h is the zero handle.
func (h Handle) IsNull() bool {
	return h.Generation == 0
}

// Transform places a mesh in world space.
type Transform struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
	Scale    mgl64.Vec3
}

// IdentityTransform is a transform at the origin with unit scale.
func IdentityTransform() Transform {
	return Transform{
		Rotation: mgl64.QuatIdent(),
		Scale:    mgl64.Vec3{1, 1, 1},
	}
}

// TransformPoint maps a mesh-local point to world space: scale, then rotate,
// then translate.
func (t Transform) TransformPoint(local mgl64.Vec3) mgl64.Vec3 {
	scaled := mgl64.Vec3{local[0] * t.Scale[0], local[1] * t.Scale[1], local[2] * t.Scale[2]}
	return t.Rotation.Rotate(scaled).Add(t.Position)
}

// Entity is a spawned object with a render mesh.
type Entity struct {
	Name      string
	Transform Transform
	Vertices  []mgl64.Vec3
}

// WorldVertices returns every mesh vertex transformed into world space.
func (e Entity) WorldVertices() []mgl64.Vec3 {
	out := make([]mgl64.Vec3, len(e.Vertices))
	for i, v := range e.Vertices {
		out[i] = e.Transform.TransformPoint(v)
	}
	return out
}

// BoxMesh returns the eight corners of an axis-aligned box centred on the
// origin with the given full extents.
func BoxMesh(width, height, depth float64) []mgl64.Vec3 {
	x, y, z := width/2, height/2, depth/2
	return []mgl64.Vec3{
		{-x, -y, -z}, {x, -y, -z}, {-x, y, -z}, {x, y, -z},
		{-x, -y, z}, {x, -y, z}, {-x, y, z}, {x, y, z},
	}
}

type slot struct {
	generation uint32
	alive      bool
	entity     Entity
}

// World is an arena of entities. It is safe for concurrent use.
type World struct {
	mu    sync.RWMutex
	slots []slot
	free  []uint32
	live  int
}

func NewWorld() *World {
	return &World{}
}

// Spawn stores e and returns its handle.
func (w *World) Spawn(e Entity) Handle {
	w.mu.Lock()
	defer w.mu.Unlock()

	var index uint32
	if n := len(w.free); n > 0 {
		index = w.free[n-1]
		w.free = w.free[:n-1]
	} else {
		w.slots = append(w.slots, slot{})
		index = uint32(len(w.slots) - 1)
	}
	s := &w.slots[index]
	s.generation++
	s.alive = true
	s.entity = e
	w.live++
	return Handle{Index: index, Generation: s.generation}
}

// Destroy removes the entity behind h. It returns false for null or stale
// handles.
func (w *World) Destroy(h Handle) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	s, ok := w.lookup(h)
	if !ok {
		return false
	}
	s.alive = false
	s.entity = Entity{}
	w.free = append(w.free, h.Index)
	w.live--
	return true
}

// Get returns a copy of the entity behind h.
func (w *World) Get(h Handle) (Entity, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	s, ok := w.lookup(h)
	if !ok {
		return Entity{}, false
	}
	return s.entity, true
}

// Update replaces the transform of a live entity.
func (w *World) Update(h Handle, t Transform) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	s, ok := w.lookup(h)
	if !ok {
		return false
	}
	s.entity.Transform = t
	return true
}

// Alive reports whether h still refers to a live entity.
func (w *World) Alive(h Handle) bool {
	_, ok := w.Get(h)
	return ok
}

// Len returns the number of live entities.
func (w *World) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.live
}

func (w *World) lookup(h Handle) (*slot, bool) {
	if h.IsNull() || int(h.Index) >= len(w.slots) {
		return nil, false
	}
	s := &w.slots[h.Index]
	if !s.alive || s.generation != h.Generation {
		return nil, false
	}
	return s, true
}
