// Package simulator provides a small deterministic scene so the capture
// pipeline can run without a game engine: a camera rig that drives forward,
// targets that appear ahead of it and expire, and a frame renderer.
package simulator

import (
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"simcapture-go/internal/entity"
	"simcapture-go/internal/events"
	"simcapture-go/internal/projection"
)

type SceneConfig struct {
	Speed         float64
	SpawnRate     float64
	SpawnCooldown int
	Lifespan      time.Duration
	// SpawnAhead is how far in front of the camera targets appear.
	SpawnAhead float64
}

type target struct {
	handle entity.Handle
	age    time.Duration
}

// Scene owns the camera rig and the live targets. Advance must be called
// from the main loop.
type Scene struct {
	cfg     SceneConfig
	world   *entity.World
	camera  *projection.PerspectiveCamera
	hub     *events.Hub
	spawner *Spawner
	rng     *rand.Rand

	progress float64
	targets  []target
	spawned  uint64

	mu     sync.Mutex
	manual atomic.Bool
}

func NewScene(cfg SceneConfig, world *entity.World, camera *projection.PerspectiveCamera, hub *events.Hub, rng *rand.Rand) *Scene {
	if cfg.SpawnAhead <= 0 {
		cfg.SpawnAhead = 20
	}
	return &Scene{
		cfg:     cfg,
		world:   world,
		camera:  camera,
		hub:     hub,
		spawner: NewSpawner(cfg.SpawnRate, cfg.SpawnCooldown, rng),
		rng:     rng,
	}
}

func (s *Scene) Camera() *projection.PerspectiveCamera {
	return s.camera
}

// SetManual toggles human override.
func (s *Scene) SetManual(v bool) {
	s.manual.Store(v)
}

// Active reports whether a human is driving.
func (s *Scene) Active() bool {
	return s.manual.Load()
}

func (s *Scene) Progress() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

func (s *Scene) Spawned() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spawned
}

// Advance moves the rig forward, spawns and expires targets.
func (s *Scene) Advance(dt time.Duration) {
	step := s.cfg.Speed * dt.Seconds()
	forward := s.camera.Rotation.Rotate(mgl64.Vec3{0, 0, 1})

	s.mu.Lock()
	s.camera.Position = s.camera.Position.Add(forward.Mul(step))
	s.progress += step
	spawn := s.spawner.Update(s.progress)
	expired := s.ageTargets(dt)
	s.mu.Unlock()

	for _, h := range expired {
		s.world.Destroy(h)
	}
	if spawn {
		s.Spawn()
	}
}

func (s *Scene) ageTargets(dt time.Duration) []entity.Handle {
	var expired []entity.Handle
	kept := s.targets[:0]
	for _, t := range s.targets {
		t.age += dt
		if s.cfg.Lifespan > 0 && t.age >= s.cfg.Lifespan {
			expired = append(expired, t.handle)
			continue
		}
		kept = append(kept, t)
	}
	s.targets = kept
	return expired
}

// Spawn places a target ahead of the camera and makes it the tracked target.
func (s *Scene) Spawn() entity.Handle {
	forward := s.camera.Rotation.Rotate(mgl64.Vec3{0, 0, 1})
	right := s.camera.Rotation.Rotate(mgl64.Vec3{1, 0, 0})

	s.mu.Lock()
	lateral := (s.rng.Float64() - 0.5) * s.cfg.SpawnAhead * 0.5
	width := 1 + s.rng.Float64()*2
	height := 1 + s.rng.Float64()*2
	s.mu.Unlock()

	tr := entity.IdentityTransform()
	tr.Position = s.camera.Position.Add(forward.Mul(s.cfg.SpawnAhead)).Add(right.Mul(lateral))
	tr.Rotation = s.camera.Rotation
	h := s.world.Spawn(entity.Entity{
		Name:      "target",
		Transform: tr,
		Vertices:  entity.BoxMesh(width, height, 1),
	})

	s.mu.Lock()
	s.targets = append(s.targets, target{handle: h})
	s.spawned++
	s.mu.Unlock()

	log.Printf("simulator: spawned target %d/%d at %.1f", h.Index, h.Generation, s.Progress())
	if s.hub != nil {
		s.hub.PublishTarget(events.TargetChanged{Target: h})
	}
	return h
}

// Targets returns the handles of live targets.
func (s *Scene) Targets() []entity.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.Handle, len(s.targets))
	for i, t := range s.targets {
		out[i] = t.handle
	}
	return out
}
