package simulator

import "math/rand"

// Spawner decides when a new target appears. After the rig has travelled a
// random distance in [rate/2, rate) it gets a spawn opportunity, which is
// skipped while the cooldown is still running. The cooldown counts updates.
type Spawner struct {
	rate         float64
	cooldownRate int
	rng          *rand.Rand

	checkpoint float64
	distance   float64
	cooldown   int
}

func NewSpawner(rate float64, cooldownRate int, rng *rand.Rand) *Spawner {
	s := &Spawner{rate: rate, cooldownRate: cooldownRate, rng: rng}
	s.distance = s.nextDistance()
	return s
}

// Update reports whether a target should spawn at this progress.
func (s *Spawner) Update(progress float64) bool {
	if s.cooldown > 0 {
		s.cooldown--
	}
	if progress-s.checkpoint <= s.distance {
		return false
	}
	s.checkpoint = progress
	s.distance = s.nextDistance()
	if s.cooldown != 0 {
		return false
	}
	s.cooldown = s.cooldownRate
	return true
}

func (s *Spawner) nextDistance() float64 {
	return s.rng.Float64()*s.rate/2 + s.rate/2
}
