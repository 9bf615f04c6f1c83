package correlate

import (
	"simcapture-go/internal/entity"
	"simcapture-go/internal/sample"
)

// State is either Idle or Pending with exactly one unresolved sample.
type State struct {
	pending *sample.Unresolved
}

func Idle() State {
	return State{}
}

func Pending(s sample.Unresolved) State {
	return State{pending: &s}
}

func (s State) IsPending() bool {
	return s.pending != nil
}

// Sample returns the pending sample, if any.
func (s State) Sample() (sample.Unresolved, bool) {
	if s.pending == nil {
		return sample.Unresolved{}, false
	}
	return *s.pending, true
}

func (s State) String() string {
	if s.pending != nil {
		return "pending"
	}
	return "idle"
}

// Effect is what a transition asks the caller to do.
type Effect struct {
	// Dropped is set when a pending sample was replaced before resolution.
	Dropped bool
	// Orphaned is set when a detection response found nothing to resolve.
	Orphaned bool
	// Resolved is the sample to hand to the writer.
	Resolved *sample.Resolved
}

// OnTelemetry stores a new unresolved sample, replacing any pending one.
func OnTelemetry(s State, image []byte, target entity.Handle) (State, Effect) {
	return Pending(sample.NewUnresolved(image, target)), Effect{Dropped: s.IsPending()}
}

// OnDetection resolves the pending sample, if there is one.
func OnDetection(s State, wasDetected bool) (State, Effect) {
	pending, ok := s.Sample()
	if !ok {
		return s, Effect{Orphaned: true}
	}
	resolved := pending.Resolve(wasDetected)
	return Idle(), Effect{Resolved: &resolved}
}
