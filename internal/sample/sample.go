// Package sample defines the captured-frame values that flow from the
// correlator to the writer.
package sample

import "simcapture-go/internal/entity"

// Unresolved is a captured frame waiting for its detection result.
type Unresolved struct {
	image  []byte
	target entity.Handle
}

func NewUnresolved(image []byte, target entity.Handle) Unresolved {
	return Unresolved{image: image, target: target}
}

func (u Unresolved) Image() []byte         { return u.image }
func (u Unresolved) Target() entity.Handle { return u.target }

// Resolve pairs the frame with a detection result. It is the only way to
// obtain a Resolved sample.
func (u Unresolved) Resolve(wasDetected bool) Resolved {
	return Resolved{image: u.image, target: u.target, wasDetected: wasDetected}
}

// Resolved is a labeled frame ready to be written.
type Resolved struct {
	image       []byte
	target      entity.Handle
	wasDetected bool
}

func (r Resolved) Image() []byte         { return r.image }
func (r Resolved) Target() entity.Handle { return r.target }
func (r Resolved) WasDetected() bool     { return r.wasDetected }
