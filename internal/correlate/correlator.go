// Package correlate pairs captured telemetry frames with the detection
// responses that arrive for them later.
//
// At most one frame waits for a response. A newer frame replaces it and the
// older one is lost; a response with nothing waiting is ignored. Both cases
// are counted in Stats.
package correlate

import (
	"errors"
	"log"
	"sync"

	"simcapture-go/internal/entity"
	"simcapture-go/internal/sample"
)

var ErrAlreadyRecording = errors.New("recording already active")

// Sink receives resolved samples while recording.
type Sink interface {
	Write(s sample.Resolved) error
}

type Stats struct {
	Recording bool   `json:"recording"`
	State     string `json:"state"`
	Captured  uint64 `json:"captured"`
	Resolved  uint64 `json:"resolved"`
	Dropped   uint64 `json:"dropped"`
	Orphaned  uint64 `json:"orphaned"`
	Failed    uint64 `json:"failed"`
}

type Correlator struct {
	mu     sync.Mutex
	state  State
	target entity.Handle
	sink   Sink
	stats  Stats

	onFailure func(Sink, error)
}

func New() *Correlator {
	return &Correlator{state: Idle()}
}

// OnFailure registers fn to be called, outside the lock, when the sink
// rejects a sample. fn receives the sink that failed, which may no longer be
// the active one by the time fn runs.
func (c *Correlator) OnFailure(fn func(Sink, error)) {
	c.mu.Lock()
	c.onFailure = fn
	c.mu.Unlock()
}

// Begin starts recording into sink with an empty pending slot.
func (c *Correlator) Begin(sink Sink) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sink != nil {
		return ErrAlreadyRecording
	}
	c.sink = sink
	c.state = Idle()
	return nil
}

// End stops recording, discards any pending sample and returns the sink that
// was active, or nil.
func (c *Correlator) End() Sink {
	c.mu.Lock()
	defer c.mu.Unlock()
	sink := c.sink
	c.sink = nil
	c.state = Idle()
	return sink
}

func (c *Correlator) IsRecording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sink != nil
}

// Target returns the handle future samples will reference.
func (c *Correlator) Target() entity.Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

func (c *Correlator) OnTargetChanged(target entity.Handle) {
	c.mu.Lock()
	c.target = target
	c.mu.Unlock()
}

func (c *Correlator) OnTelemetryProduced(image []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sink == nil {
		return
	}
	var effect Effect
	c.state, effect = OnTelemetry(c.state, image, c.target)
	c.stats.Captured++
	if effect.Dropped {
		c.stats.Dropped++
		log.Printf("correlate: pending sample replaced before resolution (%d dropped)", c.stats.Dropped)
	}
}

func (c *Correlator) OnDetectionResponse(wasDetected bool) {
	c.mu.Lock()
	if c.sink == nil {
		c.mu.Unlock()
		return
	}
	var effect Effect
	c.state, effect = OnDetection(c.state, wasDetected)
	if effect.Orphaned {
		c.stats.Orphaned++
		c.mu.Unlock()
		return
	}

	sink := c.sink
	err := sink.Write(*effect.Resolved)
	if err != nil {
		c.stats.Failed++
	} else {
		c.stats.Resolved++
	}
	onFailure := c.onFailure
	c.mu.Unlock()

	if err != nil && onFailure != nil {
		onFailure(sink, err)
	}
}

func (c *Correlator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := c.stats
	stats.Recording = c.sink != nil
	stats.State = c.state.String()
	return stats
}
