// Package events is the publish point that connects the telemetry channel,
// the scene, and the correlator. Subscribers are registered once at startup
// and called synchronously, in registration order, on the publisher's
// goroutine.
package events

import (
	"sync"
	"sync/atomic"

	"simcapture-go/internal/entity"
)

// TelemetryProduced carries a freshly captured frame.
type TelemetryProduced struct {
	Image []byte
}

// DetectionResponse carries the controller's classification result.
type DetectionResponse struct {
	WasDetected bool
}

// TargetChanged names the entity now considered in view.
type TargetChanged struct {
	Target entity.Handle
}

type Stats struct {
	Telemetry uint64 `json:"telemetry"`
	Detection uint64 `json:"detection"`
	Target    uint64 `json:"target"`
}

type Hub struct {
	mu        sync.RWMutex
	telemetry []func(TelemetryProduced)
	detection []func(DetectionResponse)
	target    []func(TargetChanged)

	telemetryCount atomic.Uint64
	detectionCount atomic.Uint64
	targetCount    atomic.Uint64
}

func NewHub() *Hub {
	return &Hub{}
}

func (h *Hub) SubscribeTelemetry(fn func(TelemetryProduced)) {
	h.mu.Lock()
	h.telemetry = append(h.telemetry, fn)
	h.mu.Unlock()
}

func (h *Hub) SubscribeDetection(fn func(DetectionResponse)) {
	h.mu.Lock()
	h.detection = append(h.detection, fn)
	h.mu.Unlock()
}

func (h *Hub) SubscribeTarget(fn func(TargetChanged)) {
	h.mu.Lock()
	h.target = append(h.target, fn)
	h.mu.Unlock()
}

func (h *Hub) PublishTelemetry(ev TelemetryProduced) {
	h.telemetryCount.Add(1)
	h.mu.RLock()
	subs := h.telemetry
	h.mu.RUnlock()
	for _, fn := range subs {
		fn(ev)
	}
}

func (h *Hub) PublishDetection(ev DetectionResponse) {
	h.detectionCount.Add(1)
	h.mu.RLock()
	subs := h.detection
	h.mu.RUnlock()
	for _, fn := range subs {
		fn(ev)
	}
}

func (h *Hub) PublishTarget(ev TargetChanged) {
	h.targetCount.Add(1)
	h.mu.RLock()
	subs := h.target
	h.mu.RUnlock()
	for _, fn := range subs {
		fn(ev)
	}
}

func (h *Hub) Stats() Stats {
	return Stats{
		Telemetry: h.telemetryCount.Load(),
		Detection: h.detectionCount.Load(),
		Target:    h.targetCount.Load(),
	}
}
