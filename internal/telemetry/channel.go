// Package telemetry turns controller events into captured frames and
// outbound telemetry messages.
package telemetry

import (
	"encoding/base64"
	"log"
	"sync"

	"simcapture-go/internal/events"
	"simcapture-go/internal/output"
	"simcapture-go/internal/types"
)

// FrameSource captures the current camera frame as an encoded image.
type FrameSource interface {
	CaptureFrame() ([]byte, error)
}

// Outbound delivers events to the remote controller.
type Outbound interface {
	Send(ev types.Event) error
}

// ManualOverride reports whether a human is currently driving.
type ManualOverride interface {
	Active() bool
}

// Journal records controller traffic.
type Journal interface {
	Record(entry output.JournalEntry) error
}

type Options struct {
	// ResolveBeforeCapture publishes a detect result before capturing, so it
	// pairs with the frame sent in the previous cycle.
	ResolveBeforeCapture bool
	// SuppressImageOnManual sends an empty payload while Manual is active.
	SuppressImageOnManual bool
	Manual                ManualOverride
	Journal               Journal
	// Session tags journal entries with the active recording session.
	Session  func() string
	LogEvery int
}

type Stats struct {
	Received       uint64 `json:"received"`
	Unknown        uint64 `json:"unknown"`
	Malformed      uint64 `json:"malformed"`
	Captured       uint64 `json:"captured"`
	CaptureErrors  uint64 `json:"capture_errors"`
	Sent           uint64 `json:"sent"`
	SendErrors     uint64 `json:"send_errors"`
	Suppressed     uint64 `json:"suppressed"`
	LastDetection  *bool  `json:"last_detection,omitempty"`
	ResolveFirst   bool   `json:"resolve_before_capture"`
	SuppressManual bool   `json:"suppress_image_on_manual"`
}

type Channel struct {
	hub    *events.Hub
	frames FrameSource
	out    Outbound
	opts   Options
	logger *sampledLogger

	mu    sync.Mutex
	stats Stats
}

func NewChannel(hub *events.Hub, frames FrameSource, out Outbound, opts Options) *Channel {
	return &Channel{
		hub:    hub,
		frames: frames,
		out:    out,
		opts:   opts,
		logger: newSampledLogger(opts.LogEvery),
		stats: Stats{
			ResolveFirst:   opts.ResolveBeforeCapture,
			SuppressManual: opts.SuppressImageOnManual,
		},
	}
}

// HandleEvent must run on the main loop. Every recognized event captures a
// frame; unknown names are logged and dropped.
func (c *Channel) HandleEvent(ev types.Event) {
	c.count(func(s *Stats) { s.Received++ })
	c.journal(output.DirectionInbound, ev)

	switch ev.Name {
	case types.EventOpen, types.EventTrack, types.EventManual:
		c.captureAndEmit(nil)
	case types.EventDetect:
		detected, ok := hasDetection(ev.Data)
		if !ok {
			c.count(func(s *Stats) { s.Malformed++ })
			c.logger.Printf("telemetry: detect without boolean hasDetection: %v", ev.Data)
			c.captureAndEmit(nil)
			return
		}
		c.captureAndEmit(&detected)
	default:
		c.count(func(s *Stats) { s.Unknown++ })
		c.logger.Printf("telemetry: ignoring unknown event %q", ev.Name)
	}
}

func (c *Channel) captureAndEmit(detection *bool) {
	if detection != nil && c.opts.ResolveBeforeCapture {
		c.publishDetection(*detection)
	}

	image, err := c.frames.CaptureFrame()
	if err != nil {
		c.count(func(s *Stats) { s.CaptureErrors++ })
		log.Printf("telemetry: capture failed: %v", err)
		return
	}
	c.count(func(s *Stats) { s.Captured++ })
	c.hub.PublishTelemetry(events.TelemetryProduced{Image: image})

	if detection != nil && !c.opts.ResolveBeforeCapture {
		c.publishDetection(*detection)
	}

	encoded := ""
	if c.suppressImage() {
		c.count(func(s *Stats) { s.Suppressed++ })
	} else {
		encoded = base64.StdEncoding.EncodeToString(image)
	}
	c.send(types.Event{Name: types.EventTelemetry, Data: types.TelemetryPayload(encoded)})
}

func (c *Channel) publishDetection(detected bool) {
	c.count(func(s *Stats) {
		v := detected
		s.LastDetection = &v
	})
	c.hub.PublishDetection(events.DetectionResponse{WasDetected: detected})
}

func (c *Channel) suppressImage() bool {
	return c.opts.SuppressImageOnManual && c.opts.Manual != nil && c.opts.Manual.Active()
}

func (c *Channel) send(ev types.Event) {
	c.journal(output.DirectionOutbound, ev)
	if c.out == nil {
		return
	}
	if err := c.out.Send(ev); err != nil {
		c.count(func(s *Stats) { s.SendErrors++ })
		c.logger.Printf("telemetry: send failed: %v", err)
		return
	}
	c.count(func(s *Stats) { s.Sent++ })
}

func (c *Channel) journal(direction string, ev types.Event) {
	if c.opts.Journal == nil {
		return
	}
	entry := output.JournalEntry{Direction: direction, Event: ev}
	if c.opts.Session != nil {
		entry.Session = c.opts.Session()
	}
	if err := c.opts.Journal.Record(entry); err != nil {
		c.logger.Printf("telemetry: journal write failed: %v", err)
	}
}

// LastDetection returns the most recent detection result, if any.
func (c *Channel) LastDetection() (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stats.LastDetection == nil {
		return false, false
	}
	return *c.stats.LastDetection, true
}

func (c *Channel) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := c.stats
	if stats.LastDetection != nil {
		v := *stats.LastDetection
		stats.LastDetection = &v
	}
	return stats
}

func (c *Channel) count(fn func(*Stats)) {
	c.mu.Lock()
	fn(&c.stats)
	c.mu.Unlock()
}

func hasDetection(data map[string]any) (bool, bool) {
	if data == nil {
		return false, false
	}
	v, ok := data["hasDetection"].(bool)
	return v, ok
}
