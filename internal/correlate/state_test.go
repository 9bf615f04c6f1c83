package correlate

import (
	"testing"

	"simcapture-go/internal/entity"
)

func TestTransitions(t *testing.T) {
	s := Idle()
	if s.IsPending() {
		t.Fatalf("idle state reports pending")
	}

	s, effect := OnDetection(s, true)
	if !effect.Orphaned || effect.Resolved != nil || s.IsPending() {
		t.Fatalf("detection on idle: state=%v effect=%#v", s, effect)
	}

	target := entity.Handle{Index: 3, Generation: 2}
	s, effect = OnTelemetry(s, []byte("A"), target)
	if effect.Dropped || !s.IsPending() {
		t.Fatalf("first telemetry: state=%v effect=%#v", s, effect)
	}

	s, effect = OnTelemetry(s, []byte("B"), target)
	if !effect.Dropped {
		t.Fatalf("overwrite not reported as drop")
	}
	pending, _ := s.Sample()
	if string(pending.Image()) != "B" {
		t.Fatalf("expected B pending, got %q", pending.Image())
	}

	s, effect = OnDetection(s, false)
	if s.IsPending() || effect.Resolved == nil {
		t.Fatalf("detection on pending: state=%v effect=%#v", s, effect)
	}
	if string(effect.Resolved.Image()) != "B" || effect.Resolved.WasDetected() || effect.Resolved.Target() != target {
		t.Fatalf("unexpected resolved sample")
	}
}
