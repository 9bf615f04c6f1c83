package catalog

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"

	"simcapture-go/internal/output"
	"simcapture-go/internal/projection"
)

func TestBoundsArgs(t *testing.T) {
	x, y, w, h := boundsArgs(output.Record{InBounds: false, Bounds: projection.Empty})
	if x != nil || y != nil || w != nil || h != nil {
		t.Fatalf("expected NULL bounds for out-of-view record")
	}

	x, y, w, h = boundsArgs(output.Record{
		InBounds: true,
		Bounds:   projection.Bounds{X: 0.5, Y: 0.25, Width: 40, Height: 30, Depth: 3},
	})
	if *x != 0.5 || *y != 0.25 || *w != 40 || *h != 30 {
		t.Fatalf("unexpected bounds args: %v %v %v %v", *x, *y, *w, *h)
	}
}

// TestStoreIntegration runs against a real database named by
// SIMCAPTURE_TEST_DATABASE_URL.
func TestStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	url := os.Getenv("SIMCAPTURE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("SIMCAPTURE_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	s, err := New(ctx, url)
	if err != nil {
		t.Fatalf("Failed to connect to catalog: %v", err)
	}
	defer s.Close(ctx)

	session := uuid.NewString()
	if err := s.BeginSession(ctx, session, t.TempDir()); err != nil {
		t.Fatalf("BeginSession failed: %v", err)
	}
	records := []output.Record{
		{ID: 0, ImagePath: "/tmp/IMG/0.jpg", InBounds: true, Bounds: projection.Bounds{X: 0.5, Y: 0.5, Width: 40, Height: 30, Depth: 1}, WasDetected: true},
		{ID: 1, ImagePath: "/tmp/IMG/1.jpg", Bounds: projection.Empty},
	}
	for _, r := range records {
		if err := s.InsertSample(ctx, session, r); err != nil {
			t.Fatalf("InsertSample failed: %v", err)
		}
	}
	if err := s.EndSession(ctx, session); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}
	n, err := s.CountSamples(ctx, session)
	if err != nil {
		t.Fatalf("CountSamples failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 samples, got %d", n)
	}
}
