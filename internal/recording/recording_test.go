package recording

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"simcapture-go/internal/correlate"
	"simcapture-go/internal/entity"
	"simcapture-go/internal/output"
	"simcapture-go/internal/projection"
)

type emptyBounds struct{}

func (emptyBounds) Project(entity.Handle) projection.Bounds { return projection.Empty }

type memoryCatalog struct {
	mu      sync.Mutex
	begun   []string
	ended   []string
	records []output.Record
	err     error
}

func (m *memoryCatalog) BeginSession(_ context.Context, id, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.begun = append(m.begun, id)
	return nil
}

func (m *memoryCatalog) InsertSample(_ context.Context, _ string, r output.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, r)
	return nil
}

func (m *memoryCatalog) EndSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ended = append(m.ended, id)
	return nil
}

func TestStartStop(t *testing.T) {
	c := correlate.New()
	rc := New(c, emptyBounds{})
	dir := filepath.Join(t.TempDir(), "run")

	if rc.IsRecording() || rc.Dir() != "" {
		t.Fatalf("new controller should be idle")
	}
	if err := rc.Start(dir); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !rc.IsRecording() || !c.IsRecording() || rc.Dir() != dir {
		t.Fatalf("expected active session in %s", dir)
	}
	if err := rc.Start(dir); !errors.Is(err, ErrAlreadyRecording) {
		t.Fatalf("expected ErrAlreadyRecording, got %v", err)
	}

	c.OnTelemetryProduced([]byte("frame"))
	c.OnDetectionResponse(true)
	if got := rc.Status().Written; got != 1 {
		t.Fatalf("expected 1 written sample, got %d", got)
	}

	if err := rc.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := rc.Stop(); err != nil {
		t.Fatalf("second stop: %v", err)
	}
	if rc.IsRecording() || c.IsRecording() {
		t.Fatalf("session still active after stop")
	}

	data, err := os.ReadFile(filepath.Join(dir, output.IndexFileName))
	if err != nil {
		t.Fatalf("read index: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 || !strings.HasSuffix(lines[1], ",,,,,True") {
		t.Fatalf("unexpected index contents: %q", lines)
	}
}

func TestStopDiscardsPending(t *testing.T) {
	c := correlate.New()
	rc := New(c, emptyBounds{})
	dir := t.TempDir()

	if err := rc.Start(dir); err != nil {
		t.Fatalf("start: %v", err)
	}
	c.OnTelemetryProduced([]byte("frame"))
	rc.Stop()
	c.OnDetectionResponse(true)

	data, err := os.ReadFile(filepath.Join(dir, output.IndexFileName))
	if err != nil {
		t.Fatalf("read index: %v", err)
	}
	if len(data) != 0 {
		t.Fatalf("pending sample was written after stop: %q", data)
	}
}

func TestRestartResetsIDs(t *testing.T) {
	c := correlate.New()
	rc := New(c, emptyBounds{})
	base := t.TempDir()

	for _, name := range []string{"a", "b"} {
		dir := filepath.Join(base, name)
		if err := rc.Start(dir); err != nil {
			t.Fatalf("start %s: %v", name, err)
		}
		c.OnTelemetryProduced([]byte(name))
		c.OnDetectionResponse(false)
		rc.Stop()
		if _, err := os.Stat(filepath.Join(dir, output.ImageDirName, "0.jpg")); err != nil {
			t.Fatalf("session %s did not start at id 0: %v", name, err)
		}
	}
}

func TestStorageFailureStopsSession(t *testing.T) {
	c := correlate.New()
	var hookErr error
	rc := New(c, emptyBounds{}, WithFailureHook(func(err error) { hookErr = err }))
	dir := t.TempDir()

	if err := rc.Start(dir); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := os.RemoveAll(filepath.Join(dir, output.ImageDirName)); err != nil {
		t.Fatalf("remove image dir: %v", err)
	}
	c.OnTelemetryProduced([]byte("frame"))
	c.OnDetectionResponse(true)

	if hookErr == nil {
		t.Fatalf("failure hook not called")
	}
	if rc.IsRecording() {
		t.Fatalf("session should stop after storage failure")
	}
	if rc.Status().LastError == "" {
		t.Fatalf("status should report the failure")
	}
	if err := rc.Start(t.TempDir()); err != nil {
		t.Fatalf("restart after failure: %v", err)
	}
}

func TestCatalogMirror(t *testing.T) {
	c := correlate.New()
	cat := &memoryCatalog{}
	rc := New(c, emptyBounds{}, WithCatalog(cat))

	if err := rc.Start(t.TempDir()); err != nil {
		t.Fatalf("start: %v", err)
	}
	session := rc.Status().Session
	for i := 0; i < 3; i++ {
		c.OnTelemetryProduced([]byte{byte(i)})
		c.OnDetectionResponse(i == 1)
	}
	rc.Stop()

	if len(cat.begun) != 1 || cat.begun[0] != session || len(cat.ended) != 1 {
		t.Fatalf("unexpected session bookkeeping: begun=%v ended=%v", cat.begun, cat.ended)
	}
	if len(cat.records) != 3 || cat.records[2].ID != 2 || !cat.records[1].WasDetected {
		t.Fatalf("unexpected mirrored records: %#v", cat.records)
	}
}

func TestCatalogErrorsDoNotStopSession(t *testing.T) {
	c := correlate.New()
	cat := &memoryCatalog{err: errors.New("connection refused")}
	rc := New(c, emptyBounds{}, WithCatalog(cat))

	if err := rc.Start(t.TempDir()); err != nil {
		t.Fatalf("start: %v", err)
	}
	c.OnTelemetryProduced([]byte("frame"))
	c.OnDetectionResponse(true)
	if !rc.IsRecording() {
		t.Fatalf("catalog failure stopped the session")
	}
	if rc.Status().Written != 1 {
		t.Fatalf("sample not counted")
	}
	rc.Stop()
}

func TestLateFailureFromEndedSessionIsIgnored(t *testing.T) {
	c := correlate.New()
	hookCalled := false
	rc := New(c, emptyBounds{}, WithFailureHook(func(error) { hookCalled = true }))

	if err := rc.Start(t.TempDir()); err != nil {
		t.Fatalf("start a: %v", err)
	}
	first := rc.session
	rc.Stop()
	if err := rc.Start(t.TempDir()); err != nil {
		t.Fatalf("start b: %v", err)
	}
	second := rc.Status().Session

	rc.fail(first, errors.New("disk full on first session"))

	st := rc.Status()
	if !st.Recording || st.Session != second {
		t.Fatalf("failure from ended session stopped the active one: %#v", st)
	}
	if st.LastError != "" || hookCalled {
		t.Fatalf("failure from ended session was reported: %#v hook=%v", st, hookCalled)
	}
	rc.Stop()
}

type blockingCatalog struct {
	memoryCatalog
	release chan struct{}
}

func (b *blockingCatalog) InsertSample(ctx context.Context, id string, r output.Record) error {
	<-b.release
	return b.memoryCatalog.InsertSample(ctx, id, r)
}

func TestSlowCatalogDoesNotBlockCorrelator(t *testing.T) {
	c := correlate.New()
	cat := &blockingCatalog{release: make(chan struct{})}
	rc := New(c, emptyBounds{}, WithCatalog(cat))
	if err := rc.Start(t.TempDir()); err != nil {
		t.Fatalf("start: %v", err)
	}

	done := make(chan struct{})
	go func() {
		c.OnTelemetryProduced([]byte("frame"))
		c.OnDetectionResponse(true)
		_ = c.Stats()
		_ = rc.Status()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("write blocked on the catalog")
	}

	close(cat.release)
	if err := rc.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if len(cat.records) != 1 {
		t.Fatalf("queued record not mirrored before stop returned: %d", len(cat.records))
	}
}
