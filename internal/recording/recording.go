// Package recording starts and stops capture sessions.
package recording

import (
	"context"
	"errors"
	"log"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"simcapture-go/internal/correlate"
	"simcapture-go/internal/output"
	"simcapture-go/internal/sample"
)

var ErrAlreadyRecording = correlate.ErrAlreadyRecording

// Catalog receives a copy of every written record.
type Catalog interface {
	BeginSession(ctx context.Context, sessionID, outputDir string) error
	InsertSample(ctx context.Context, sessionID string, r output.Record) error
	EndSession(ctx context.Context, sessionID string) error
}

type Status struct {
	Recording bool   `json:"recording"`
	Session   string `json:"session,omitempty"`
	Dir       string `json:"dir,omitempty"`
	Written   uint64 `json:"written"`
	LastError string `json:"last_error,omitempty"`
}

type Controller struct {
	correlator *correlate.Correlator
	bounds     output.BoundsSource
	catalog    Catalog

	mu        sync.Mutex
	session   *session
	lastError error
	onFailure func(error)
}

type Option func(*Controller)

// WithCatalog mirrors records into c. Catalog errors are logged only.
func WithCatalog(c Catalog) Option {
	return func(rc *Controller) { rc.catalog = c }
}

// WithFailureHook registers fn to be called after a storage failure has
// stopped the session.
func WithFailureHook(fn func(error)) Option {
	return func(rc *Controller) { rc.onFailure = fn }
}

func New(c *correlate.Correlator, bounds output.BoundsSource, opts ...Option) *Controller {
	rc := &Controller{correlator: c, bounds: bounds}
	for _, opt := range opts {
		opt(rc)
	}
	c.OnFailure(rc.fail)
	return rc
}

// Start opens a new dataset in dir and binds it to the correlator.
func (rc *Controller) Start(dir string) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.session != nil {
		return ErrAlreadyRecording
	}

	w, err := output.OpenSampleWriter(dir, rc.bounds)
	if err != nil {
		return err
	}
	s := &session{
		id:     uuid.NewString(),
		dir:    dir,
		writer: w,
	}
	if rc.catalog != nil {
		err := withCatalogTimeout(func(ctx context.Context) error {
			return rc.catalog.BeginSession(ctx, s.id, filepath.Dir(w.ImageDir()))
		})
		if err != nil {
			log.Printf("recording: catalog begin session %s: %v", s.id, err)
		}
		s.startMirror(rc.catalog)
	}
	// The mirror must exist before the correlator can call Write.
	if err := rc.correlator.Begin(s); err != nil {
		s.stopMirror()
		_ = w.Close()
		return err
	}
	rc.session = s
	rc.lastError = nil
	log.Printf("recording: started session %s in %s", s.id, dir)
	return nil
}

// Stop discards any pending sample and closes the dataset. Safe when idle.
func (rc *Controller) Stop() error {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.stopLocked()
}

func (rc *Controller) stopLocked() error {
	if rc.session == nil {
		return nil
	}
	s := rc.session
	rc.session = nil
	rc.correlator.End()

	err := s.writer.Close()
	s.stopMirror()
	if rc.catalog != nil {
		cerr := withCatalogTimeout(func(ctx context.Context) error {
			return rc.catalog.EndSession(ctx, s.id)
		})
		if cerr != nil {
			log.Printf("recording: catalog end session %s: %v", s.id, cerr)
		}
	}
	log.Printf("recording: stopped session %s (%d samples)", s.id, s.written.Load())
	return err
}

func (rc *Controller) IsRecording() bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.session != nil
}

// Dir returns the active output directory, or "" when idle.
func (rc *Controller) Dir() string {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.session == nil {
		return ""
	}
	return rc.session.dir
}

func (rc *Controller) Status() Status {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	st := Status{}
	if rc.lastError != nil {
		st.LastError = rc.lastError.Error()
	}
	if rc.session != nil {
		st.Recording = true
		st.Session = rc.session.id
		st.Dir = rc.session.dir
		st.Written = rc.session.written.Load()
	}
	return st
}

// fail handles a write error reported by the correlator. A failure from a
// session that has already been replaced is logged and otherwise ignored.
func (rc *Controller) fail(failing correlate.Sink, err error) {
	rc.mu.Lock()
	if rc.session == nil || correlate.Sink(rc.session) != failing {
		rc.mu.Unlock()
		log.Printf("recording: storage failure from an ended session ignored: %v", err)
		return
	}
	log.Printf("recording: storage failure, stopping session %s: %v", rc.session.id, err)
	rc.lastError = err
	if cerr := rc.stopLocked(); cerr != nil && !errors.Is(cerr, output.ErrWriterClosed) {
		log.Printf("recording: close after failure: %v", cerr)
	}
	hook := rc.onFailure
	rc.mu.Unlock()
	if hook != nil {
		hook(err)
	}
}

// mirrorQueueSize bounds how many records may wait for the catalog.
const mirrorQueueSize = 256

type session struct {
	id      string
	dir     string
	writer  *output.SampleWriter
	written atomic.Uint64

	mirror        chan output.Record
	mirrorDone    chan struct{}
	mirrorDropped atomic.Uint64
}

// Write runs under the correlator lock, so catalog inserts are handed to the
// mirror goroutine instead of running here.
func (s *session) Write(resolved sample.Resolved) error {
	record, err := s.writer.Write(resolved)
	if err != nil {
		return err
	}
	s.written.Add(1)
	if s.mirror != nil {
		select {
		case s.mirror <- record:
		default:
			n := s.mirrorDropped.Add(1)
			log.Printf("recording: catalog queue full, record %d not mirrored (%d dropped)", record.ID, n)
		}
	}
	return nil
}

func (s *session) startMirror(catalog Catalog) {
	s.mirror = make(chan output.Record, mirrorQueueSize)
	s.mirrorDone = make(chan struct{})
	go func() {
		defer close(s.mirrorDone)
		for record := range s.mirror {
			err := withCatalogTimeout(func(ctx context.Context) error {
				return catalog.InsertSample(ctx, s.id, record)
			})
			if err != nil {
				log.Printf("recording: catalog insert %d: %v", record.ID, err)
			}
		}
	}()
}

// stopMirror waits for queued records to reach the catalog. Call it only after
// the session has been detached from the correlator.
func (s *session) stopMirror() {
	if s.mirror == nil {
		return
	}
	close(s.mirror)
	<-s.mirrorDone
}

const catalogTimeout = 5 * time.Second

func withCatalogTimeout(fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), catalogTimeout)
	defer cancel()
	return fn(ctx)
}
