package output

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"simcapture-go/internal/entity"
	"simcapture-go/internal/projection"
	"simcapture-go/internal/sample"
)

const (
	IndexFileName = "output_log.csv"
	ImageDirName  = "IMG"

	delimiter = ","
	header    = "Image,Position (X),Position (Y),Size (Width),Size (Height),Was Detected"
)

var ErrWriterClosed = errors.New("sample writer is closed")

// BoundsSource recomputes viewport bounds for a tracked target at write time.
type BoundsSource interface {
	Project(target entity.Handle) projection.Bounds
}

// Record describes one written row.
type Record struct {
	ID          int
	ImagePath   string
	Bounds      projection.Bounds
	InBounds    bool
	WasDetected bool
}

// SampleWriter appends resolved samples to output_log.csv and stores each
// image as IMG/<id>.jpg.
type SampleWriter struct {
	mu            sync.Mutex
	f             *os.File
	w             *bufio.Writer
	imageDir      string
	ids           IDGenerator
	headerWritten bool
	bounds        BoundsSource
}

func OpenSampleWriter(outputDir string, bounds BoundsSource) (*SampleWriter, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, err
	}
	absDir, err := filepath.Abs(outputDir)
	if err != nil {
		return nil, err
	}
	imageDir := filepath.Join(absDir, ImageDirName)
	if err := os.MkdirAll(imageDir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(filepath.Join(absDir, IndexFileName))
	if err != nil {
		return nil, err
	}
	return &SampleWriter{
		f:        f,
		w:        bufio.NewWriter(f),
		imageDir: imageDir,
		bounds:   bounds,
	}, nil
}

// ImageDir returns the absolute directory images are written to.
func (s *SampleWriter) ImageDir() string {
	return s.imageDir
}

// Write stores the image, then appends its row. The id is consumed even when
// the write fails.
func (s *SampleWriter) Write(resolved sample.Resolved) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return Record{}, ErrWriterClosed
	}

	id := s.ids.Next()
	imagePath := filepath.Join(s.imageDir, strconv.Itoa(id)+".jpg")
	if err := os.WriteFile(imagePath, resolved.Image(), 0o644); err != nil {
		return Record{}, fmt.Errorf("write image %d: %w", id, err)
	}

	if !s.headerWritten {
		if _, err := s.w.WriteString(header + "\n"); err != nil {
			return Record{}, err
		}
		s.headerWritten = true
	}

	bounds := projection.Empty
	if s.bounds != nil {
		bounds = s.bounds.Project(resolved.Target())
	}
	record := Record{
		ID:          id,
		ImagePath:   imagePath,
		Bounds:      bounds,
		InBounds:    bounds.InBounds(),
		WasDetected: resolved.WasDetected(),
	}

	if _, err := s.w.WriteString(formatRow(record)); err != nil {
		return Record{}, err
	}
	if err := s.w.Flush(); err != nil {
		return Record{}, err
	}
	return record, nil
}

func (s *SampleWriter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return nil
	}
	if err := s.w.Flush(); err != nil {
		_ = s.f.Close()
		s.w = nil
		return err
	}
	err := s.f.Close()
	s.w = nil
	return err
}

func formatRow(r Record) string {
	row := r.ImagePath + delimiter
	if r.InBounds {
		row += formatFloat(r.Bounds.X) + delimiter +
			formatFloat(r.Bounds.Y) + delimiter +
			formatFloat(r.Bounds.Width) + delimiter +
			formatFloat(r.Bounds.Height)
	} else {
		row += delimiter + delimiter + delimiter
	}
	return row + delimiter + formatBool(r.WasDetected) + "\n"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatBool(v bool) string {
	if v {
		return "True"
	}
	return "False"
}
