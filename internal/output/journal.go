package output

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"simcapture-go/internal/types"
)

const JournalMagic = "SIMCJRN1"

// MaxJournalRecord bounds a single record so a corrupt length cannot force a
// huge allocation.
const MaxJournalRecord = 64 << 20

const (
	DirectionInbound  = "in"
	DirectionOutbound = "out"
)

// JournalEntry is one controller message as stored in the journal.
type JournalEntry struct {
	Time      time.Time   `cbor:"-"`
	Session   string      `cbor:"session,omitempty"`
	Direction string      `cbor:"dir"`
	Event     types.Event `cbor:"event"`
}

// JournalWriter records every controller message to a length-prefixed CBOR
// log so a run can be inspected or replayed later.
type JournalWriter struct {
	mu   sync.Mutex
	f    *os.File
	w    *bufio.Writer
	path string
}

func NewJournalWriter(outputDir string, prefix string) (*JournalWriter, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, err
	}
	timestamp := time.Now().Format("20060102_150405")
	filename := filepath.Join(outputDir, fmt.Sprintf("%s_%s.bin", timestamp, prefix))
	f, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	w := bufio.NewWriterSize(f, 1024*1024)
	if _, err := w.WriteString(JournalMagic); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &JournalWriter{
		f:    f,
		w:    w,
		path: filename,
	}, nil
}

func (j *JournalWriter) Path() string {
	return j.path
}

func (j *JournalWriter) Record(entry JournalEntry) error {
	payload, err := cbor.Marshal(entry)
	if err != nil {
		return err
	}
	if len(payload) > MaxJournalRecord {
		return fmt.Errorf("journal record of %d bytes exceeds %d", len(payload), MaxJournalRecord)
	}
	if entry.Time.IsZero() {
		entry.Time = time.Now()
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.w == nil {
		return fmt.Errorf("journal writer is closed")
	}
	var header [12]byte
	binary.LittleEndian.PutUint64(header[:8], uint64(entry.Time.UnixNano()))
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(payload)))
	if _, err := j.w.Write(header[:]); err != nil {
		return err
	}
	if _, err := j.w.Write(payload); err != nil {
		return err
	}
	return j.w.Flush()
}

func (j *JournalWriter) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.w == nil {
		return nil
	}
	if err := j.w.Flush(); err != nil {
		_ = j.f.Close()
		j.w = nil
		return err
	}
	err := j.f.Close()
	j.w = nil
	return err
}

// ReadJournal decodes entries from r in order, stopping after limit entries
// when limit > 0. A truncated trailing record ends the read without error.
func ReadJournal(r io.Reader, limit int, fn func(JournalEntry) error) error {
	magic := make([]byte, len(JournalMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return fmt.Errorf("read magic: %w", err)
	}
	if string(magic) != JournalMagic {
		return fmt.Errorf("unexpected journal magic %q", string(magic))
	}

	count := 0
	for limit <= 0 || count < limit {
		var meta [12]byte
		if _, err := io.ReadFull(r, meta[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return fmt.Errorf("read record header: %w", err)
		}
		ts := int64(binary.LittleEndian.Uint64(meta[:8]))
		size := binary.LittleEndian.Uint32(meta[8:12])
		if size > MaxJournalRecord {
			return fmt.Errorf("record %d: length %d exceeds %d bytes", count, size, MaxJournalRecord)
		}
		payload := make([]byte, size)
		if _, err := io.ReadFull(r, payload); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read payload: %w", err)
		}

		var entry JournalEntry
		if err := cbor.Unmarshal(payload, &entry); err != nil {
			return fmt.Errorf("record %d: %w", count, err)
		}
		entry.Time = time.Unix(0, ts)
		entry.Event.Data = normalizeMap(entry.Event.Data)
		if err := fn(entry); err != nil {
			return err
		}
		count++
	}
	return nil
}

// NormalizeJSONValue converts CBOR-decoded values (which may contain
// map[any]any) into shapes encoding/json accepts.
func NormalizeJSONValue(value any) any {
	switch v := value.(type) {
	case map[any]any:
		out := make(map[string]any, len(v))
		for key, inner := range v {
			out[fmt.Sprint(key)] = NormalizeJSONValue(inner)
		}
		return out
	case map[string]any:
		return normalizeMap(v)
	case []any:
		out := make([]any, len(v))
		for i, inner := range v {
			out[i] = NormalizeJSONValue(inner)
		}
		return out
	case []byte:
		return fmt.Sprintf("<%d bytes>", len(v))
	default:
		return v
	}
}

func normalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for key, inner := range m {
		out[key] = NormalizeJSONValue(inner)
	}
	return out
}
