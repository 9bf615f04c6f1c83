// Package catalog mirrors written samples into PostgreSQL so datasets from
// many runs can be queried together.
package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"

	"simcapture-go/internal/output"
)

// Store manages the PostgreSQL connection. A pgx.Conn is not safe for
// concurrent use, so every call holds mu.
type Store struct {
	mu   sync.Mutex
	conn *pgx.Conn
}

// New connects and creates the schema if needed.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}
	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize catalog schema: %w", err)
	}
	return &Store{conn: conn}, nil
}

func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS capture_sessions (
			id UUID PRIMARY KEY,
			output_dir TEXT NOT NULL,
			started_at TIMESTAMPTZ DEFAULT NOW(),
			stopped_at TIMESTAMPTZ
		);
		CREATE TABLE IF NOT EXISTS capture_samples (
			session_id UUID REFERENCES capture_sessions(id),
			image_id INT NOT NULL,
			image_path TEXT NOT NULL,
			position_x DOUBLE PRECISION,
			position_y DOUBLE PRECISION,
			size_width DOUBLE PRECISION,
			size_height DOUBLE PRECISION,
			was_detected BOOLEAN NOT NULL,
			recorded_at TIMESTAMPTZ DEFAULT NOW(),
			PRIMARY KEY (session_id, image_id)
		);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

func (s *Store) Close(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.Close(ctx)
}

// BeginSession registers a recording session.
func (s *Store) BeginSession(ctx context.Context, sessionID, outputDir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.conn.Exec(ctx, `
		INSERT INTO capture_sessions (id, output_dir, started_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET output_dir = EXCLUDED.output_dir
	`, sessionID, outputDir)
	return err
}

// EndSession stamps the stop time.
func (s *Store) EndSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.conn.Exec(ctx, "UPDATE capture_sessions SET stopped_at = NOW() WHERE id = $1", sessionID)
	return err
}

// InsertSample stores one written row. Bounds columns are NULL when the
// target was not in view, matching the empty CSV fields.
func (s *Store) InsertSample(ctx context.Context, sessionID string, r output.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	x, y, w, h := boundsArgs(r)
	_, err := s.conn.Exec(ctx, `
		INSERT INTO capture_samples (session_id, image_id, image_path, position_x, position_y, size_width, size_height, was_detected)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, sessionID, r.ID, r.ImagePath, x, y, w, h, r.WasDetected)
	return err
}

// CountSamples returns how many samples a session has.
func (s *Store) CountSamples(ctx context.Context, sessionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	err := s.conn.QueryRow(ctx, "SELECT COUNT(*) FROM capture_samples WHERE session_id = $1", sessionID).Scan(&n)
	return n, err
}

func boundsArgs(r output.Record) (x, y, w, h *float64) {
	if !r.InBounds {
		return nil, nil, nil, nil
	}
	b := r.Bounds
	return &b.X, &b.Y, &b.Width, &b.Height
}
