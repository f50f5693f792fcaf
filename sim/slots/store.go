// Package slots keeps named board documents in a SQLite database.
package slots

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/quantum-chronometer/qchrono/sim"
)

// ErrNotFound is returned for an unknown slot name.
var ErrNotFound = errors.New("save slot not found")

// DefaultPath is used when no database path is configured.
const DefaultPath = "qchrono.db"

// Slot describes one saved board.
type Slot struct {
	Name     string
	Entities int
	Size     int
	SavedAt  time.Time
}

// Store persists board documents, one row per slot name.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// Open creates or opens the database at path. ":memory:" gives a private
// in-memory database.
func Open(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS slots (
		name TEXT PRIMARY KEY,
		payload BLOB NOT NULL,
		entities INTEGER NOT NULL,
		saved_at INTEGER NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create slots table: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes doc under name, replacing any previous save.
func (s *Store) Save(ctx context.Context, name string, doc sim.Document) error {
	data, err := sim.MarshalDocument(doc)
	if err != nil {
		return err
	}
	return s.put(ctx, name, data, len(doc.Units))
}

// Import validates raw document JSON and stores it under name.
func (s *Store) Import(ctx context.Context, name string, data []byte) error {
	d, err := sim.Decode(data)
	if err != nil {
		return fmt.Errorf("import %q: %w", name, err)
	}
	return s.put(ctx, name, data, len(d.Entities))
}

func (s *Store) put(ctx context.Context, name string, data []byte, entities int) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("slot name must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO slots(name,payload,entities,saved_at) VALUES(?,?,?,?)
		ON CONFLICT(name) DO UPDATE SET payload=excluded.payload, entities=excluded.entities, saved_at=excluded.saved_at`,
		name, data, entities, time.Now().UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("upsert slot %q: %w", name, err)
	}
	return nil
}

// Load returns the raw document saved under name.
func (s *Store) Load(ctx context.Context, name string) ([]byte, error) {
	name = strings.TrimSpace(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM slots WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("select slot %q: %w", name, err)
	}
	return data, nil
}

// List returns all slots ordered by name.
func (s *Store) List(ctx context.Context) ([]Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, entities, length(payload), saved_at FROM slots ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("select slots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Slot
	for rows.Next() {
		var sl Slot
		var savedAt int64
		if err := rows.Scan(&sl.Name, &sl.Entities, &sl.Size, &savedAt); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		sl.SavedAt = time.Unix(0, savedAt).UTC()
		out = append(out, sl)
	}
	return out, rows.Err()
}

// Delete removes a slot.
func (s *Store) Delete(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `DELETE FROM slots WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete slot %q: %w", name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return nil
}
