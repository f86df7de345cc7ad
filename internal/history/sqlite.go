// Package history persists build manifests in SQLite.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/documentation-builder/internal/manifest"
)

// ErrNotFound is returned when no build has the requested id.
var ErrNotFound = errors.New("build not found")

// Entry is the summary row of a recorded build.
type Entry struct {
	ID          string
	Timestamp   time.Time
	Status      string
	DurationMS  int64
	Pages       int
	ContentHash string
}

// SQLiteStore records builds in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (and initialises) the database at dbPath.
// Use ":memory:" for an in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		id TEXT PRIMARY KEY,
		timestamp INTEGER NOT NULL,
		status TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		pages INTEGER NOT NULL,
		content_hash TEXT NOT NULL,
		manifest BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_builds_timestamp ON builds(timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record stores m. Recording the same id twice replaces the earlier row.
func (s *SQLiteStore) Record(ctx context.Context, m *manifest.BuildManifest) error {
	data, err := m.ToJSON()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO builds (id, timestamp, status, duration_ms, pages, content_hash, manifest)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Timestamp.UnixNano(), m.Status, m.DurationMS, m.PagesWritten(), m.ContentHash(), data,
	)
	if err != nil {
		return fmt.Errorf("insert build: %w", err)
	}
	return nil
}

// List returns up to limit builds, newest first.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, timestamp, status, duration_ms, pages, content_hash FROM builds ORDER BY timestamp DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ts int64
		if err := rows.Scan(&e.ID, &ts, &e.Status, &e.DurationMS, &e.Pages, &e.ContentHash); err != nil {
			return nil, fmt.Errorf("scan build: %w", err)
		}
		e.Timestamp = time.Unix(0, ts).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Get returns the full manifest of one build.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*manifest.BuildManifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT manifest FROM builds WHERE id = ?", id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query build: %w", err)
	}
	return manifest.FromJSON(data)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
