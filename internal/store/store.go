// Package store keeps the unknown-key review queue in SQLite. It records
// sightings only; promoting a label into the vocabulary happens elsewhere.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"ctpty.durgadawaghar.com/internal/canon"
)

// Review states
const (
	StatusPending = "pending"
)

// Sighting is one queued (label, spelling) pair
type Sighting struct {
	Label         string
	Spelling      string
	Format        string
	Seen          int
	LastNarrative string
	RunID         string
	LastSeen      time.Time
}

// Store is safe for concurrent use
type Store struct {
	db  *sql.DB
	log *zap.Logger

	mu    sync.RWMutex
	runID string
}

// Open opens or creates the database at path and applies the schema
func Open(ctx context.Context, path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// SQLite has a single writer
	db.SetMaxOpenConns(1)

	s := &Store{db: db, log: log}
	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	if err := s.migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// migrate upgrades queues created before review status was tracked
func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "SELECT status FROM unknown_keys LIMIT 1"); err != nil {
		s.log.Info("migration: adding status column to unknown_keys")
		_, err = s.db.ExecContext(ctx, "ALTER TABLE unknown_keys ADD COLUMN status TEXT NOT NULL DEFAULT 'pending'")
		if err != nil {
			return fmt.Errorf("adding status column: %w", err)
		}
	}
	_, err := s.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_unknown_keys_status ON unknown_keys(status)")
	if err != nil {
		s.log.Warn("migration: could not create status index", zap.Error(err))
	}
	return nil
}

// BeginRun starts a new run and returns its id. Later sightings carry it.
func (s *Store) BeginRun(ctx context.Context, source string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (id, source, started_at) VALUES (?, ?, ?)",
		id, source, now())
	if err != nil {
		return "", fmt.Errorf("recording run: %w", err)
	}
	s.mu.Lock()
	s.runID = id
	s.mu.Unlock()
	return id, nil
}

// FinishRun stores the totals of the current run
func (s *Store) FinishRun(ctx context.Context, processed, unknown int) error {
	id := s.RunID()
	if id == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		"UPDATE runs SET finished_at = ?, processed = ?, unknown = ? WHERE id = ?",
		now(), processed, unknown, id)
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	return nil
}

// RunID returns the current run id, "" before BeginRun
func (s *Store) RunID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runID
}

// RecordUnknown upserts every (label, spelling) pair, counting repeat sightings
func (s *Store) RecordUnknown(ctx context.Context, format, narrative string, keys canon.UnknownKeys) error {
	if len(keys) == 0 {
		return nil
	}
	labels := make([]string, 0, len(keys))
	for label := range keys {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	seen := now()
	run := s.RunID()
	for _, label := range labels {
		for _, spelling := range keys[label] {
			if _, err := stmt.ExecContext(ctx, label, spelling, format, narrative, run, seen); err != nil {
				return fmt.Errorf("recording %q: %w", spelling, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing sightings: %w", err)
	}
	return nil
}

// Pending returns queued sightings, most seen first. limit <= 0 means all.
func (s *Store) Pending(ctx context.Context, limit int) ([]Sighting, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT label, spelling, format, seen, last_narrative, run_id, last_seen
		FROM unknown_keys
		WHERE status = ?
		ORDER BY seen DESC, label, spelling
		LIMIT ?`, StatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("querying pending keys: %w", err)
	}
	defer rows.Close()

	var out []Sighting
	for rows.Next() {
		var (
			sg       Sighting
			lastSeen string
		)
		if err := rows.Scan(&sg.Label, &sg.Spelling, &sg.Format, &sg.Seen, &sg.LastNarrative, &sg.RunID, &lastSeen); err != nil {
			return nil, fmt.Errorf("scanning pending key: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, lastSeen); err == nil {
			sg.LastSeen = t
		}
		out = append(out, sg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading pending keys: %w", err)
	}
	return out, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

const upsertSQL = `
INSERT INTO unknown_keys (label, spelling, format, last_narrative, run_id, first_seen, last_seen)
VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?6)
ON CONFLICT(label, spelling) DO UPDATE SET
    seen = seen + 1,
    format = excluded.format,
    last_narrative = excluded.last_narrative,
    run_id = excluded.run_id,
    last_seen = excluded.last_seen
`

const schemaSQL = `
-- runs: one row per batch or single resolve invocation
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    source TEXT,
    started_at TEXT NOT NULL,
    finished_at TEXT,
    processed INTEGER NOT NULL DEFAULT 0,
    unknown INTEGER NOT NULL DEFAULT 0
);

-- unknown_keys: labels the canonicalizer could not map, awaiting curation
CREATE TABLE IF NOT EXISTS unknown_keys (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    label TEXT NOT NULL,
    spelling TEXT NOT NULL,
    format TEXT NOT NULL DEFAULT '',
    seen INTEGER NOT NULL DEFAULT 1,
    last_narrative TEXT NOT NULL DEFAULT '',
    run_id TEXT NOT NULL DEFAULT '',
    first_seen TEXT NOT NULL,
    last_seen TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    UNIQUE(label, spelling)
);

CREATE INDEX IF NOT EXISTS idx_unknown_keys_label ON unknown_keys(label);
`
