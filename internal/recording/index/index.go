// Package index provides the queryable metadata collection of recordings,
// backed by SQLite. The index is a cache over the filesystem: it is
// authoritative for nothing and is converged by the reconcile service.
package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/voxvault/voxvault/internal/recording"
)

// ErrPersistence marks failures flushing the index to its backing store.
// In-memory state and pending changes survive a failed commit so the caller
// may retry.
var ErrPersistence = errors.New("index persistence failure")

// DBFileName is the index database file within the marker directory.
const DBFileName = "index.sqlite"

const schema = `
CREATE TABLE IF NOT EXISTS recordings (
	id               TEXT PRIMARY KEY,
	title            TEXT NOT NULL,
	created_at       INTEGER NOT NULL,
	duration_seconds REAL NOT NULL,
	transcription    TEXT,
	analysis_raw     TEXT
);
`

type pendingOp int

const (
	opUpsert pendingOp = iota
	opDelete
)

// Index is an addressable collection of recording entities keyed by id.
// Mutations accumulate in memory and flush in one transaction on Commit.
// It is single-writer: the owning goroutine mutates, any goroutine may read.
type Index struct {
	mu       sync.RWMutex
	db       *sql.DB
	entries  map[string]*recording.Entity
	pending  map[string]pendingOp
	onChange func()
}

// Open opens (creating if needed) the index database at path and loads all
// rows into memory.
func Open(path string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open index database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	ix := &Index{
		db:      db,
		entries: make(map[string]*recording.Entity),
		pending: make(map[string]pendingOp),
	}
	if err := ix.load(); err != nil {
		db.Close()
		return nil, err
	}
	return ix, nil
}

// Close closes the backing database. Pending changes are discarded.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// SetOnChange registers a callback fired after each successful Commit that
// flushed at least one change. Replaces the global refresh broadcast the
// UI layer used to rely on.
func (ix *Index) SetOnChange(fn func()) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.onChange = fn
}

// Upsert inserts or overwrites the entity keyed by its id.
func (ix *Index) Upsert(e *recording.Entity) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.entries[e.ID] = e.Clone()
	ix.pending[e.ID] = opUpsert
}

// Remove deletes by id; removing an absent id is a no-op.
func (ix *Index) Remove(id string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, ok := ix.entries[id]; !ok {
		return
	}
	delete(ix.entries, id)
	ix.pending[id] = opDelete
}

// Find returns a copy of the entity for id.
func (ix *Index) Find(id string) (*recording.Entity, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	e, ok := ix.entries[id]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// All returns copies of every entity in unspecified order. Callers sort by
// CreatedAt as needed.
func (ix *Index) All() []*recording.Entity {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]*recording.Entity, 0, len(ix.entries))
	for _, e := range ix.entries {
		out = append(out, e.Clone())
	}
	return out
}

// Len returns the number of indexed recordings.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// HasPendingChanges reports whether Commit would write anything.
func (ix *Index) HasPendingChanges() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.pending) > 0
}

// Commit flushes all batched changes in one transaction. On failure the
// in-memory state and pending set are retained and the error wraps
// ErrPersistence.
func (ix *Index) Commit(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if len(ix.pending) == 0 {
		return nil
	}

	if err := ix.flush(ctx); err != nil {
		return fmt.Errorf("commit index: %w", errors.Join(ErrPersistence, err))
	}

	ix.pending = make(map[string]pendingOp)
	if ix.onChange != nil {
		// Fire outside the lock so callbacks may read the index.
		fn := ix.onChange
		go fn()
	}
	return nil
}

func (ix *Index) flush(ctx context.Context) error {
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	upsert, err := tx.PrepareContext(ctx, `
		INSERT INTO recordings (id, title, created_at, duration_seconds, transcription, analysis_raw)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			created_at = excluded.created_at,
			duration_seconds = excluded.duration_seconds,
			transcription = excluded.transcription,
			analysis_raw = excluded.analysis_raw
	`)
	if err != nil {
		return err
	}
	defer upsert.Close()

	del, err := tx.PrepareContext(ctx, `DELETE FROM recordings WHERE id = ?`)
	if err != nil {
		return err
	}
	defer del.Close()

	for id, op := range ix.pending {
		switch op {
		case opUpsert:
			e := ix.entries[id]
			if e == nil {
				continue
			}
			if _, err := upsert.ExecContext(ctx, e.ID, e.Title, e.CreatedAt.Unix(),
				e.DurationSeconds, nullable(e.Transcription), nullable(e.AnalysisRaw)); err != nil {
				return err
			}
		case opDelete:
			if _, err := del.ExecContext(ctx, id); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

func (ix *Index) load() error {
	rows, err := ix.db.Query(`
		SELECT id, title, created_at, duration_seconds, transcription, analysis_raw
		FROM recordings
	`)
	if err != nil {
		return fmt.Errorf("load index: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e recording.Entity
		var createdAt int64
		var transcription, analysisRaw sql.NullString
		if err := rows.Scan(&e.ID, &e.Title, &createdAt, &e.DurationSeconds,
			&transcription, &analysisRaw); err != nil {
			return fmt.Errorf("scan recording: %w", err)
		}
		e.CreatedAt = time.Unix(createdAt, 0)
		if transcription.Valid {
			t := transcription.String
			e.Transcription = &t
		}
		if analysisRaw.Valid {
			a := analysisRaw.String
			e.AnalysisRaw = &a
		}
		ix.entries[e.ID] = &e
	}
	return rows.Err()
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
