// Package sqlite provides a SQLite-backed trajectory store: one row per
// iteration state with a JSON payload, hydrating the embedded in-memory store
// on open.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"pramcore/internal/infra/persistence/memory"
	"pramcore/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.TrajectoryStore = (*Store)(nil)

// Store persists iteration states to a single SQLite table while serving
// reads from the embedded in-memory store.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore opens (or creates) a SQLite-backed trajectory store at path (empty
// for the default) and hydrates it from any existing rows.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "pramcore.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS trajectory (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		iter INTEGER NOT NULL,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create trajectory table: %w", err)
	}
	s := &Store{Store: memory.NewStore(), db: db, path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT payload FROM trajectory ORDER BY id`)
	if err != nil {
		return fmt.Errorf("select trajectory: %w", err)
	}
	defer func() { _ = rows.Close() }()
	ctx := context.Background()
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		var st domain.IterationState
		if err := json.Unmarshal(payload, &st); err != nil {
			return fmt.Errorf("decode state: %w", err)
		}
		if err := s.Store.AppendState(ctx, st); err != nil {
			return err
		}
	}
	return rows.Err()
}

// AppendState records the state in memory and inserts its JSON payload as a
// new row.
func (s *Store) AppendState(ctx context.Context, st domain.IterationState) error {
	if err := s.Store.AppendState(ctx, st); err != nil {
		return err
	}
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, `INSERT INTO trajectory(iter, payload) VALUES(?, ?)`, st.Iter, payload); err != nil {
		return fmt.Errorf("insert state: %w", err)
	}
	return nil
}

// Close closes the embedded store and the database handle.
func (s *Store) Close() error {
	_ = s.Store.Close()
	return s.db.Close()
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
