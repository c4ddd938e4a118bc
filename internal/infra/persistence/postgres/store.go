// Package postgres provides a Postgres-backed trajectory store that mirrors
// the in-memory semantics, persisting one JSONB row per iteration state.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"pramcore/internal/infra/persistence/memory"
	"pramcore/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.TrajectoryStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/pramcore?sslmode=disable"
)

var sqlOpen = sql.Open

// Store persists iteration states to Postgres while serving reads from the
// embedded in-memory store.
type Store struct {
	*memory.Store
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens a Postgres-backed trajectory store using the provided DSN
// (falls back to defaultDSN), ensures the trajectory table exists and
// hydrates the in-memory store from existing rows.
func NewStore(dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	db, err := sqlOpen(defaultDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS trajectory (
		id BIGSERIAL PRIMARY KEY,
		iter INTEGER NOT NULL,
		payload JSONB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create trajectory table: %w", err)
	}
	s := &Store{Store: memory.NewStore(), db: db}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM trajectory ORDER BY id`)
	if err != nil {
		return fmt.Errorf("select trajectory: %w", err)
	}
	defer func() { _ = rows.Close() }()
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
	if _, err := s.db.ExecContext(ctx, `INSERT INTO trajectory(iter, payload) VALUES($1, $2)`, st.Iter, payload); err != nil {
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
