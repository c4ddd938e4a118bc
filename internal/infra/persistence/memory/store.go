// Package memory provides the slice-backed trajectory store used by tests and
// as the embedded base of the durable stores.
package memory

import (
	"context"
	"errors"
	"sync"

	"pramcore/pkg/domain"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("trajectory store closed")

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.TrajectoryStore = (*Store)(nil)

// Store retains iteration states in memory, in append order.
type Store struct {
	mu     sync.Mutex
	states []domain.IterationState
	closed bool
}

// NewStore constructs an empty in-memory trajectory store.
func NewStore() *Store { return &Store{} }

// AppendState records one iteration state.
func (s *Store) AppendState(_ context.Context, st domain.IterationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.states = append(s.states, st)
	return nil
}

// States returns a copy of all recorded states in append order.
func (s *Store) States(_ context.Context) ([]domain.IterationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make([]domain.IterationState, len(s.states))
	copy(out, s.states)
	return out, nil
}

// Close marks the store closed. Further operations fail with ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
