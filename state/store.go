// Package state owns the single control-state record and its persistence.
package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rover-bridge/command"
)

// Persister durably stores snapshots.
type Persister interface {
	Save(ctx context.Context, snap Snapshot) error
}

// PersistenceError is returned by Apply and Stop when the in-memory state was
// updated but could not be written out. The snapshot returned alongside it is
// the new state.
type PersistenceError struct {
	CommandID uint64
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist state for command %d: %v", e.CommandID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Store serializes every mutation of the control state behind one mutex.
type Store struct {
	mu        sync.Mutex
	state     Snapshot
	persister Persister
	now       func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the wall clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a store holding initial. A nil persister disables
// persistence.
func NewStore(persister Persister, initial Snapshot, opts ...Option) *Store {
	s := &Store{
		state:     initial,
		persister: persister,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.state.Timestamp == 0 {
		s.state.Timestamp = s.now().Unix()
	}
	return s
}

// Apply records a derived command as the new current state.
func (s *Store) Apply(ctx context.Context, d command.Derived) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Directional = d.Flags
	s.state.Command = d.Command
	s.state.Speed = d.Speed
	s.state.Duration = d.Duration
	return s.commitLocked(ctx)
}

// Stop forces the command to stop without touching the other fields.
func (s *Store) Stop(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Command = command.Stop
	return s.commitLocked(ctx)
}

func (s *Store) commitLocked(ctx context.Context) (Snapshot, error) {
	s.state.CommandID++
	s.state.Timestamp = s.now().Unix()
	snap := s.state

	if s.persister == nil {
		return snap, nil
	}
	if err := s.persister.Save(ctx, snap); err != nil {
		return snap, &PersistenceError{CommandID: snap.CommandID, Err: err}
	}
	return snap, nil
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CurrentID returns the id of the most recently applied command.
func (s *Store) CurrentID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CommandID
}
