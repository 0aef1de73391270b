// Package state holds the last-known robot state received from the backend.
//
// The store is written only by the session's inbound handler and read by the
// sync loop and render collaborators. The revision counter is the only signal
// readers use to detect a new pose; poses are never compared by value.
package state

import (
	"sync"

	"github.com/pithecene-io/craneview/types"
)

// Snapshot is a consistent point-in-time copy of the store.
type Snapshot struct {
	Dimensions  types.Dimensions
	Pose        types.Pose
	Revision    uint64
	Initialized bool
	// PendingException is the unconsumed backend exception, or empty.
	PendingException string
}

// Store is the shared robot state for one session.
// Thread-safe via sync.RWMutex.
type Store struct {
	mu sync.RWMutex

	dimensions       types.Dimensions
	pose             types.Pose
	revision         uint64
	initialized      bool
	pendingException string
}

// NewStore creates a store holding the default dimensions and resting pose
// at revision 0.
func NewStore() *Store {
	return &Store{
		dimensions: types.DefaultDimensions(),
		pose:       types.DefaultPose(),
	}
}

// SetDimensions replaces the dimensions wholesale and marks the store initialized.
func (s *Store) SetDimensions(d types.Dimensions) {
	s.mu.Lock()
	s.dimensions = d
	s.initialized = true
	s.mu.Unlock()
}

// SetPose replaces the pose wholesale and advances the revision by exactly one.
// Returns the new revision.
func (s *Store) SetPose(p types.Pose) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pose = p
	s.revision++
	return s.revision
}

// SetException buffers a backend exception, overwriting any unconsumed one.
func (s *Store) SetException(msg string) {
	s.mu.Lock()
	s.pendingException = msg
	s.mu.Unlock()
}

// TakeException returns the pending exception and clears it.
// Each buffered exception is returned exactly once; ok is false when none is pending.
func (s *Store) TakeException() (msg string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pendingException == "" {
		return "", false
	}
	msg = s.pendingException
	s.pendingException = ""
	return msg, true
}

// Revision returns the current pose revision.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Dimensions returns the current dimensions.
func (s *Store) Dimensions() types.Dimensions {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimensions
}

// Pose returns the current pose.
func (s *Store) Pose() types.Pose {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pose
}

// Initialized reports whether a dimensions frame has been received.
func (s *Store) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// PendingException returns the pending exception without consuming it.
func (s *Store) PendingException() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pendingException
}

// Snapshot returns a consistent copy of all fields.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Snapshot{
		Dimensions:       s.dimensions,
		Pose:             s.pose,
		Revision:         s.revision,
		Initialized:      s.initialized,
		PendingException: s.pendingException,
	}
}
