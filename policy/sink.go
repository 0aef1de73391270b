package policy

import (
	"context"
	"slices"
	"sync"

	"github.com/pithecene-io/craneview/types"
)

// Sink is where a policy sends pose records.
type Sink interface {
	// WriteRecords stores recs in order. A failed call stores nothing the
	// caller can rely on; the policy decides what to do with the batch.
	WriteRecords(ctx context.Context, recs []*types.PoseRecord) error
	Close() error
}

// MemorySink keeps every batch in memory. Tests use it in place of a
// history store.
type MemorySink struct {
	mu      sync.Mutex
	batches [][]*types.PoseRecord
	failure error
	closed  bool
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// WriteRecords copies recs unless a failure is set.
func (s *MemorySink) WriteRecords(_ context.Context, recs []*types.PoseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	s.batches = append(s.batches, slices.Clone(recs))
	return nil
}

func (s *MemorySink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// FailWith makes later writes return err. nil clears it.
func (s *MemorySink) FailWith(err error) {
	s.mu.Lock()
	s.failure = err
	s.mu.Unlock()
}

// Revisions lists every stored revision in write order.
func (s *MemorySink) Revisions() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var revs []uint64
	for _, b := range s.batches {
		for _, r := range b {
			revs = append(revs, r.Revision)
		}
	}
	return revs
}

// BatchCount is the number of successful writes.
func (s *MemorySink) BatchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

// BatchSizes lists the record count of each successful write.
func (s *MemorySink) BatchSizes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	sizes := make([]int, len(s.batches))
	for i, b := range s.batches {
		sizes[i] = len(b)
	}
	return sizes
}

func (s *MemorySink) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
