package state

import (
	"sync"
	"testing"

	"github.com/pithecene-io/craneview/types"
)

func TestStore_Defaults(t *testing.T) {
	s := NewStore()
	snap := s.Snapshot()

	if snap.Revision != 0 {
		t.Errorf("Revision = %d, want 0", snap.Revision)
	}
	if snap.Initialized {
		t.Error("new store should not be initialized")
	}
	if snap.Dimensions != types.DefaultDimensions() {
		t.Errorf("Dimensions = %+v", snap.Dimensions)
	}
	if snap.Pose != types.DefaultPose() {
		t.Errorf("Pose = %+v", snap.Pose)
	}
	if snap.PendingException != "" {
		t.Errorf("PendingException = %q", snap.PendingException)
	}
}

func TestStore_RevisionIncrementsByOne(t *testing.T) {
	s := NewStore()

	for i := uint64(1); i <= 5; i++ {
		p := types.DefaultPose()
		p.Theta1 = float64(i)
		if got := s.SetPose(p); got != i {
			t.Fatalf("SetPose #%d returned %d", i, got)
		}
		if s.Revision() != i {
			t.Fatalf("Revision = %d, want %d", s.Revision(), i)
		}
	}

	// Identical poses still count as new data.
	before := s.Revision()
	s.SetPose(s.Pose())
	if s.Revision() != before+1 {
		t.Errorf("Revision = %d, want %d", s.Revision(), before+1)
	}
}

func TestStore_DimensionsDoNotTouchRevision(t *testing.T) {
	s := NewStore()
	d := types.Dimensions{L1: 2, L2: 1, L3: 1, D4: -0.3, L5: 0.2, L7: 0.2}
	s.SetDimensions(d)

	if !s.Initialized() {
		t.Error("SetDimensions should mark the store initialized")
	}
	if s.Dimensions() != d {
		t.Errorf("Dimensions = %+v, want %+v", s.Dimensions(), d)
	}
	if s.Revision() != 0 {
		t.Errorf("Revision = %d, want 0", s.Revision())
	}
}

func TestStore_AtMostOneBufferedException(t *testing.T) {
	s := NewStore()
	s.SetException("Invalid request: first")
	s.SetException("Invalid request: second")

	if got := s.PendingException(); got != "Invalid request: second" {
		t.Errorf("PendingException = %q", got)
	}

	msg, ok := s.TakeException()
	if !ok || msg != "Invalid request: second" {
		t.Fatalf("TakeException = %q, %v", msg, ok)
	}

	if msg, ok := s.TakeException(); ok {
		t.Errorf("second TakeException = %q, want none", msg)
	}
}

func TestStore_ConcurrentWritersAndReaders(t *testing.T) {
	s := NewStore()
	const writes = 200

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for range writes {
			s.SetPose(types.DefaultPose())
		}
	}()
	go func() {
		defer wg.Done()
		var last uint64
		for range writes {
			rev := s.Snapshot().Revision
			if rev < last {
				t.Errorf("revision went backwards: %d -> %d", last, rev)
				return
			}
			last = rev
		}
	}()
	wg.Wait()

	if s.Revision() != writes {
		t.Errorf("Revision = %d, want %d", s.Revision(), writes)
	}
}
