package policy_test

import (
	"errors"
	"testing"

	"github.com/pithecene-io/craneview/policy"
	"github.com/pithecene-io/craneview/types"
)

func poseRecord(rev uint64) *types.PoseRecord {
	return &types.PoseRecord{SessionID: "sess-1", Revision: rev}
}

func TestStrictPolicy_Ingest_ImmediateWrite(t *testing.T) {
	sink := policy.NewMemorySink()
	pol := policy.NewStrictPolicy(sink)

	for rev := uint64(1); rev <= 3; rev++ {
		if err := pol.Ingest(t.Context(), poseRecord(rev)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if sink.BatchCount() != 3 {
		t.Errorf("expected 3 batches of 1, got %d", sink.BatchCount())
	}
	got := sink.Revisions()
	for i, rev := range []uint64{1, 2, 3} {
		if got[i] != rev {
			t.Errorf("revision[%d] = %d, want %d", i, got[i], rev)
		}
	}

	stats := pol.Stats()
	if stats.TotalRecords != 3 || stats.RecordsPersisted != 3 || stats.RecordsDropped != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.FlushTriggers != nil {
		t.Errorf("strict policy should not report flush triggers, got %v", stats.FlushTriggers)
	}
}

func TestStrictPolicy_SinkError(t *testing.T) {
	sink := policy.NewMemorySink()
	sinkErr := errors.New("sink failure")
	sink.FailWith(sinkErr)
	pol := policy.NewStrictPolicy(sink)

	err := pol.Ingest(t.Context(), poseRecord(1))
	if !errors.Is(err, sinkErr) {
		t.Fatalf("expected sink error, got %v", err)
	}

	stats := pol.Stats()
	if stats.Errors != 1 {
		t.Errorf("Errors = %d, want 1", stats.Errors)
	}
	if stats.RecordsPersisted != 0 {
		t.Errorf("RecordsPersisted = %d, want 0", stats.RecordsPersisted)
	}
}

func TestStrictPolicy_FlushAndClose(t *testing.T) {
	sink := policy.NewMemorySink()
	pol := policy.NewStrictPolicy(sink)

	if err := pol.Flush(t.Context()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if pol.Stats().FlushCount != 1 {
		t.Errorf("FlushCount = %d, want 1", pol.Stats().FlushCount)
	}
	if err := pol.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !sink.IsClosed() {
		t.Error("Close should close the sink")
	}
}
