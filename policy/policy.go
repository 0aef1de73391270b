// Package policy decides when accepted poses are persisted to history.
//
// Every policy receives PoseRecords in revision order and forwards them to a
// Sink. Strict writes each record as it arrives; Buffered batches records by
// count and interval; Noop counts and discards.
package policy

import (
	"context"
	"maps"
	"sync"

	"github.com/pithecene-io/craneview/types"
)

// Policy sits between the sync loop and a Sink.
type Policy interface {
	// Ingest takes one record; callers pass records in revision order.
	// Synchronous policies return the sink's error.
	Ingest(ctx context.Context, rec *types.PoseRecord) error
	Flush(ctx context.Context) error
	// Close drains what is pending, then closes the sink.
	Close() error
	Stats() Stats
}

// FlushTrigger says why a buffered policy wrote a batch.
type FlushTrigger string

const (
	FlushTriggerCount       FlushTrigger = "count"
	FlushTriggerInterval    FlushTrigger = "interval"
	FlushTriggerManual      FlushTrigger = "manual"
	FlushTriggerTermination FlushTrigger = "termination"
)

// Stats are the counters a policy exposes. BufferSize is a gauge.
type Stats struct {
	TotalRecords     int64
	RecordsPersisted int64
	RecordsDropped   int64
	BufferSize       int64
	FlushCount       int64
	// FlushTriggers is nil unless the policy buffers.
	FlushTriggers map[FlushTrigger]int64
	Errors        int64
}

// statsRecorder guards Stats with its own mutex. The *Locked variants skip
// it and are only called by BufferedPolicy under BufferedPolicy.mu.
type statsRecorder struct {
	mu    sync.Mutex
	stats Stats
}

func newStatsRecorder(withTriggers bool) *statsRecorder {
	r := &statsRecorder{}
	if withTriggers {
		r.stats.FlushTriggers = make(map[FlushTrigger]int64)
	}
	return r
}

func (r *statsRecorder) incTotal() {
	r.mu.Lock()
	r.stats.TotalRecords++
	r.mu.Unlock()
}

func (r *statsRecorder) incPersisted(n int64) {
	r.mu.Lock()
	r.stats.RecordsPersisted += n
	r.mu.Unlock()
}

func (r *statsRecorder) incDropped(n int64) {
	r.mu.Lock()
	r.stats.RecordsDropped += n
	r.mu.Unlock()
}

func (r *statsRecorder) incErrors() {
	r.mu.Lock()
	r.stats.Errors++
	r.mu.Unlock()
}

func (r *statsRecorder) incFlush() {
	r.mu.Lock()
	r.stats.FlushCount++
	r.mu.Unlock()
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *statsRecorder) incTotalLocked() {
	r.stats.TotalRecords++
}

func (r *statsRecorder) incPersistedLocked(n int64) {
	r.stats.RecordsPersisted += n
}

func (r *statsRecorder) incDroppedLocked(n int64) {
	r.stats.RecordsDropped += n
}

func (r *statsRecorder) incErrorsLocked() {
	r.stats.Errors++
}

func (r *statsRecorder) incFlushLocked(trigger FlushTrigger) {
	r.stats.FlushCount++
	r.stats.FlushTriggers[trigger]++
}

func (r *statsRecorder) setBufferSizeLocked(n int) {
	r.stats.BufferSize = int64(n)
}

func (r *statsRecorder) snapshotLocked() Stats {
	s := r.stats
	if r.stats.FlushTriggers != nil {
		s.FlushTriggers = maps.Clone(r.stats.FlushTriggers)
	}
	return s
}
