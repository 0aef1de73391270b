package policy

import (
	"context"

	"github.com/pithecene-io/craneview/types"
)

// NoopPolicy discards every record. Used when history is disabled.
type NoopPolicy struct {
	stats *statsRecorder
}

// NewNoopPolicy creates a policy that counts and drops records.
func NewNoopPolicy() *NoopPolicy {
	return &NoopPolicy{stats: newStatsRecorder(false)}
}

// Ingest counts the record as dropped.
func (p *NoopPolicy) Ingest(_ context.Context, _ *types.PoseRecord) error {
	p.stats.incTotal()
	p.stats.incDropped(1)
	return nil
}

// Flush does nothing.
func (p *NoopPolicy) Flush(_ context.Context) error {
	return nil
}

// Close does nothing.
func (p *NoopPolicy) Close() error {
	return nil
}

// Stats returns policy statistics.
func (p *NoopPolicy) Stats() Stats {
	return p.stats.snapshot()
}

// Verify NoopPolicy implements Policy.
var _ Policy = (*NoopPolicy)(nil)
