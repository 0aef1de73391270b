package policy

import (
	"context"

	"github.com/pithecene-io/craneview/types"
)

// StrictPolicy hands each pose to the sink as a batch of one before Ingest
// returns. A slow sink slows the caller and a sink error reaches it.
type StrictPolicy struct {
	sink  Sink
	stats *statsRecorder
}

func NewStrictPolicy(sink Sink) *StrictPolicy {
	return &StrictPolicy{sink: sink, stats: newStatsRecorder(false)}
}

func (p *StrictPolicy) Ingest(ctx context.Context, rec *types.PoseRecord) error {
	p.stats.incTotal()
	err := p.sink.WriteRecords(ctx, []*types.PoseRecord{rec})
	if err != nil {
		p.stats.incErrors()
		return err
	}
	p.stats.incPersisted(1)
	return nil
}

// Flush only counts the call; there is never anything pending.
func (p *StrictPolicy) Flush(context.Context) error {
	p.stats.incFlush()
	return nil
}

func (p *StrictPolicy) Close() error { return p.sink.Close() }

func (p *StrictPolicy) Stats() Stats { return p.stats.snapshot() }

var _ Policy = (*StrictPolicy)(nil)
