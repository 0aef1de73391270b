package lode

import (
	"context"

	"github.com/pithecene-io/craneview/metrics"
	"github.com/pithecene-io/craneview/policy"
	"github.com/pithecene-io/craneview/types"
)

// InstrumentedSink counts every batch handed to the wrapped sink as a
// history write, split by outcome.
type InstrumentedSink struct {
	next      policy.Sink
	collector *metrics.Collector
}

func NewInstrumentedSink(next policy.Sink, collector *metrics.Collector) *InstrumentedSink {
	return &InstrumentedSink{next: next, collector: collector}
}

func (s *InstrumentedSink) WriteRecords(ctx context.Context, batch []*types.PoseRecord) error {
	if err := s.next.WriteRecords(ctx, batch); err != nil {
		s.collector.IncHistoryWriteFailure()
		return err
	}
	s.collector.IncHistoryWriteSuccess()
	return nil
}

func (s *InstrumentedSink) Close() error { return s.next.Close() }

var _ policy.Sink = (*InstrumentedSink)(nil)
