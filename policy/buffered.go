package policy

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pithecene-io/craneview/log"
	"github.com/pithecene-io/craneview/types"
)

// BufferedConfig configures a BufferedPolicy.
type BufferedConfig struct {
	// FlushCount triggers a flush after N records accumulate.
	// Zero disables count-based flushing.
	FlushCount int

	// FlushInterval triggers a flush every interval.
	// Zero disables interval-based flushing.
	FlushInterval time.Duration

	// MaxBufferRecords bounds the buffer while the sink is failing. When a
	// failed flush leaves more than this many records buffered, the oldest
	// are dropped. Zero means 10x FlushCount (or 1000 without a count).
	MaxBufferRecords int

	// Logger is optional.
	Logger *log.Logger
}

// DefaultBufferedConfig returns sensible defaults for buffered policy.
func DefaultBufferedConfig() BufferedConfig {
	return BufferedConfig{
		FlushCount:    100,
		FlushInterval: 5 * time.Second,
	}
}

// ErrInvalidConfig is returned when BufferedConfig has no flush trigger.
var ErrInvalidConfig = errors.New("invalid config: at least one of FlushCount or FlushInterval must be set")

// BufferedPolicy batches records and writes them when a trigger fires.
//
//   - Count trigger: flush once FlushCount records are buffered
//   - Interval trigger: flush every FlushInterval if anything is buffered
//   - Termination: Close flushes what is left
//
// On flush failure the batch stays buffered and is retried by the next
// trigger. History is "latest wins": if the sink keeps failing, the oldest
// records are dropped once the buffer exceeds MaxBufferRecords.
//
// Thread safety:
//   - mu guards buffer state and stats
//   - flushMu serializes flushes from the interval goroutine and Ingest
type BufferedPolicy struct {
	sink   Sink
	config BufferedConfig
	logger *log.Logger

	mu      sync.Mutex
	buffer  []*types.PoseRecord
	stats   *statsRecorder
	stopped bool

	flushMu sync.Mutex
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewBufferedPolicy creates a new buffered policy.
// Returns error if config is invalid.
func NewBufferedPolicy(sink Sink, config BufferedConfig) (*BufferedPolicy, error) {
	if config.FlushCount <= 0 && config.FlushInterval <= 0 {
		return nil, ErrInvalidConfig
	}
	if config.MaxBufferRecords <= 0 {
		config.MaxBufferRecords = 1000
		if config.FlushCount > 0 {
			config.MaxBufferRecords = 10 * config.FlushCount
		}
	}

	p := &BufferedPolicy{
		sink:   sink,
		config: config,
		logger: config.Logger,
		buffer: make([]*types.PoseRecord, 0, max(config.FlushCount, 16)),
		stats:  newStatsRecorder(true),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	if config.FlushInterval > 0 {
		go p.intervalLoop()
	} else {
		close(p.doneCh)
	}
	return p, nil
}

// Ingest buffers the record and flushes if the count threshold is reached.
// Returns the flush error, if a count flush was triggered and failed.
func (p *BufferedPolicy) Ingest(ctx context.Context, rec *types.PoseRecord) error {
	p.mu.Lock()
	p.stats.incTotalLocked()
	p.buffer = append(p.buffer, rec)
	p.stats.setBufferSizeLocked(len(p.buffer))
	full := p.config.FlushCount > 0 && len(p.buffer) >= p.config.FlushCount
	p.mu.Unlock()

	if full {
		return p.flush(ctx, FlushTriggerCount)
	}
	return nil
}

// Flush writes all buffered records.
func (p *BufferedPolicy) Flush(ctx context.Context) error {
	return p.flush(ctx, FlushTriggerManual)
}

func (p *BufferedPolicy) flush(ctx context.Context, trigger FlushTrigger) error {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	p.mu.Lock()
	batch := p.buffer
	if len(batch) == 0 {
		p.mu.Unlock()
		return nil
	}
	p.buffer = make([]*types.PoseRecord, 0, max(p.config.FlushCount, 16))
	p.stats.incFlushLocked(trigger)
	p.mu.Unlock()

	if err := p.sink.WriteRecords(ctx, batch); err != nil {
		p.mu.Lock()
		p.stats.incErrorsLocked()
		// Put the batch back in front of anything ingested meanwhile.
		p.buffer = append(batch, p.buffer...)
		dropped := p.trimLocked()
		p.stats.setBufferSizeLocked(len(p.buffer))
		p.mu.Unlock()

		p.logFlushFailure(trigger, len(batch), dropped, err)
		return err
	}

	p.mu.Lock()
	p.stats.incPersistedLocked(int64(len(batch)))
	p.stats.setBufferSizeLocked(len(p.buffer))
	p.mu.Unlock()

	p.logFlush(trigger, len(batch))
	return nil
}

// trimLocked drops the oldest records beyond MaxBufferRecords. Caller must hold mu.
func (p *BufferedPolicy) trimLocked() int {
	excess := len(p.buffer) - p.config.MaxBufferRecords
	if excess <= 0 {
		return 0
	}
	p.buffer = append([]*types.PoseRecord(nil), p.buffer[excess:]...)
	p.stats.incDroppedLocked(int64(excess))
	return excess
}

// Close stops the interval goroutine, flushes and closes the sink.
// The flush error, if any, is returned ahead of the close error.
func (p *BufferedPolicy) Close() error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.stopCh)
	p.mu.Unlock()
	<-p.doneCh

	flushErr := p.flush(context.Background(), FlushTriggerTermination)
	closeErr := p.sink.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// Stats returns a snapshot taken under the buffer mutex, so counters and
// buffer size are consistent.
func (p *BufferedPolicy) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats.snapshotLocked()
}

func (p *BufferedPolicy) intervalLoop() {
	defer close(p.doneCh)
	ticker := time.NewTicker(p.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// Failures are logged and retried on the next trigger.
			_ = p.flush(context.Background(), FlushTriggerInterval)
		case <-p.stopCh:
			return
		}
	}
}

func (p *BufferedPolicy) logFlush(trigger FlushTrigger, records int) {
	if p.logger == nil {
		return
	}
	p.logger.Debug("history flush", map[string]any{
		"trigger": string(trigger),
		"records": records,
		"policy":  "buffered",
	})
}

func (p *BufferedPolicy) logFlushFailure(trigger FlushTrigger, records, dropped int, err error) {
	if p.logger == nil {
		return
	}
	p.logger.Error("history flush failed", map[string]any{
		"trigger": string(trigger),
		"records": records,
		"dropped": dropped,
		"error":   err.Error(),
		"policy":  "buffered",
	})
}

// Verify BufferedPolicy implements Policy.
var _ Policy = (*BufferedPolicy)(nil)
