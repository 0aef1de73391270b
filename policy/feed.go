package policy

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pithecene-io/craneview/log"
	"github.com/pithecene-io/craneview/session"
	"github.com/pithecene-io/craneview/types"
)

// DefaultFeedQueue is the PoseFeed queue length when none is given.
const DefaultFeedQueue = 256

// PoseFeed moves accepted poses from the session's read loop into a Policy.
// It satisfies session.PoseObserver. ObservePose never blocks: records are
// queued and ingested on a worker goroutine, and dropped if the queue is
// full.
type PoseFeed struct {
	policy    Policy
	sessionID string
	logger    *log.Logger

	queue chan *types.PoseRecord
	done  chan struct{}

	mu      sync.Mutex
	closed  bool
	err     error
	dropped atomic.Int64
}

// NewPoseFeed starts a feed into p. queueSize <= 0 uses DefaultFeedQueue.
func NewPoseFeed(p Policy, sessionID string, queueSize int, logger *log.Logger) *PoseFeed {
	if queueSize <= 0 {
		queueSize = DefaultFeedQueue
	}
	if logger == nil {
		logger = log.NewNop()
	}
	f := &PoseFeed{
		policy:    p,
		sessionID: sessionID,
		logger:    logger,
		queue:     make(chan *types.PoseRecord, queueSize),
		done:      make(chan struct{}),
	}
	go f.run()
	return f
}

// ObservePose queues one pose for history.
func (f *PoseFeed) ObservePose(receivedAt time.Time, revision uint64, pose types.Pose) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}

	rec := types.NewPoseRecord(f.sessionID, revision, receivedAt, pose)
	select {
	case f.queue <- rec:
	default:
		if f.dropped.Add(1) == 1 {
			f.logger.Warn("history queue full, dropping poses", map[string]any{"revision": revision})
		}
	}
}

// Dropped returns the number of poses dropped because the queue was full.
func (f *PoseFeed) Dropped() int64 {
	return f.dropped.Load()
}

// Err returns the first ingest error.
func (f *PoseFeed) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Close drains the queue, then closes the policy. ctx bounds the drain.
func (f *PoseFeed) Close(ctx context.Context) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return f.Err()
	}
	f.closed = true
	close(f.queue)
	f.mu.Unlock()

	select {
	case <-f.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	closeErr := f.policy.Close()
	if err := f.Err(); err != nil {
		return err
	}
	return closeErr
}

func (f *PoseFeed) run() {
	defer close(f.done)
	for rec := range f.queue {
		if err := f.policy.Ingest(context.Background(), rec); err != nil {
			f.logger.Error("history ingest failed", map[string]any{
				"revision": rec.Revision,
				"error":    err.Error(),
			})
			f.mu.Lock()
			if f.err == nil {
				f.err = err
			}
			f.mu.Unlock()
		}
	}
}

var _ session.PoseObserver = (*PoseFeed)(nil)
