package lode

import (
	"context"
	"fmt"
	"sync"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/craneview/types"
)

// partitionKeys is the Hive layout shared by the write and read paths.
var partitionKeys = []string{"day", "session_id", "record_kind"}

// LodeClient is a Lode-backed implementation of Client.
type LodeClient struct {
	dataset lode.Dataset
	config  Config

	// Sidecar file writes go straight to the store.
	storeFactory lode.StoreFactory
	storeOnce    sync.Once
	store        lode.Store
	storeErr     error

	mu           sync.Mutex // serializes dataset writes
	lastRevision uint64
}

// NewLodeClient creates a new Lode client with filesystem storage.
// The root parameter is the base directory for Hive-partitioned storage.
func NewLodeClient(cfg Config, root string) (*LodeClient, error) {
	return NewLodeClientWithFactory(cfg, lode.NewFSFactory(root))
}

// NewLodeClientWithFactory creates a new Lode client with a custom store factory.
// Use lode.NewMemoryFactory() for testing.
func NewLodeClientWithFactory(cfg Config, factory lode.StoreFactory) (*LodeClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ds, err := newDataset(cfg.Dataset, factory)
	if err != nil {
		return nil, WrapInitError(err, cfg.Dataset)
	}
	return newClient(ds, cfg, factory), nil
}

func newClient(ds lode.Dataset, cfg Config, factory lode.StoreFactory) *LodeClient {
	return &LodeClient{
		dataset:      ds,
		config:       cfg,
		storeFactory: factory,
	}
}

func newDataset(id string, factory lode.StoreFactory) (lode.Dataset, error) {
	return lode.NewDataset(
		lode.DatasetID(id),
		factory,
		lode.WithHiveLayout(partitionKeys...),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
}

// WritePoses writes a batch of pose records as one snapshot.
// Records must belong to the configured session and arrive in increasing
// revision order across calls; a stale batch is rejected so history never
// goes backwards.
func (c *LodeClient) WritePoses(ctx context.Context, recs []*types.PoseRecord) error {
	if len(recs) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	last := c.lastRevision
	records := make([]any, 0, len(recs))
	for _, rec := range recs {
		if rec.SessionID != c.config.SessionID {
			return fmt.Errorf("%w: record session %q, client session %q",
				ErrSessionMismatch, rec.SessionID, c.config.SessionID)
		}
		if rec.Revision <= last {
			return fmt.Errorf("%w: revision %d after %d", ErrStaleRevision, rec.Revision, last)
		}
		last = rec.Revision
		records = append(records, toPoseRecordMap(rec, c.config))
	}

	if _, err := c.dataset.Write(ctx, records, lode.Metadata{}); err != nil {
		return WrapWriteError(err, c.partitionPath(RecordKindPose))
	}
	c.lastRevision = last
	return nil
}

// WriteSummary writes the session summary record.
func (c *LodeClient) WriteSummary(ctx context.Context, summary SessionSummary) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	record := toSummaryRecordMap(summary, c.config)
	if _, err := c.dataset.Write(ctx, []any{record}, lode.Metadata{}); err != nil {
		return WrapWriteError(err, c.partitionPath(RecordKindSummary))
	}
	return nil
}

// Close releases client resources.
func (c *LodeClient) Close() error {
	// Dataset doesn't require explicit close in current Lode API
	return nil
}

// partitionPath is the Hive partition of this session for the given kind.
// Used to label storage errors.
func (c *LodeClient) partitionPath(kind string) string {
	return fmt.Sprintf("%s/day=%s/session_id=%s/record_kind=%s",
		c.config.Dataset, c.config.Day, c.config.SessionID, kind)
}

// Verify LodeClient implements Client.
var _ Client = (*LodeClient)(nil)
