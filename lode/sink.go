// Package lode persists pose history and session recordings in a Lode
// dataset.
//
// Records are JSONL, Hive-partitioned by day, session_id and record_kind.
// Storage is a filesystem root, an in-memory store (tests) or S3.
package lode

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pithecene-io/craneview/policy"
	"github.com/pithecene-io/craneview/types"
)

// DefaultDataset is the dataset ID used when none is configured.
const DefaultDataset = "craneview"

// DeriveDay computes the partition day from the session start time.
// Format: YYYY-MM-DD in UTC.
func DeriveDay(startTime time.Time) string {
	return startTime.UTC().Format("2006-01-02")
}

// Config holds the partition keys of one session's history.
type Config struct {
	// Dataset is the Lode dataset ID.
	Dataset string
	// SessionID is the partition key for the session.
	SessionID string
	// Endpoint is stored on every record for reference. Not a partition key.
	Endpoint string
	// Day is the partition key derived from session start (YYYY-MM-DD UTC).
	Day string
}

// Validate checks that every partition key is present.
func (c Config) Validate() error {
	switch {
	case c.Dataset == "":
		return errors.New("lode config: dataset is required")
	case c.SessionID == "":
		return errors.New("lode config: session id is required")
	case c.Day == "":
		return errors.New("lode config: day is required")
	}
	return nil
}

// Client abstracts the history store.
type Client interface {
	// WritePoses writes a batch of pose records. Order is preserved.
	WritePoses(ctx context.Context, recs []*types.PoseRecord) error

	// WriteSummary writes the end-of-session summary record.
	WriteSummary(ctx context.Context, summary SessionSummary) error

	// Close releases client resources.
	Close() error
}

// Sink adapts a Client to policy.Sink.
type Sink struct {
	client Client
}

// NewSink creates a new Lode sink.
func NewSink(client Client) *Sink {
	return &Sink{client: client}
}

// WriteRecords implements policy.Sink.
func (s *Sink) WriteRecords(ctx context.Context, recs []*types.PoseRecord) error {
	return s.client.WritePoses(ctx, recs)
}

// Close implements policy.Sink. It leaves the client open: the session
// summary and recording are written after the last pose flush, and the
// client's owner closes it afterwards.
func (s *Sink) Close() error {
	return nil
}

// Verify Sink implements policy.Sink.
var _ policy.Sink = (*Sink)(nil)

// StubClient records writes in memory.
type StubClient struct {
	mu        sync.Mutex
	Poses     []*types.PoseRecord
	Summaries []SessionSummary
	Closed    bool
	Err       error
}

// NewStubClient creates a new stub client.
func NewStubClient() *StubClient {
	return &StubClient{}
}

// WritePoses implements Client.
func (c *StubClient) WritePoses(_ context.Context, recs []*types.PoseRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.Poses = append(c.Poses, recs...)
	return nil
}

// WriteSummary implements Client.
func (c *StubClient) WriteSummary(_ context.Context, summary SessionSummary) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.Summaries = append(c.Summaries, summary)
	return nil
}

// Close implements Client.
func (c *StubClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Closed = true
	return nil
}

// Verify StubClient implements Client.
var _ Client = (*StubClient)(nil)
