package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/pithecene-io/craneview/adapter"
	"github.com/pithecene-io/craneview/adapter/redis"
	"github.com/pithecene-io/craneview/adapter/webhook"
	"github.com/pithecene-io/craneview/cli/config"
	"github.com/pithecene-io/craneview/lode"
	"github.com/pithecene-io/craneview/log"
	"github.com/pithecene-io/craneview/metrics"
	"github.com/pithecene-io/craneview/policy"
	"github.com/pithecene-io/craneview/record"
	"github.com/pithecene-io/craneview/types"
)

// recordingFilename is the sidecar name of a session recording in history.
const recordingFilename = "recording.msgpack"

// finishTimeout bounds the end-of-session writes and the adapter publish.
const finishTimeout = 30 * time.Second

// historyPipeline moves accepted poses into the history dataset and writes
// the session's closing records.
type historyPipeline struct {
	client *lode.LodeClient
	policy policy.Policy
	feed   *policy.PoseFeed
	path   string
}

// buildHistory returns nil when no storage backend is configured.
func buildHistory(ctx context.Context, cfg *config.Config, lcfg lode.Config, collector *metrics.Collector, logger *log.Logger) (*historyPipeline, error) {
	var (
		client *lode.LodeClient
		where  string
		err    error
	)
	switch cfg.Storage.Backend {
	case "":
		return nil, nil
	case "fs":
		client, err = lode.NewLodeClient(lcfg, cfg.Storage.Path)
		where = filepath.Join(cfg.Storage.Path, partitionPrefix(lcfg))
	case "s3":
		s3cfg := s3Config(cfg.Storage)
		client, err = lode.NewLodeS3Client(ctx, lcfg, s3cfg)
		where = "s3://" + path.Join(s3cfg.Bucket, s3cfg.Prefix, partitionPrefix(lcfg))
	default:
		return nil, fmt.Errorf("unknown storage backend: %s (must be fs or s3)", cfg.Storage.Backend)
	}
	if err != nil {
		return nil, err
	}

	sink := lode.NewInstrumentedSink(lode.NewSink(client), collector)
	pol, err := buildPolicy(cfg.Policy, sink, logger)
	if err != nil {
		return nil, err
	}

	return &historyPipeline{
		client: client,
		policy: pol,
		feed:   policy.NewPoseFeed(pol, lcfg.SessionID, cfg.Policy.Queue, logger),
		path:   where,
	}, nil
}

func partitionPrefix(lcfg lode.Config) string {
	return path.Join("datasets", lcfg.Dataset, "partitions", "day="+lcfg.Day, "session_id="+lcfg.SessionID)
}

func buildPolicy(pc config.PolicyConfig, sink policy.Sink, logger *log.Logger) (policy.Policy, error) {
	switch pc.Name {
	case "", "strict":
		return policy.NewStrictPolicy(sink), nil
	case "buffered":
		bc := policy.DefaultBufferedConfig()
		if pc.FlushCount > 0 {
			bc.FlushCount = pc.FlushCount
		}
		if pc.FlushInterval.Duration > 0 {
			bc.FlushInterval = pc.FlushInterval.Duration
		}
		bc.MaxBufferRecords = pc.MaxBuffer
		bc.Logger = logger
		return policy.NewBufferedPolicy(sink, bc)
	case "noop":
		return policy.NewNoopPolicy(), nil
	default:
		return nil, fmt.Errorf("unknown policy: %s (must be strict, buffered or noop)", pc.Name)
	}
}

// finish drains pending poses, then writes the summary and the recording.
// The recording is optional. Every step runs even if an earlier one failed.
func (h *historyPipeline) finish(ctx context.Context, summary lode.SessionSummary, recordingPath string) error {
	var errs []error
	if err := h.feed.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flush history: %w", err))
	}
	if err := h.client.WriteSummary(ctx, summary); err != nil {
		errs = append(errs, fmt.Errorf("write summary: %w", err))
	}
	if recordingPath != "" {
		data, err := os.ReadFile(recordingPath)
		if err == nil {
			err = h.client.PutSidecar(ctx, recordingFilename, data)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("upload recording: %w", err))
		}
	}
	if err := h.client.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// buildAdapter returns nil when no adapter is configured.
func buildAdapter(ac config.AdapterConfig) (adapter.Adapter, error) {
	switch ac.Type {
	case "":
		return nil, nil
	case "webhook":
		retries := webhook.DefaultRetries
		if ac.Retries != nil {
			retries = *ac.Retries
		}
		return webhook.New(webhook.Config{
			URL:     ac.URL,
			Headers: ac.Headers,
			Timeout: ac.Timeout.Duration,
			Retries: retries,
		})
	case "redis":
		retries := redis.DefaultRetries
		if ac.Retries != nil {
			retries = *ac.Retries
		}
		return redis.New(redis.Config{
			URL:     ac.URL,
			Channel: ac.Channel,
			Timeout: ac.Timeout.Duration,
			Retries: retries,
		})
	default:
		return nil, fmt.Errorf("unknown adapter type: %s (must be webhook or redis)", ac.Type)
	}
}

// openRecording creates the recording file and its writer.
func openRecording(filename string, h record.Header) (*record.Writer, error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create recording: %w", err)
	}
	w, err := record.NewWriter(f, h)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("write recording header: %w", err), f.Close())
	}
	return w, nil
}

// sessionIdentity is what every end-of-session record carries.
type sessionIdentity struct {
	SessionID string
	Endpoint  string
	StartedAt time.Time
}

func (id sessionIdentity) meta() *types.SessionMeta {
	return &types.SessionMeta{SessionID: id.SessionID, Endpoint: id.Endpoint}
}

func (id sessionIdentity) lodeConfig(dataset string) lode.Config {
	return lode.Config{
		Dataset:   dataset,
		SessionID: id.SessionID,
		Endpoint:  id.Endpoint,
		Day:       lode.DeriveDay(id.StartedAt),
	}
}
