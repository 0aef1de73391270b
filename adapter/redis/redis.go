// Package redis announces session-ended events on a Redis channel and keeps
// the last event of each session under a key for consumers that subscribe
// late.
package redis

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pithecene-io/craneview/adapter"
)

const (
	DefaultChannel = "craneview:session_ended"
	DefaultTimeout = 5 * time.Second
	DefaultRetries = 3
	// DefaultEventTTL is how long the per-session event key lives.
	DefaultEventTTL = 24 * time.Hour
	// keyPrefix + session ID is the per-session event key.
	keyPrefix = "craneview:session:"
)

// Config configures the adapter. URL has the form
// redis://[:password@]host:port[/db].
type Config struct {
	URL     string
	Channel string
	Timeout time.Duration
	Retries int
	// EventTTL is the lifetime of the per-session key. Zero means
	// DefaultEventTTL.
	EventTTL time.Duration
}

// Adapter publishes through one go-redis client.
type Adapter struct {
	channel  string
	timeout  time.Duration
	retries  int
	eventTTL time.Duration
	client   *goredis.Client
}

// New validates cfg. The connection is opened lazily on first publish.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis: URL is required")
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("redis: retries must be >= 0, got %d", cfg.Retries)
	}

	return &Adapter{
		channel:  cmp.Or(cfg.Channel, DefaultChannel),
		timeout:  cmp.Or(cfg.Timeout, DefaultTimeout),
		retries:  cfg.Retries,
		eventTTL: cmp.Or(cfg.EventTTL, DefaultEventTTL),
		client:   goredis.NewClient(opts),
	}, nil
}

// Channel is the pub/sub channel events go to.
func (a *Adapter) Channel() string {
	return a.channel
}

// EventKey is the key holding the last event of sessionID.
func EventKey(sessionID string) string {
	return keyPrefix + sessionID
}

// Publish stores the event under its session key and announces it on the
// channel, both in one pipelined round trip.
func (a *Adapter) Publish(ctx context.Context, event *adapter.SessionEndedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}
	return adapter.Retry(ctx, "redis", a.retries, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()
		_, err := a.client.Pipelined(ctx, func(p goredis.Pipeliner) error {
			p.Set(ctx, EventKey(event.SessionID), body, a.eventTTL)
			p.Publish(ctx, a.channel, body)
			return nil
		})
		if errors.Is(err, goredis.ErrClosed) {
			return fmt.Errorf("%w: %w", adapter.ErrPermanent, err)
		}
		return err
	})
}

// Close closes the client.
func (a *Adapter) Close() error {
	return a.client.Close()
}

var _ adapter.Adapter = (*Adapter)(nil)
