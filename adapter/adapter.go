// Package adapter publishes session-ended notifications to downstream
// systems (an HTTP webhook or a Redis channel).
//
// The CLI owns adapter lifecycle; users provide configuration only.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pithecene-io/craneview/lode"
	"github.com/pithecene-io/craneview/types"
)

// EventTypeSessionEnded is the only event type published.
const EventTypeSessionEnded = "session_ended"

// SessionEndedEvent is the payload published when a crane session ends.
type SessionEndedEvent struct {
	EventType     string `json:"event_type"` // always "session_ended"
	ClientVersion string `json:"client_version"`
	SessionID     string `json:"session_id"`
	Endpoint      string `json:"endpoint"`
	Outcome       string `json:"outcome"` // closed, connection_lost, dial_failed
	Revision      uint64 `json:"revision"`
	Exceptions    int64  `json:"exceptions"`
	DecodeErrors  int64  `json:"decode_errors"`
	DurationMs    int64  `json:"duration_ms"`
	Timestamp     string `json:"timestamp"` // RFC 3339, session end
	HistoryPath   string `json:"history_path,omitempty"`
}

// NewSessionEndedEvent builds the event from a session summary.
// historyPath is where the session's history landed, empty when history is off.
func NewSessionEndedEvent(s lode.SessionSummary, historyPath string) *SessionEndedEvent {
	return &SessionEndedEvent{
		EventType:     EventTypeSessionEnded,
		ClientVersion: types.Version,
		SessionID:     s.SessionID,
		Endpoint:      s.Endpoint,
		Outcome:       s.Outcome,
		Revision:      s.Revision,
		Exceptions:    s.Exceptions,
		DecodeErrors:  s.DecodeErrors,
		DurationMs:    s.Duration().Milliseconds(),
		Timestamp:     s.EndedAt.UTC().Format(time.RFC3339),
		HistoryPath:   historyPath,
	}
}

// Adapter publishes session-ended events to a downstream system.
// Implementations must be safe for single-use per session.
type Adapter interface {
	// Publish sends the event downstream.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *SessionEndedEvent) error

	// Close releases adapter resources.
	Close() error
}

// BaseBackoff is the delay before the first retry. It doubles per retry.
var BaseBackoff = 500 * time.Millisecond

// ErrPermanent marks an attempt error that must not be retried.
var ErrPermanent = errors.New("permanent failure")

// Retry runs attempt up to 1+retries times with exponential backoff between
// attempts. An error wrapping ErrPermanent stops immediately. name prefixes
// returned errors.
func Retry(ctx context.Context, name string, retries int, attempt func(context.Context) error) error {
	var lastErr error
	attempts := 1 + retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context canceled: %w", name, err)
		}

		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * BaseBackoff
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: context canceled during backoff: %w", name, ctx.Err())
			case <-time.After(backoff):
			}
		}

		lastErr = attempt(ctx)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, ErrPermanent) {
			return fmt.Errorf("%s: non-retriable error: %w", name, lastErr)
		}
	}

	return fmt.Errorf("%s: failed after %d attempts: %w", name, attempts, lastErr)
}
