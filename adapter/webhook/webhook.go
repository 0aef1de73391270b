// Package webhook posts session-ended events to an HTTP endpoint.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pithecene-io/craneview/adapter"
	"github.com/pithecene-io/craneview/iox"
)

const (
	DefaultTimeout = 10 * time.Second
	DefaultRetries = 3

	// EventHeader names the event type so receivers can route without
	// reading the body.
	EventHeader = "X-Craneview-Event"
	// SessionHeader carries the session ID. A retried delivery repeats it.
	SessionHeader = "X-Craneview-Session"
)

// maxDrain caps how much of a response body is read before closing.
const maxDrain = 64 << 10

// Config configures the webhook adapter.
type Config struct {
	URL     string
	Headers map[string]string
	// Timeout bounds each attempt. Zero means DefaultTimeout.
	Timeout time.Duration
	Retries int
}

// Adapter posts events as JSON.
type Adapter struct {
	url     string
	header  http.Header
	retries int
	client  *http.Client
}

// New validates cfg and builds the adapter.
func New(cfg Config) (*Adapter, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("webhook: %q is not an http or https URL", cfg.URL)
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("webhook: retries must be >= 0, got %d", cfg.Retries)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	header := make(http.Header, len(cfg.Headers)+1)
	for k, v := range cfg.Headers {
		header.Set(k, v)
	}
	header.Set("Content-Type", "application/json")

	return &Adapter{
		url:     u.String(),
		header:  header,
		retries: cfg.Retries,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Publish posts event, retrying network errors, 5xx, 408 and 429.
func (a *Adapter) Publish(ctx context.Context, event *adapter.SessionEndedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}
	return adapter.Retry(ctx, "webhook", a.retries, func(ctx context.Context) error {
		return a.post(ctx, event, body)
	})
}

func (a *Adapter) post(ctx context.Context, event *adapter.SessionEndedEvent, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header = a.header.Clone()
	req.Header.Set(EventHeader, event.EventType)
	req.Header.Set(SessionHeader, event.SessionID)

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer iox.DiscardClose(resp.Body)
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))

	if resp.StatusCode/100 != 2 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

// StatusError is a non-2xx response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d %s", e.Code, http.StatusText(e.Code))
}

// Is classifies client errors as permanent, except timeouts and rate limits.
func (e *StatusError) Is(target error) bool {
	if target != adapter.ErrPermanent {
		return false
	}
	switch e.Code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return e.Code >= 400 && e.Code < 500
}

// Close drops idle connections.
func (a *Adapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

var _ adapter.Adapter = (*Adapter)(nil)
