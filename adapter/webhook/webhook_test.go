package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pithecene-io/craneview/adapter"
	"github.com/pithecene-io/craneview/iox"
)

func crashEvent() *adapter.SessionEndedEvent {
	return &adapter.SessionEndedEvent{
		EventType:    adapter.EventTypeSessionEnded,
		SessionID:    "s-001",
		Endpoint:     "ws://localhost:8000/robotcrane",
		Outcome:      "connection_lost",
		Revision:     42,
		Exceptions:   1,
		DecodeErrors: 3,
		DurationMs:   1500,
		Timestamp:    "2026-02-07T12:00:00Z",
	}
}

func newAdapter(t *testing.T, cfg Config) *Adapter {
	t.Helper()
	prev := adapter.BaseBackoff
	adapter.BaseBackoff = time.Millisecond
	t.Cleanup(func() { adapter.BaseBackoff = prev })

	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { iox.DiscardClose(a) })
	return a
}

func TestPublish_Delivery(t *testing.T) {
	var (
		mu     sync.Mutex
		header http.Header
		got    adapter.SessionEndedEvent
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		mu.Lock()
		defer mu.Unlock()
		header = r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	a := newAdapter(t, Config{
		URL:     srv.URL,
		Headers: map[string]string{"Authorization": "Bearer lab-token"},
	})
	if err := a.Publish(t.Context(), crashEvent()); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if got != *crashEvent() {
		t.Errorf("body = %+v, want %+v", got, *crashEvent())
	}
	for name, want := range map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Bearer lab-token",
		EventHeader:     adapter.EventTypeSessionEnded,
		SessionHeader:   "s-001",
	} {
		if v := header.Get(name); v != want {
			t.Errorf("header %s = %q, want %q", name, v, want)
		}
	}
}

func TestPublish_StatusHandling(t *testing.T) {
	tests := []struct {
		name      string
		codes     []int
		wantErr   bool
		wantCalls int32
	}{
		{"ok", []int{http.StatusOK}, false, 1},
		{"accepted", []int{http.StatusAccepted}, false, 1},
		{"bad request is permanent", []int{http.StatusBadRequest}, true, 1},
		{"not found is permanent", []int{http.StatusNotFound}, true, 1},
		{"server error retried", []int{http.StatusInternalServerError}, true, 3},
		{"rate limit retried", []int{http.StatusTooManyRequests}, true, 3},
		{"request timeout retried", []int{http.StatusRequestTimeout}, true, 3},
		{"recovers after bad gateway", []int{http.StatusBadGateway, http.StatusBadGateway, http.StatusOK}, false, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				n := int(calls.Add(1)) - 1
				w.WriteHeader(tt.codes[min(n, len(tt.codes)-1)])
			}))
			defer srv.Close()

			a := newAdapter(t, Config{URL: srv.URL, Retries: 2})
			err := a.Publish(t.Context(), crashEvent())
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got := calls.Load(); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestStatusError_Is(t *testing.T) {
	permanent := []int{400, 401, 403, 404, 422}
	transient := []int{408, 429, 500, 502, 503}
	for _, code := range permanent {
		if !errors.Is(&StatusError{Code: code}, adapter.ErrPermanent) {
			t.Errorf("%d should be permanent", code)
		}
	}
	for _, code := range transient {
		if errors.Is(&StatusError{Code: code}, adapter.ErrPermanent) {
			t.Errorf("%d should be retried", code)
		}
	}
}

func TestPublish_ContextCanceled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	defer close(release)

	a := newAdapter(t, Config{URL: srv.URL})
	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()
	if err := a.Publish(ctx, crashEvent()); err == nil {
		t.Fatal("expected an error once the context ends")
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"empty URL", Config{}},
		{"relative URL", Config{URL: "/hooks/crane"}},
		{"websocket URL", Config{URL: "ws://localhost:8000/robotcrane"}},
		{"negative retries", Config{URL: "http://example.com", Retries: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Error("expected an error")
			}
		})
	}

	a, err := New(Config{URL: "https://example.com/hook"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.client.Timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", a.client.Timeout, DefaultTimeout)
	}
}
