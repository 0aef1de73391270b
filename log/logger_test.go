package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/pithecene-io/craneview/types"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("unmarshal %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestLogger_Entry(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&types.SessionMeta{SessionID: "sess-1", Endpoint: "ws://localhost:8000/robotcrane"}, &buf, zapcore.DebugLevel)

	l.Named("session").Info("frame dropped", map[string]any{"kind": "malformed", "bytes": 12})

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	want := map[string]any{
		"session_id": "sess-1",
		"endpoint":   "ws://localhost:8000/robotcrane",
		"level":      "info",
		"message":    "frame dropped",
		"component":  "session",
		"kind":       "malformed",
		"bytes":      float64(12),
	}
	for k, v := range want {
		if entries[0][k] != v {
			t.Errorf("%s = %v, want %v", k, entries[0][k], v)
		}
	}
}

func TestLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(nil, &buf, zapcore.WarnLevel)
	child := l.Named("sync")

	child.Info("hidden", nil)
	child.Warn("shown", nil)
	l.SetLevel(zapcore.DebugLevel)
	child.Debug("now shown", nil)

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2: %s", len(entries), buf.String())
	}
	if entries[0]["message"] != "shown" || entries[1]["message"] != "now shown" {
		t.Errorf("messages = %v, %v", entries[0]["message"], entries[1]["message"])
	}
}

func TestLevelFromEnv(t *testing.T) {
	tests := []struct {
		env  string
		want zapcore.Level
	}{
		{"", zapcore.InfoLevel},
		{"debug", zapcore.DebugLevel},
		{"error", zapcore.ErrorLevel},
		{"loud", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Setenv(LevelEnv, tt.env)
		if got := levelFromEnv(); got != tt.want {
			t.Errorf("%s=%q: level = %v, want %v", LevelEnv, tt.env, got, tt.want)
		}
	}
}

func TestLogger_WithOutput(t *testing.T) {
	var first, second bytes.Buffer
	meta := &types.SessionMeta{SessionID: "sess-2", Endpoint: "ws://crane:8000/robotcrane"}
	l := newLogger(meta, &first, zapcore.InfoLevel).Named("session")

	redirected := l.WithOutput(&second)
	redirected.Named("read").Warn("redirected", map[string]any{"bytes": 3})
	redirected.Debug("below level", nil)

	if first.Len() != 0 {
		t.Errorf("original writer got %q", first.String())
	}
	entries := decodeLines(t, &second)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1: %s", len(entries), second.String())
	}
	want := map[string]any{
		"session_id": "sess-2",
		"endpoint":   "ws://crane:8000/robotcrane",
		"component":  "session.read",
		"message":    "redirected",
		"bytes":      float64(3),
	}
	for k, v := range want {
		if entries[0][k] != v {
			t.Errorf("%s = %v, want %v", k, entries[0][k], v)
		}
	}

	// The level is shared with the logger it came from.
	l.SetLevel(zapcore.DebugLevel)
	redirected.Debug("now shown", nil)
	if !strings.Contains(second.String(), `"now shown"`) {
		t.Errorf("level change did not reach the redirected logger: %q", second.String())
	}
}

func TestNewNop(t *testing.T) {
	l := NewNop()
	l.Error("ignored", map[string]any{"k": "v"})
	if err := l.Sync(); err != nil {
		t.Errorf("Sync: %v", err)
	}
}
