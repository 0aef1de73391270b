package lode

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pithecene-io/craneview/metrics"
	"github.com/pithecene-io/craneview/types"
)

// RecordKind discriminator values. record_kind is also the last partition key.
const (
	RecordKindPose    = "pose"
	RecordKindSummary = "session_summary"
)

// Outcome values for SessionSummary.
const (
	OutcomeClosed         = "closed"
	OutcomeConnectionLost = "connection_lost"
	OutcomeDialFailed     = "dial_failed"
)

// SessionSummary is the last record written for a session.
type SessionSummary struct {
	SessionID      string    `json:"session_id"`
	Endpoint       string    `json:"endpoint"`
	Dialect        string    `json:"dialect"`
	StartedAt      time.Time `json:"started_at"`
	EndedAt        time.Time `json:"ended_at"`
	Outcome        string    `json:"outcome"`
	Revision       uint64    `json:"revision"`
	FramesReceived int64     `json:"frames_received"`
	DecodeErrors   int64     `json:"decode_errors"`
	PoseFrames     int64     `json:"pose_frames"`
	Exceptions     int64     `json:"exceptions"`
	CommandsSent   int64     `json:"commands_sent"`
	Recoveries     int64     `json:"recoveries"`
}

// NewSessionSummary builds a summary from the session's final counters.
func NewSessionSummary(snap metrics.Snapshot, revision uint64, outcome string, startedAt, endedAt time.Time) SessionSummary {
	return SessionSummary{
		SessionID:      snap.SessionID,
		Endpoint:       snap.Endpoint,
		Dialect:        snap.Dialect,
		StartedAt:      startedAt.UTC(),
		EndedAt:        endedAt.UTC(),
		Outcome:        outcome,
		Revision:       revision,
		FramesReceived: snap.FramesReceived,
		DecodeErrors:   snap.DecodeErrors,
		PoseFrames:     snap.PoseFrames,
		Exceptions:     snap.ExceptionFrames,
		CommandsSent:   snap.CommandsSent,
		Recoveries:     snap.Recoveries,
	}
}

// Duration returns EndedAt - StartedAt.
func (s SessionSummary) Duration() time.Duration {
	return s.EndedAt.Sub(s.StartedAt)
}

// toPoseRecordMap converts a PoseRecord to a map for Lode storage.
// Lode HiveLayout requires records as map[string]any carrying the
// partition keys.
func toPoseRecordMap(rec *types.PoseRecord, cfg Config) map[string]any {
	joints := make([]map[string]float64, len(rec.Joints))
	for i, j := range rec.Joints {
		joints[i] = map[string]float64{"x": j.X, "y": j.Y, "z": j.Z}
	}
	return map[string]any{
		"record_kind": RecordKindPose,
		"session_id":  rec.SessionID,
		"revision":    rec.Revision,
		"received_at": rec.ReceivedAt.UTC().Format(time.RFC3339Nano),
		"joints":      joints,
		"thetas":      rec.Thetas[:],
		"endpoint":    cfg.Endpoint,
		"day":         cfg.Day,
	}
}

// toSummaryRecordMap converts a SessionSummary to a map for Lode storage.
func toSummaryRecordMap(s SessionSummary, cfg Config) map[string]any {
	return map[string]any{
		"record_kind":     RecordKindSummary,
		"session_id":      cfg.SessionID,
		"endpoint":        s.Endpoint,
		"dialect":         s.Dialect,
		"started_at":      s.StartedAt.UTC().Format(time.RFC3339Nano),
		"ended_at":        s.EndedAt.UTC().Format(time.RFC3339Nano),
		"duration_ms":     s.Duration().Milliseconds(),
		"outcome":         s.Outcome,
		"revision":        s.Revision,
		"frames_received": s.FramesReceived,
		"decode_errors":   s.DecodeErrors,
		"pose_frames":     s.PoseFrames,
		"exceptions":      s.Exceptions,
		"commands_sent":   s.CommandsSent,
		"recoveries":      s.Recoveries,
		"day":             cfg.Day,
	}
}

// decodeRecord converts a raw record read back from the dataset into out.
// The JSONL codec yields map[string]any with float64 numbers; re-encoding
// lets the struct tags drive the conversion.
func decodeRecord(item any, out any) error {
	raw, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("re-encode record: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	return nil
}

// recordKind returns the record_kind of a raw record, or "".
func recordKind(item any) string {
	m, ok := item.(map[string]any)
	if !ok {
		return ""
	}
	return toString(m["record_kind"])
}

// toString converts a value to string, returning empty string for nil/non-string.
func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
