// Package record persists raw inbound frames for later replay.
//
// A recording is a stream of length-prefixed msgpack records: one header
// followed by one record per inbound frame, in arrival order. Each record is
// a 4-byte big-endian payload length followed by the msgpack payload.
package record

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Size limits.
const (
	// MaxRecordSize is the maximum record size (16 MiB), including length prefix.
	MaxRecordSize = 16 * 1024 * 1024
	// MaxPayloadSize is the maximum payload size (MaxRecordSize - 4 bytes).
	MaxPayloadSize = MaxRecordSize - LengthPrefixSize
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
)

// Record type discriminants.
const (
	HeaderType = "header"
	FrameType  = "frame"
)

// FormatVersion is the recording layout version written in every header.
const FormatVersion = 1

// Header describes the session a recording was taken from.
type Header struct {
	Type           string    `msgpack:"type"`
	FormatVersion  int       `msgpack:"format_version"`
	SessionID      string    `msgpack:"session_id"`
	Endpoint       string    `msgpack:"endpoint"`
	Dialect        string    `msgpack:"dialect"`
	Classification string    `msgpack:"classification"`
	StartedAt      time.Time `msgpack:"started_at"`
	ClientVersion  string    `msgpack:"client_version"`
}

// Record is one raw inbound frame.
type Record struct {
	Type       string    `msgpack:"type"`
	Seq        uint64    `msgpack:"seq"`
	ReceivedAt time.Time `msgpack:"received_at"`
	Frame      []byte    `msgpack:"frame"`
}

// FrameErrorKind classifies record decoding errors.
type FrameErrorKind int

const (
	// FrameErrorPartial indicates a truncated or incomplete record.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge indicates a record exceeding MaxRecordSize.
	FrameErrorTooLarge
	// FrameErrorDecode indicates a msgpack decoding error.
	FrameErrorDecode
)

func (k FrameErrorKind) String() string {
	switch k {
	case FrameErrorPartial:
		return "partial"
	case FrameErrorTooLarge:
		return "too_large"
	case FrameErrorDecode:
		return "decode"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// FrameError represents a record decoding error.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFatal returns true if the stream cannot be read past this error.
// Partial and oversized records are fatal; a bad payload can be skipped.
func (e *FrameError) IsFatal() bool {
	return e.Kind == FrameErrorPartial || e.Kind == FrameErrorTooLarge
}

// IsFatalFrameError returns true if the error is a fatal frame error.
func IsFatalFrameError(err error) bool {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.IsFatal()
	}
	return false
}

// readPayload reads one length-prefixed payload.
//
// Errors:
//   - io.EOF: stream ended cleanly
//   - *FrameError with Kind=FrameErrorPartial: incomplete record (fatal)
//   - *FrameError with Kind=FrameErrorTooLarge: record exceeds limit (fatal)
func readPayload(r io.Reader) ([]byte, error) {
	var lengthBuf [LengthPrefixSize]byte
	if _, err := io.ReadFull(r, lengthBuf[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &FrameError{Kind: FrameErrorPartial, Msg: "failed to read length prefix", Err: err}
	}

	size := binary.BigEndian.Uint32(lengthBuf[:])
	if size > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", size, MaxPayloadSize),
		}
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, &FrameError{Kind: FrameErrorPartial, Msg: "failed to read payload", Err: err}
	}
	return payload, nil
}

// writePayload msgpack-encodes v and writes it with a length prefix.
func writePayload(w io.Writer, v any) (int, error) {
	return writePayloadLimit(w, v, MaxPayloadSize)
}

// writePayloadLimit is writePayload with an explicit payload cap. Nothing
// is written when the payload exceeds limit.
func writePayloadLimit(w io.Writer, v any, limit int) (int, error) {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("encode record: %w", err)
	}
	if len(payload) > limit {
		return 0, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", len(payload), limit),
		}
	}

	buf := make([]byte, LengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(buf[:LengthPrefixSize], uint32(len(payload)))
	copy(buf[LengthPrefixSize:], payload)
	return w.Write(buf)
}

type recordTag struct {
	Type string `msgpack:"type"`
}

func decodeHeader(payload []byte) (*Header, error) {
	var tag recordTag
	if err := msgpack.Unmarshal(payload, &tag); err != nil {
		return nil, &FrameError{Kind: FrameErrorDecode, Msg: "failed to decode record type", Err: err}
	}
	if tag.Type != HeaderType {
		return nil, &FrameError{Kind: FrameErrorDecode, Msg: fmt.Sprintf("expected header record, got %q", tag.Type)}
	}
	var h Header
	if err := msgpack.Unmarshal(payload, &h); err != nil {
		return nil, &FrameError{Kind: FrameErrorDecode, Msg: "failed to decode header", Err: err}
	}
	if h.FormatVersion != FormatVersion {
		return nil, &FrameError{Kind: FrameErrorDecode, Msg: fmt.Sprintf("unsupported format version %d", h.FormatVersion)}
	}
	return &h, nil
}

func decodeRecord(payload []byte) (*Record, error) {
	var rec Record
	if err := msgpack.Unmarshal(payload, &rec); err != nil {
		return nil, &FrameError{Kind: FrameErrorDecode, Msg: "failed to decode record", Err: err}
	}
	if rec.Type != FrameType {
		return nil, &FrameError{Kind: FrameErrorDecode, Msg: fmt.Sprintf("unexpected record type %q", rec.Type)}
	}
	return &rec, nil
}
