package record

import (
	"bufio"
	"errors"
	"io"
	"sync"
	"time"
)

// Writer appends inbound frames to a recording. It satisfies
// session.FrameObserver; write failures are kept and reported by Err and
// Close since observers cannot return errors. Frames too large for one
// record are skipped and counted by Skipped.
type Writer struct {
	mu         sync.Mutex
	dst        io.Writer
	buf        *bufio.Writer
	maxPayload int
	seq        uint64
	skipped    uint64
	err        error
	closed     bool
}

// NewWriter writes the header and returns a writer. If dst is an io.Closer
// it is closed by Close.
func NewWriter(dst io.Writer, h Header) (*Writer, error) {
	h.Type = HeaderType
	h.FormatVersion = FormatVersion

	buf := bufio.NewWriter(dst)
	if _, err := writePayload(buf, h); err != nil {
		return nil, err
	}
	return &Writer{dst: dst, buf: buf, maxPayload: MaxPayloadSize}, nil
}

// ObserveFrame records one frame.
func (w *Writer) ObserveFrame(receivedAt time.Time, frame []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.err != nil || w.closed {
		return
	}
	rec := Record{
		Type:       FrameType,
		Seq:        w.seq + 1,
		ReceivedAt: receivedAt.UTC(),
		Frame:      append([]byte(nil), frame...),
	}
	_, err := writePayloadLimit(w.buf, rec, w.maxPayload)
	var frameErr *FrameError
	switch {
	case err == nil:
		w.seq++
	case errors.As(err, &frameErr) && frameErr.Kind == FrameErrorTooLarge:
		w.skipped++
	default:
		w.err = err
	}
}

// Count returns the number of frames recorded.
func (w *Writer) Count() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seq
}

// Skipped returns the number of frames dropped for exceeding the record size.
func (w *Writer) Skipped() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.skipped
}

// Err returns the first write error, if any.
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Flush writes buffered records to the destination.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	return w.buf.Flush()
}

// Close flushes and closes the destination. Later frames are ignored.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return w.err
	}
	w.closed = true

	if err := w.buf.Flush(); err != nil && w.err == nil {
		w.err = err
	}
	if c, ok := w.dst.(io.Closer); ok {
		if err := c.Close(); err != nil && w.err == nil {
			w.err = err
		}
	}
	return w.err
}
