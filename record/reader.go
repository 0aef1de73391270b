package record

import (
	"bufio"
	"io"
)

// Reader reads a recording back in order.
type Reader struct {
	r      io.Reader
	header *Header
}

// NewReader reads and validates the header.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	payload, err := readPayload(br)
	if err != nil {
		if err == io.EOF {
			return nil, &FrameError{Kind: FrameErrorPartial, Msg: "recording has no header", Err: io.ErrUnexpectedEOF}
		}
		return nil, err
	}
	h, err := decodeHeader(payload)
	if err != nil {
		return nil, err
	}
	return &Reader{r: br, header: h}, nil
}

// Header returns the recording header.
func (r *Reader) Header() Header {
	return *r.header
}

// Next returns the next record.
//
// Errors:
//   - io.EOF: no more records
//   - fatal *FrameError: the stream is corrupt; stop reading
//   - non-fatal *FrameError: this record is unreadable; Next may be called again
func (r *Reader) Next() (*Record, error) {
	payload, err := readPayload(r.r)
	if err != nil {
		return nil, err
	}
	return decodeRecord(payload)
}
