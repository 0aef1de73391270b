package wire

import (
	"errors"
	"fmt"
)

// ErrUnsupportedAction is returned when the codec's dialect has no
// equivalent for a command's action.
var ErrUnsupportedAction = errors.New("action not supported by dialect")

// DecodeErrorKind classifies frame decoding errors.
type DecodeErrorKind int

const (
	// DecodeErrorMalformed indicates the frame is not valid JSON or has the wrong shape.
	DecodeErrorMalformed DecodeErrorKind = iota
	// DecodeErrorMissingField indicates a classified frame lacks a required field.
	DecodeErrorMissingField
)

func (k DecodeErrorKind) String() string {
	switch k {
	case DecodeErrorMalformed:
		return "malformed"
	case DecodeErrorMissingField:
		return "missing_field"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// DecodeError represents a frame that could not be turned into domain values.
// Decode errors are never fatal to a session: the frame is dropped.
type DecodeError struct {
	Kind DecodeErrorKind
	Msg  string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError returns true if err is or wraps a *DecodeError.
func IsDecodeError(err error) bool {
	var decErr *DecodeError
	return errors.As(err, &decErr)
}

func malformed(msg string, err error) *DecodeError {
	return &DecodeError{Kind: DecodeErrorMalformed, Msg: msg, Err: err}
}

func missingField(name string) *DecodeError {
	return &DecodeError{Kind: DecodeErrorMissingField, Msg: fmt.Sprintf("missing field %q", name)}
}
