// Package wire translates between typed domain values and the backend's
// JSON text frames.
//
// Inbound frames carry no reliable discriminant in the stock backend, so the
// default classification inspects frame content: a frame may be dimensions,
// a pose and an exception notice all at once. Backends that tag frames with a
// "type" field can be decoded with ClassifyTagged instead.
package wire

import (
	"fmt"
	"strings"
)

// Dialect selects the field layout for outbound command payloads.
type Dialect string

const (
	// DialectData nests every payload under "data". This is the canonical dialect.
	DialectData Dialect = "data"
	// DialectLegacy uses the legacy action names (setactstates, moveorigin
	// and so on) and places payloads under per-action keys. It has no
	// move_origin_control_end_effector.
	DialectLegacy Dialect = "legacy"
)

// ParseDialect parses a dialect name. Empty selects DialectData.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(s) {
	case "", string(DialectData):
		return DialectData, nil
	case string(DialectLegacy):
		return DialectLegacy, nil
	default:
		return "", fmt.Errorf("invalid dialect: %q (must be data or legacy)", s)
	}
}

// Classification selects how inbound frames are recognized.
type Classification string

const (
	// ClassifyContent matches field markers and substrings. Compatible with
	// the stock backend.
	ClassifyContent Classification = "content"
	// ClassifyTagged dispatches on an explicit "type" field.
	ClassifyTagged Classification = "tagged"
)

// ParseClassification parses a classification name. Empty selects ClassifyContent.
func ParseClassification(s string) (Classification, error) {
	switch strings.ToLower(s) {
	case "", string(ClassifyContent):
		return ClassifyContent, nil
	case string(ClassifyTagged):
		return ClassifyTagged, nil
	default:
		return "", fmt.Errorf("invalid classification: %q (must be content or tagged)", s)
	}
}

// Codec encodes commands and decodes frames for one fixed protocol dialect.
// A Codec is immutable and safe for concurrent use.
type Codec struct {
	dialect        Dialect
	classification Classification
}

// NewCodec creates a codec. Unknown dialects or classifications are errors.
func NewCodec(dialect Dialect, classification Classification) (*Codec, error) {
	switch dialect {
	case DialectData, DialectLegacy:
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
	switch classification {
	case ClassifyContent, ClassifyTagged:
	default:
		return nil, fmt.Errorf("unsupported classification %q", classification)
	}
	return &Codec{dialect: dialect, classification: classification}, nil
}

// DefaultCodec returns the codec for the stock backend.
func DefaultCodec() *Codec {
	return &Codec{dialect: DialectData, classification: ClassifyContent}
}

// Dialect returns the codec's outbound dialect.
func (c *Codec) Dialect() Dialect {
	return c.dialect
}

// Classification returns the codec's inbound classification mode.
func (c *Codec) Classification() Classification {
	return c.classification
}
