package wire

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pithecene-io/craneview/types"
)

// Content markers used by ClassifyContent.
const (
	dimensionsMarker = `"l_1"`
	poseMarker       = `"j_1"`
)

// exceptionMarkers are substrings that flag a frame as a backend exception.
var exceptionMarkers = []string{"Exception", "Invalid"}

// Frame type discriminants used by ClassifyTagged.
const (
	frameTypeDimensions = "dimensions"
	frameTypePose       = "pose"
	frameTypeException  = "exception"
)

// Kind is a bitset of the classifiers a frame matched.
type Kind uint8

const (
	// KindDimensions marks a dimensions frame.
	KindDimensions Kind = 1 << iota
	// KindPose marks a pose frame.
	KindPose
	// KindException marks a backend exception notice.
	KindException
)

func (k Kind) String() string {
	if k == 0 {
		return "unrecognized"
	}
	var parts []string
	if k&KindDimensions != 0 {
		parts = append(parts, "dimensions")
	}
	if k&KindPose != 0 {
		parts = append(parts, "pose")
	}
	if k&KindException != 0 {
		parts = append(parts, "exception")
	}
	return strings.Join(parts, "+")
}

// Event is a decoded inbound frame. Only the fields whose kind bit is set
// are meaningful.
type Event struct {
	Kinds      Kind
	Dimensions types.Dimensions
	Pose       types.Pose
	Exception  string
}

// Has reports whether the event matched classifier k.
func (e Event) Has(k Kind) bool {
	return e.Kinds&k != 0
}

// Unrecognized reports whether no classifier matched.
func (e Event) Unrecognized() bool {
	return e.Kinds == 0
}

type dimensionsWire struct {
	Type string   `json:"type,omitempty"`
	L1   *float64 `json:"l_1"`
	L2   *float64 `json:"l_2"`
	L3   *float64 `json:"l_3"`
	D4   *float64 `json:"d_4"`
	L5   *float64 `json:"l_5"`
	L7   *float64 `json:"l_7"`
}

type poseWire struct {
	Type   string    `json:"type,omitempty"`
	J1     []float64 `json:"j_1"`
	J2     []float64 `json:"j_2"`
	J3     []float64 `json:"j_3"`
	J4     []float64 `json:"j_4"`
	J5     []float64 `json:"j_5"`
	J6     []float64 `json:"j_6"`
	J7     []float64 `json:"j_7"`
	Theta0 *float64  `json:"theta_0"`
	Theta1 *float64  `json:"theta_1"`
	Theta2 *float64  `json:"theta_2"`
	Theta3 *float64  `json:"theta_3"`
}

type exceptionWire struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type frameTag struct {
	Type string `json:"type"`
}

// Decode classifies and decodes an inbound frame.
//
// With content classification every matching branch fires. If the
// exception branch matched, the returned Event keeps the exception even when
// another branch fails; the error reports the failed branch and callers must
// not apply its dimensions or pose.
func (c *Codec) Decode(frame []byte) (Event, error) {
	if c.classification == ClassifyTagged {
		return decodeTagged(frame)
	}
	return decodeContent(frame)
}

func decodeContent(frame []byte) (Event, error) {
	var ev Event
	text := string(frame)

	for _, marker := range exceptionMarkers {
		if strings.Contains(text, marker) {
			ev.Kinds |= KindException
			ev.Exception = text
			break
		}
	}

	if strings.Contains(text, dimensionsMarker) {
		dims, err := decodeDimensions(frame)
		if err != nil {
			return Event{Kinds: ev.Kinds & KindException, Exception: ev.Exception}, err
		}
		ev.Kinds |= KindDimensions
		ev.Dimensions = dims
	}

	if strings.Contains(text, poseMarker) {
		pose, err := decodePose(frame)
		if err != nil {
			return Event{Kinds: ev.Kinds & KindException, Exception: ev.Exception}, err
		}
		ev.Kinds |= KindPose
		ev.Pose = pose
	}

	return ev, nil
}

func decodeTagged(frame []byte) (Event, error) {
	var tag frameTag
	if err := json.Unmarshal(frame, &tag); err != nil {
		return Event{}, malformed("failed to decode frame type", err)
	}

	switch tag.Type {
	case frameTypeDimensions:
		dims, err := decodeDimensions(frame)
		if err != nil {
			return Event{}, err
		}
		return Event{Kinds: KindDimensions, Dimensions: dims}, nil
	case frameTypePose:
		pose, err := decodePose(frame)
		if err != nil {
			return Event{}, err
		}
		return Event{Kinds: KindPose, Pose: pose}, nil
	case frameTypeException:
		var w exceptionWire
		if err := json.Unmarshal(frame, &w); err != nil {
			return Event{}, malformed("failed to decode exception", err)
		}
		msg := w.Message
		if strings.TrimSpace(msg) == "" {
			// Keep the notice visible when the backend omits the text.
			msg = string(frame)
		}
		return Event{Kinds: KindException, Exception: msg}, nil
	default:
		return Event{}, nil
	}
}

func decodeDimensions(frame []byte) (types.Dimensions, error) {
	var w dimensionsWire
	if err := json.Unmarshal(frame, &w); err != nil {
		return types.Dimensions{}, malformed("failed to decode dimensions", err)
	}

	fields := []struct {
		name string
		v    *float64
	}{
		{"l_1", w.L1}, {"l_2", w.L2}, {"l_3", w.L3}, {"d_4", w.D4}, {"l_5", w.L5}, {"l_7", w.L7},
	}
	for _, f := range fields {
		if f.v == nil {
			return types.Dimensions{}, missingField(f.name)
		}
	}

	return types.Dimensions{
		L1: *w.L1,
		L2: *w.L2,
		L3: *w.L3,
		D4: -*w.D4,
		L5: *w.L5,
		L7: *w.L7,
	}, nil
}

func decodePose(frame []byte) (types.Pose, error) {
	var w poseWire
	if err := json.Unmarshal(frame, &w); err != nil {
		return types.Pose{}, malformed("failed to decode pose", err)
	}

	raw := [7][]float64{w.J1, w.J2, w.J3, w.J4, w.J5, w.J6, w.J7}
	var joints [7]types.Vec3
	for i, v := range raw {
		name := fmt.Sprintf("j_%d", i+1)
		if v == nil {
			return types.Pose{}, missingField(name)
		}
		if len(v) != 3 {
			return types.Pose{}, malformed(fmt.Sprintf("joint %s has %d components, want 3", name, len(v)), nil)
		}
		joints[i] = fromBackendAxes(v)
	}

	thetas := []struct {
		name string
		v    *float64
	}{
		{"theta_0", w.Theta0}, {"theta_1", w.Theta1}, {"theta_2", w.Theta2}, {"theta_3", w.Theta3},
	}
	for _, th := range thetas {
		if th.v == nil {
			return types.Pose{}, missingField(th.name)
		}
	}

	return types.Pose{
		J1: joints[0], J2: joints[1], J3: joints[2], J4: joints[3],
		J5: joints[4], J6: joints[5], J7: joints[6],
		Theta0: *w.Theta0,
		Theta1: *w.Theta1,
		Theta2: *w.Theta2,
		Theta3: *w.Theta3,
	}, nil
}

// fromBackendAxes remaps a backend [x, y, z] (Z up) to display (x, z, -y) (Y up).
func fromBackendAxes(v []float64) types.Vec3 {
	return types.Vec3{X: v[0], Y: v[2], Z: -v[1]}
}
