package wire

import (
	"encoding/json"
	"fmt"

	"github.com/pithecene-io/craneview/types"
)

// Legacy payload keys.
const (
	legacyActuatorsKey   = "act_states"
	legacyEndEffectorKey = "endeffector_position"
	legacyOriginKey      = "org_position"
)

// legacyActions maps actions onto the legacy backend's names. Actions
// absent here have no legacy equivalent.
var legacyActions = map[types.Action]string{
	types.ActionResetRobot:      "resetrobot",
	types.ActionGetPose:         "getpose",
	types.ActionInitializeRobot: "initrobot",
	types.ActionMoveActuators:   "setactstates",
	types.ActionMoveEndEffector: "setendeffector",
	types.ActionMoveOrigin:      "moveorigin",
}

type envelope struct {
	Action types.Action `json:"action"`
	Data   any          `json:"data,omitempty"`
}

type actuatorsData struct {
	D1     float64 `json:"d1"`
	Theta1 float64 `json:"theta1"`
	Theta2 float64 `json:"theta2"`
	Theta3 float64 `json:"theta3"`
	L6     float64 `json:"l6"`
}

type legacyActuatorsData struct {
	D1     float64 `json:"d_1"`
	Theta1 float64 `json:"theta_1"`
	Theta2 float64 `json:"theta_2"`
	Theta3 float64 `json:"theta_3"`
	L6     float64 `json:"l_6"`
}

type endEffectorData struct {
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	Z             float64 `json:"z"`
	Phi           float64 `json:"phi"`
	DoOpenGripper bool    `json:"doOpenGripper"`
}

type originData struct {
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	Z   float64 `json:"z"`
	Phi float64 `json:"phi"`
}

// Encode serializes a command in the codec's dialect.
// Commands with non-finite numbers are rejected; ranges are not checked.
func (c *Codec) Encode(cmd types.Command) ([]byte, error) {
	if cmd.Action == "" {
		return nil, fmt.Errorf("encode: command has no action")
	}
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}

	if c.dialect == DialectLegacy {
		return encodeLegacy(cmd)
	}

	var data any
	switch p := cmd.Payload.(type) {
	case nil:
	case types.ActuatorStates:
		data = actuatorsData{D1: p.D1, Theta1: p.Theta1, Theta2: p.Theta2, Theta3: p.Theta3, L6: p.L6}
	case types.EndEffectorTarget:
		data = endEffectorData{X: p.X, Y: p.Y, Z: p.Z, Phi: p.Phi, DoOpenGripper: p.DoOpenGripper}
	case types.OriginTarget:
		data = originData{X: p.X, Y: p.Y, Z: p.Z, Phi: p.Phi}
	}

	return json.Marshal(envelope{Action: cmd.Action, Data: data})
}

func encodeLegacy(cmd types.Command) ([]byte, error) {
	name, ok := legacyActions[cmd.Action]
	if !ok {
		return nil, fmt.Errorf("encode: %w: %s", ErrUnsupportedAction, cmd.Action)
	}
	msg := map[string]any{"action": name}
	switch p := cmd.Payload.(type) {
	case nil:
	case types.ActuatorStates:
		msg[legacyActuatorsKey] = legacyActuatorsData{D1: p.D1, Theta1: p.Theta1, Theta2: p.Theta2, Theta3: p.Theta3, L6: p.L6}
	case types.EndEffectorTarget:
		msg[legacyEndEffectorKey] = endEffectorData{X: p.X, Y: p.Y, Z: p.Z, Phi: p.Phi, DoOpenGripper: p.DoOpenGripper}
	case types.OriginTarget:
		msg[legacyOriginKey] = originData{X: p.X, Y: p.Y, Z: p.Z, Phi: p.Phi}
	}
	return json.Marshal(msg)
}

// EncodeDimensions serializes dimensions the way the backend sends them,
// flipping D4 back to the backend convention.
func (c *Codec) EncodeDimensions(d types.Dimensions) ([]byte, error) {
	w := dimensionsWire{
		L1: ptr(d.L1),
		L2: ptr(d.L2),
		L3: ptr(d.L3),
		D4: ptr(-d.D4),
		L5: ptr(d.L5),
		L7: ptr(d.L7),
	}
	if c.classification == ClassifyTagged {
		w.Type = frameTypeDimensions
	}
	return json.Marshal(w)
}

// EncodePose serializes a pose the way the backend sends it, undoing the
// display axis remap exactly.
func (c *Codec) EncodePose(p types.Pose) ([]byte, error) {
	joints := p.Joints()
	var vecs [7][]float64
	for i, j := range joints {
		vecs[i] = toBackendAxes(j)
	}
	w := poseWire{
		J1: vecs[0], J2: vecs[1], J3: vecs[2], J4: vecs[3], J5: vecs[4], J6: vecs[5], J7: vecs[6],
		Theta0: ptr(p.Theta0),
		Theta1: ptr(p.Theta1),
		Theta2: ptr(p.Theta2),
		Theta3: ptr(p.Theta3),
	}
	if c.classification == ClassifyTagged {
		w.Type = frameTypePose
	}
	return json.Marshal(w)
}

// EncodeException serializes a backend exception notice. Content
// classification sends the text as-is.
func (c *Codec) EncodeException(message string) ([]byte, error) {
	if c.classification == ClassifyTagged {
		return json.Marshal(exceptionWire{Type: frameTypeException, Message: message})
	}
	return []byte(message), nil
}

// toBackendAxes inverts fromBackendAxes: display (x, y, z) -> backend [x, -z, y].
func toBackendAxes(v types.Vec3) []float64 {
	return []float64{v.X, -v.Z, v.Y}
}

func ptr(f float64) *float64 {
	return &f
}
