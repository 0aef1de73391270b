package types

import (
	"errors"
	"fmt"
	"math"
)

// Action names a backend operation.
type Action string

// Backend actions.
const (
	ActionResetRobot                   Action = "reset_robot"
	ActionGetPose                      Action = "get_pose"
	ActionInitializeRobot              Action = "initialize_robot"
	ActionMoveActuators                Action = "move_actuators"
	ActionMoveEndEffector              Action = "move_end_effector"
	ActionMoveOrigin                   Action = "move_origin"
	ActionMoveOriginControlEndEffector Action = "move_origin_control_end_effector"
)

// Actions returns every known action in declaration order.
func Actions() []Action {
	return []Action{
		ActionResetRobot,
		ActionGetPose,
		ActionInitializeRobot,
		ActionMoveActuators,
		ActionMoveEndEffector,
		ActionMoveOrigin,
		ActionMoveOriginControlEndEffector,
	}
}

// ParseAction returns the Action for s, or an error if s is not a known action.
func ParseAction(s string) (Action, error) {
	for _, a := range Actions() {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// ActuatorStates are joint-space targets.
// Angles are in degrees; the backend converts them.
type ActuatorStates struct {
	// D1 is the lift height.
	D1 float64
	// Theta1 is the swing angle.
	Theta1 float64
	// Theta2 is the elbow angle.
	Theta2 float64
	// Theta3 is the wrist angle.
	Theta3 float64
	// L6 is the jaw opening.
	L6 float64
}

// EndEffectorTarget is a Cartesian target for the gripper.
type EndEffectorTarget struct {
	X             float64
	Y             float64
	Z             float64
	Phi           float64
	DoOpenGripper bool
}

// OriginTarget is a new position and heading for the robot base.
type OriginTarget struct {
	X   float64
	Y   float64
	Z   float64
	Phi float64
}

// Command is an action plus an optional payload.
// Payload is nil, ActuatorStates, EndEffectorTarget or OriginTarget.
type Command struct {
	Action  Action
	Payload any
}

// ErrNonFinite is returned when a command carries NaN or Inf.
var ErrNonFinite = errors.New("command contains a non-finite number")

// Validate checks that every numeric field is finite.
// Ranges are not checked: the backend decides what is reachable.
func (c Command) Validate() error {
	var values []float64
	switch p := c.Payload.(type) {
	case nil:
		return nil
	case ActuatorStates:
		values = []float64{p.D1, p.Theta1, p.Theta2, p.Theta3, p.L6}
	case EndEffectorTarget:
		values = []float64{p.X, p.Y, p.Z, p.Phi}
	case OriginTarget:
		values = []float64{p.X, p.Y, p.Z, p.Phi}
	default:
		return fmt.Errorf("unsupported payload type %T for %s", c.Payload, c.Action)
	}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s: %w", c.Action, ErrNonFinite)
		}
	}
	return nil
}
