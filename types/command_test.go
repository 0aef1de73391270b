package types

import (
	"errors"
	"math"
	"testing"
)

func TestCommand_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cmd     Command
		wantErr error
	}{
		{"no payload", Command{Action: ActionResetRobot}, nil},
		{"actuators in range", Command{Action: ActionMoveActuators, Payload: ActuatorStates{D1: 0.5, L6: 0.1}}, nil},
		// Out-of-range values are the backend's call.
		{"actuators out of range", Command{Action: ActionMoveActuators, Payload: ActuatorStates{Theta1: 400}}, nil},
		{"nan actuator", Command{Action: ActionMoveActuators, Payload: ActuatorStates{Theta2: math.NaN()}}, ErrNonFinite},
		{"inf end effector", Command{Action: ActionMoveEndEffector, Payload: EndEffectorTarget{X: math.Inf(1)}}, ErrNonFinite},
		{"inf origin phi", Command{Action: ActionMoveOrigin, Payload: OriginTarget{Phi: math.Inf(-1)}}, ErrNonFinite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCommand_ValidateUnsupportedPayload(t *testing.T) {
	err := Command{Action: ActionMoveOrigin, Payload: "nope"}.Validate()
	if err == nil {
		t.Fatal("expected error for unsupported payload")
	}
}

func TestParseAction(t *testing.T) {
	for _, a := range Actions() {
		got, err := ParseAction(string(a))
		if err != nil {
			t.Fatalf("ParseAction(%q): %v", a, err)
		}
		if got != a {
			t.Errorf("ParseAction(%q) = %q", a, got)
		}
	}
	if _, err := ParseAction("fly"); err == nil {
		t.Error("expected error for unknown action")
	}
}
