// Package command is the typed command API for the crane backend.
//
// Each Gateway method builds one payload and hands it to the Sender. Methods
// return once the frame is written and never wait for the backend's reply:
// outcomes arrive asynchronously as pose frames or exception notices.
// Actuator targets are forwarded unclamped; the backend is the source of
// truth for reachability.
package command

import (
	"context"

	"github.com/pithecene-io/craneview/types"
)

// Sender writes one command to the backend. *session.Session satisfies it.
type Sender interface {
	Send(ctx context.Context, cmd types.Command) error
}

// Gateway exposes one method per backend action.
type Gateway struct {
	sender Sender
}

// NewGateway creates a gateway over sender.
func NewGateway(sender Sender) *Gateway {
	return &Gateway{sender: sender}
}

// ResetRobot asks the backend to return to its default pose.
func (g *Gateway) ResetRobot(ctx context.Context) error {
	return g.sender.Send(ctx, types.Command{Action: types.ActionResetRobot})
}

// GetPose asks the backend to resend its current pose.
func (g *Gateway) GetPose(ctx context.Context) error {
	return g.sender.Send(ctx, types.Command{Action: types.ActionGetPose})
}

// InitializeRobot asks the backend to send dimensions and the initial pose.
func (g *Gateway) InitializeRobot(ctx context.Context) error {
	return g.sender.Send(ctx, types.Command{Action: types.ActionInitializeRobot})
}

// MoveActuators sets joint-space targets.
func (g *Gateway) MoveActuators(ctx context.Context, s types.ActuatorStates) error {
	return g.sender.Send(ctx, types.Command{Action: types.ActionMoveActuators, Payload: s})
}

// MoveEndEffector sets a Cartesian target for the gripper.
func (g *Gateway) MoveEndEffector(ctx context.Context, t types.EndEffectorTarget) error {
	return g.sender.Send(ctx, types.Command{Action: types.ActionMoveEndEffector, Payload: t})
}

// MoveOrigin moves the robot base.
func (g *Gateway) MoveOrigin(ctx context.Context, t types.OriginTarget) error {
	return g.sender.Send(ctx, types.Command{Action: types.ActionMoveOrigin, Payload: t})
}

// MoveOriginControlEndEffector moves the base while the backend keeps the
// end effector fixed in world space.
func (g *Gateway) MoveOriginControlEndEffector(ctx context.Context, t types.OriginTarget) error {
	return g.sender.Send(ctx, types.Command{Action: types.ActionMoveOriginControlEndEffector, Payload: t})
}

// Dispatch sends an already-built command, for surfaces that parse actions
// at runtime.
func (g *Gateway) Dispatch(ctx context.Context, cmd types.Command) error {
	return g.sender.Send(ctx, cmd)
}
