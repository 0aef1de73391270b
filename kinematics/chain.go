// Package kinematics places the crane's eight links from dimensions and a pose.
//
// The chain is fixed: each link hangs off a pivot at one of the pose's joint
// positions, rotates about the vertical (Y) axis by the cumulative joint
// angle up to that link, and is offset from its pivot in local space. Apply
// is a pure function; it has no side effects and no error path.
package kinematics

import (
	"fmt"
	"math"

	"github.com/pithecene-io/craneview/types"
)

// Fixed gripper geometry not carried by Dimensions.
const (
	// LinkThickness is the cross-section of the arm links.
	LinkThickness = 0.05
	// JawThickness is the thickness of each gripper jaw.
	JawThickness = 0.01
)

// Link identifies a segment of the chain, base first.
type Link int

const (
	LinkLift Link = iota
	LinkUpperArm
	LinkLowerArm
	LinkWristExtension
	LinkGripperBody
	LinkFixedJaw
	LinkGripperExtension
	LinkMoveableJaw

	// NumLinks is the number of links in the chain.
	NumLinks = 8
)

var linkNames = [NumLinks]string{
	"lift",
	"upper_arm",
	"lower_arm",
	"wrist_extension",
	"gripper_body",
	"fixed_jaw",
	"gripper_extension",
	"moveable_jaw",
}

func (l Link) String() string {
	if l < 0 || int(l) >= NumLinks {
		return fmt.Sprintf("link(%d)", int(l))
	}
	return linkNames[l]
}

// Links returns every link in chain order.
func Links() [NumLinks]Link {
	var out [NumLinks]Link
	for i := range out {
		out[i] = Link(i)
	}
	return out
}

// LinkTransform is the placement of one link.
type LinkTransform struct {
	Link Link
	// Pivot is the absolute pivot position in display axes.
	Pivot types.Vec3
	// RotationY is the absolute rotation about the vertical axis, in radians.
	RotationY float64
	// Offset is the link center relative to the pivot, in the pivot's local frame.
	Offset types.Vec3
}

// Center returns the absolute position of the link center.
func (t LinkTransform) Center() types.Vec3 {
	return t.Pivot.Add(rotateY(t.Offset, t.RotationY))
}

// rotateY rotates v about the Y axis by theta radians (right-handed).
func rotateY(v types.Vec3, theta float64) types.Vec3 {
	sin, cos := math.Sincos(theta)
	return types.Vec3{
		X: v.X*cos + v.Z*sin,
		Y: v.Y,
		Z: -v.X*sin + v.Z*cos,
	}
}

// Apply computes the eight link transforms for dims and pose.
//
// Rotation accumulates theta0, theta1 and theta2 along the arm; from the
// wrist outward every link uses the full theta0+theta1+theta2+theta3 sum.
// Both jaws share fixed offsets; the moveable jaw shares the last pivot.
func Apply(dims types.Dimensions, pose types.Pose) [NumLinks]LinkTransform {
	th := pose.Thetas()
	lift := th[0]
	upper := lift + th[1]
	lower := upper + th[2]
	full := lower + th[3]

	jaw := types.Vec3{X: -JawThickness / 2, Y: -LinkThickness}

	return [NumLinks]LinkTransform{
		{Link: LinkLift, Pivot: pose.J1, RotationY: lift, Offset: types.Vec3{Y: dims.L1 / 2}},
		{Link: LinkUpperArm, Pivot: pose.J2, RotationY: upper, Offset: types.Vec3{X: dims.L2 / 2}},
		{Link: LinkLowerArm, Pivot: pose.J3, RotationY: lower, Offset: types.Vec3{X: dims.L3 / 2}},
		{Link: LinkWristExtension, Pivot: pose.J4, RotationY: full, Offset: types.Vec3{Y: -dims.D4 / 2}},
		{Link: LinkGripperBody, Pivot: pose.J5, RotationY: full, Offset: types.Vec3{X: dims.L5 / 2}},
		{Link: LinkFixedJaw, Pivot: pose.J6, RotationY: full, Offset: jaw},
		{Link: LinkGripperExtension, Pivot: pose.J7, RotationY: full, Offset: types.Vec3{X: -dims.L7 / 2}},
		{Link: LinkMoveableJaw, Pivot: pose.J7, RotationY: full, Offset: jaw},
	}
}
