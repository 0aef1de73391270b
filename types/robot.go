// Package types defines core domain types for the craneview client.
//
//nolint:revive // types is a common Go package naming convention
package types

import "fmt"

// Vec3 is a point or offset in display coordinates (Y is up).
type Vec3 struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
	Z float64 `json:"z" msgpack:"z"`
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%.4f, %.4f, %.4f)", v.X, v.Y, v.Z)
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Dimensions holds the link lengths of the crane in display convention.
// D4 is already sign-flipped relative to the backend's d_4.
type Dimensions struct {
	// L1 is the base column length.
	L1 float64 `json:"l1"`
	// L2 is the upper arm length.
	L2 float64 `json:"l2"`
	// L3 is the lower arm length.
	L3 float64 `json:"l3"`
	// D4 is the wrist extension length.
	D4 float64 `json:"d4"`
	// L5 is the gripper length.
	L5 float64 `json:"l5"`
	// L7 is the maximum jaw extension length.
	L7 float64 `json:"l7"`
}

// DefaultDimensions returns the dimensions assumed before the backend sends any.
// Matches the backend's stock crane (d_4 = -0.2, flipped).
func DefaultDimensions() Dimensions {
	return Dimensions{L1: 1.0, L2: 0.4, L3: 0.4, D4: 0.2, L5: 0.1, L7: 0.1}
}

// Pose is a full robot configuration: seven joint positions in display axes
// and four cumulative joint angles in radians.
type Pose struct {
	J1 Vec3 `json:"j1"`
	J2 Vec3 `json:"j2"`
	J3 Vec3 `json:"j3"`
	J4 Vec3 `json:"j4"`
	J5 Vec3 `json:"j5"`
	J6 Vec3 `json:"j6"`
	J7 Vec3 `json:"j7"`

	// Theta0 is the origin rotation.
	Theta0 float64 `json:"theta0"`
	// Theta1 is the swing rotation.
	Theta1 float64 `json:"theta1"`
	// Theta2 is the elbow rotation.
	Theta2 float64 `json:"theta2"`
	// Theta3 is the wrist rotation.
	Theta3 float64 `json:"theta3"`
}

// DefaultPose returns the resting pose drawn before the first pose frame.
func DefaultPose() Pose {
	return Pose{
		J1: Vec3{0.0, 0.0, 0.0},
		J2: Vec3{0.0, 0.7, 0.0},
		J3: Vec3{0.4, 0.7, 0.0},
		J4: Vec3{0.8, 0.7, 0.0},
		J5: Vec3{0.8, 0.5, 0.0},
		J6: Vec3{0.9, 0.5, 0.0},
		J7: Vec3{1.0, 0.5, 0.0},
	}
}

// Joints returns the joint positions ordered from the base outward.
func (p Pose) Joints() [7]Vec3 {
	return [7]Vec3{p.J1, p.J2, p.J3, p.J4, p.J5, p.J6, p.J7}
}

// Thetas returns the joint angles ordered from the base outward.
func (p Pose) Thetas() [4]float64 {
	return [4]float64{p.Theta0, p.Theta1, p.Theta2, p.Theta3}
}
