package types

import "time"

// PoseRecord is one accepted pose in the history of a session.
// Joints are in display axes; thetas are cumulative radians.
type PoseRecord struct {
	SessionID  string     `json:"session_id"`
	Revision   uint64     `json:"revision"`
	ReceivedAt time.Time  `json:"received_at"`
	Joints     [7]Vec3    `json:"joints"`
	Thetas     [4]float64 `json:"thetas"`
}

// NewPoseRecord builds a history record from a pose.
func NewPoseRecord(sessionID string, revision uint64, receivedAt time.Time, p Pose) *PoseRecord {
	return &PoseRecord{
		SessionID:  sessionID,
		Revision:   revision,
		ReceivedAt: receivedAt.UTC(),
		Joints:     p.Joints(),
		Thetas:     p.Thetas(),
	}
}

// Pose rebuilds the pose the record was taken from.
func (r *PoseRecord) Pose() Pose {
	j := r.Joints
	return Pose{
		J1: j[0], J2: j[1], J3: j[2], J4: j[3], J5: j[4], J6: j[5], J7: j[6],
		Theta0: r.Thetas[0],
		Theta1: r.Thetas[1],
		Theta2: r.Thetas[2],
		Theta3: r.Thetas[3],
	}
}
