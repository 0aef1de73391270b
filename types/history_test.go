package types

import (
	"testing"
	"time"
)

func TestPoseRecord_RoundTripsPose(t *testing.T) {
	p := DefaultPose()
	p.Theta0 = 0.1
	p.Theta3 = -0.4

	at := time.Date(2026, 5, 4, 10, 0, 0, 0, time.FixedZone("X", 3600))
	rec := NewPoseRecord("sess-1", 7, at, p)

	if rec.Pose() != p {
		t.Errorf("Pose() = %+v, want %+v", rec.Pose(), p)
	}
	if rec.ReceivedAt.Location() != time.UTC {
		t.Error("ReceivedAt should be normalized to UTC")
	}
	if rec.Revision != 7 || rec.SessionID != "sess-1" {
		t.Errorf("unexpected record %+v", rec)
	}
}
