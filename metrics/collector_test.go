package metrics

import (
	"sync"
	"testing"
)

func TestCollector_Counters(t *testing.T) {
	c := NewCollector("sess-1", "ws://localhost:8000/robotcrane", "data")

	c.IncConnectSuccess()
	c.IncFramesReceived()
	c.IncFramesReceived()
	c.IncFramesReceived()
	c.IncDimensionsFrames()
	c.IncPoseFrames()
	c.IncExceptionFrames()
	c.IncDecodeErrors()
	c.IncUnrecognized()
	c.IncCommandSent("move_actuators")
	c.IncCommandSent("move_actuators")
	c.IncCommandSent("reset_robot")
	c.IncSendFailure()
	c.IncTicks()
	c.IncRenders()
	c.IncPosesApplied()
	c.IncExceptions()
	c.IncRecoveries()
	c.IncHistoryWriteSuccess()
	c.IncHistoryWriteSuccess()
	c.IncHistoryWriteFailure()

	s := c.Snapshot()

	tests := []struct {
		name string
		got  int64
		want int64
	}{
		{"ConnectSuccess", s.ConnectSuccess, 1},
		{"ConnectFailure", s.ConnectFailure, 0},
		{"FramesReceived", s.FramesReceived, 3},
		{"DimensionsFrames", s.DimensionsFrames, 1},
		{"PoseFrames", s.PoseFrames, 1},
		{"ExceptionFrames", s.ExceptionFrames, 1},
		{"DecodeErrors", s.DecodeErrors, 1},
		{"Unrecognized", s.Unrecognized, 1},
		{"CommandsSent", s.CommandsSent, 3},
		{"SendFailures", s.SendFailures, 1},
		{"Ticks", s.Ticks, 1},
		{"Renders", s.Renders, 1},
		{"PosesApplied", s.PosesApplied, 1},
		{"Exceptions", s.Exceptions, 1},
		{"Recoveries", s.Recoveries, 1},
		{"HistoryWriteSuccess", s.HistoryWriteSuccess, 2},
		{"HistoryWriteFailure", s.HistoryWriteFailure, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %d, want %d", tt.name, tt.got, tt.want)
			}
		})
	}

	if s.CommandsByAction["move_actuators"] != 2 {
		t.Errorf("CommandsByAction[move_actuators] = %d, want 2", s.CommandsByAction["move_actuators"])
	}
	if s.CommandsByAction["reset_robot"] != 1 {
		t.Errorf("CommandsByAction[reset_robot] = %d, want 1", s.CommandsByAction["reset_robot"])
	}
}

func TestCollector_Dimensions(t *testing.T) {
	c := NewCollector("sess-42", "ws://robot:9000/robotcrane", "legacy")
	s := c.Snapshot()

	if s.SessionID != "sess-42" {
		t.Errorf("SessionID = %q, want %q", s.SessionID, "sess-42")
	}
	if s.Endpoint != "ws://robot:9000/robotcrane" {
		t.Errorf("Endpoint = %q", s.Endpoint)
	}
	if s.Dialect != "legacy" {
		t.Errorf("Dialect = %q, want %q", s.Dialect, "legacy")
	}
}

func TestCollector_SnapshotImmutability(t *testing.T) {
	c := NewCollector("sess-1", "", "data")
	c.IncPosesApplied()
	c.IncCommandSent("get_pose")

	s1 := c.Snapshot()

	c.IncPosesApplied()
	c.IncCommandSent("get_pose")

	if s1.PosesApplied != 1 {
		t.Errorf("s1.PosesApplied = %d, want 1 (snapshot should be frozen)", s1.PosesApplied)
	}
	if s1.CommandsByAction["get_pose"] != 1 {
		t.Errorf("s1.CommandsByAction[get_pose] = %d, want 1", s1.CommandsByAction["get_pose"])
	}

	// Mutating the snapshot map must not leak back.
	s1.CommandsByAction["get_pose"] = 999
	s2 := c.Snapshot()
	if s2.CommandsByAction["get_pose"] != 2 {
		t.Errorf("s2.CommandsByAction[get_pose] = %d, want 2", s2.CommandsByAction["get_pose"])
	}
	if s2.PosesApplied != 2 {
		t.Errorf("s2.PosesApplied = %d, want 2", s2.PosesApplied)
	}
}

func TestCollector_NilReceiverSafety(t *testing.T) {
	var c *Collector

	// None of these should panic
	c.IncConnectSuccess()
	c.IncConnectFailure()
	c.IncFramesReceived()
	c.IncDecodeErrors()
	c.IncDimensionsFrames()
	c.IncPoseFrames()
	c.IncExceptionFrames()
	c.IncUnrecognized()
	c.IncCommandSent("reset_robot")
	c.IncSendFailure()
	c.IncTicks()
	c.IncRenders()
	c.IncPosesApplied()
	c.IncExceptions()
	c.IncRecoveries()
	c.IncHistoryWriteSuccess()
	c.IncHistoryWriteFailure()

	s := c.Snapshot()
	if s.FramesReceived != 0 {
		t.Errorf("nil collector snapshot FramesReceived = %d, want 0", s.FramesReceived)
	}
	if s.CommandsByAction != nil {
		t.Errorf("nil collector snapshot CommandsByAction should be nil, got %v", s.CommandsByAction)
	}
}

func TestCollector_ConcurrentAccess(t *testing.T) {
	c := NewCollector("sess-1", "", "data")
	const goroutines = 10
	const iterations = 1000

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for range goroutines {
		go func() {
			defer wg.Done()
			for range iterations {
				c.IncFramesReceived()
				c.IncCommandSent("get_pose")
				c.IncTicks()
			}
		}()
	}

	wg.Wait()

	s := c.Snapshot()
	want := int64(goroutines * iterations)

	if s.FramesReceived != want {
		t.Errorf("FramesReceived = %d, want %d", s.FramesReceived, want)
	}
	if s.CommandsByAction["get_pose"] != want {
		t.Errorf("CommandsByAction[get_pose] = %d, want %d", s.CommandsByAction["get_pose"], want)
	}
	if s.Ticks != want {
		t.Errorf("Ticks = %d, want %d", s.Ticks, want)
	}
}
