// Package metrics provides per-session counters.
//
// The Collector accumulates counters during a single session. It is a leaf
// package with no internal dependencies.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all session metrics.
type Snapshot struct {
	// Connection
	ConnectSuccess int64
	ConnectFailure int64

	// Inbound frames
	FramesReceived   int64
	DecodeErrors     int64
	DimensionsFrames int64
	PoseFrames       int64
	ExceptionFrames  int64
	Unrecognized     int64

	// Commands
	CommandsSent     int64
	SendFailures     int64
	CommandsByAction map[string]int64

	// Sync loop
	Ticks        int64
	Renders      int64
	PosesApplied int64
	Exceptions   int64
	Recoveries   int64

	// History
	HistoryWriteSuccess int64
	HistoryWriteFailure int64

	// Dimensions (informational, set at construction)
	SessionID string
	Endpoint  string
	Dialect   string
}

// Collector accumulates metrics during a single session.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	connectSuccess int64
	connectFailure int64

	framesReceived   int64
	decodeErrors     int64
	dimensionsFrames int64
	poseFrames       int64
	exceptionFrames  int64
	unrecognized     int64

	commandsSent     int64
	sendFailures     int64
	commandsByAction map[string]int64

	ticks        int64
	renders      int64
	posesApplied int64
	exceptions   int64
	recoveries   int64

	historyWriteSuccess int64
	historyWriteFailure int64

	sessionID string
	endpoint  string
	dialect   string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(sessionID, endpoint, dialect string) *Collector {
	return &Collector{
		commandsByAction: make(map[string]int64),
		sessionID:        sessionID,
		endpoint:         endpoint,
		dialect:          dialect,
	}
}

func (c *Collector) inc(field *int64) {
	c.mu.Lock()
	*field++
	c.mu.Unlock()
}

// --- Connection ---

// IncConnectSuccess records a channel that opened.
func (c *Collector) IncConnectSuccess() {
	if c == nil {
		return
	}
	c.inc(&c.connectSuccess)
}

// IncConnectFailure records a channel that failed to open or dropped.
func (c *Collector) IncConnectFailure() {
	if c == nil {
		return
	}
	c.inc(&c.connectFailure)
}

// --- Inbound frames ---

// IncFramesReceived records a raw inbound frame.
func (c *Collector) IncFramesReceived() {
	if c == nil {
		return
	}
	c.inc(&c.framesReceived)
}

// IncDecodeErrors records a dropped frame.
func (c *Collector) IncDecodeErrors() {
	if c == nil {
		return
	}
	c.inc(&c.decodeErrors)
}

// IncDimensionsFrames records an accepted dimensions frame.
func (c *Collector) IncDimensionsFrames() {
	if c == nil {
		return
	}
	c.inc(&c.dimensionsFrames)
}

// IncPoseFrames records an accepted pose frame.
func (c *Collector) IncPoseFrames() {
	if c == nil {
		return
	}
	c.inc(&c.poseFrames)
}

// IncExceptionFrames records a backend exception notice.
func (c *Collector) IncExceptionFrames() {
	if c == nil {
		return
	}
	c.inc(&c.exceptionFrames)
}

// IncUnrecognized records a frame that matched no classifier.
func (c *Collector) IncUnrecognized() {
	if c == nil {
		return
	}
	c.inc(&c.unrecognized)
}

// --- Commands ---

// IncCommandSent records a command written to the channel.
func (c *Collector) IncCommandSent(action string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.commandsSent++
	c.commandsByAction[action]++
	c.mu.Unlock()
}

// IncSendFailure records a command that could not be written.
func (c *Collector) IncSendFailure() {
	if c == nil {
		return
	}
	c.inc(&c.sendFailures)
}

// --- Sync loop ---

// IncTicks records a sync loop tick.
func (c *Collector) IncTicks() {
	if c == nil {
		return
	}
	c.inc(&c.ticks)
}

// IncRenders records a render callback.
func (c *Collector) IncRenders() {
	if c == nil {
		return
	}
	c.inc(&c.renders)
}

// IncPosesApplied records a revision applied to the kinematic chain.
func (c *Collector) IncPosesApplied() {
	if c == nil {
		return
	}
	c.inc(&c.posesApplied)
}

// IncExceptions records an exception surfaced to the user.
func (c *Collector) IncExceptions() {
	if c == nil {
		return
	}
	c.inc(&c.exceptions)
}

// IncRecoveries records a recovery action.
func (c *Collector) IncRecoveries() {
	if c == nil {
		return
	}
	c.inc(&c.recoveries)
}

// --- History ---

// IncHistoryWriteSuccess records a successful history batch write.
func (c *Collector) IncHistoryWriteSuccess() {
	if c == nil {
		return
	}
	c.inc(&c.historyWriteSuccess)
}

// IncHistoryWriteFailure records a failed history batch write.
func (c *Collector) IncHistoryWriteFailure() {
	if c == nil {
		return
	}
	c.inc(&c.historyWriteFailure)
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byAction := make(map[string]int64, len(c.commandsByAction))
	for k, v := range c.commandsByAction {
		byAction[k] = v
	}

	return Snapshot{
		ConnectSuccess: c.connectSuccess,
		ConnectFailure: c.connectFailure,

		FramesReceived:   c.framesReceived,
		DecodeErrors:     c.decodeErrors,
		DimensionsFrames: c.dimensionsFrames,
		PoseFrames:       c.poseFrames,
		ExceptionFrames:  c.exceptionFrames,
		Unrecognized:     c.unrecognized,

		CommandsSent:     c.commandsSent,
		SendFailures:     c.sendFailures,
		CommandsByAction: byAction,

		Ticks:        c.ticks,
		Renders:      c.renders,
		PosesApplied: c.posesApplied,
		Exceptions:   c.exceptions,
		Recoveries:   c.recoveries,

		HistoryWriteSuccess: c.historyWriteSuccess,
		HistoryWriteFailure: c.historyWriteFailure,

		SessionID: c.sessionID,
		Endpoint:  c.endpoint,
		Dialect:   c.dialect,
	}
}
