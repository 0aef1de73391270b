// Package session owns the single duplex channel to the crane backend.
//
// A Session dials lazily on the first Ready call and shares the one channel
// with every later caller. Inbound frames are decoded on a single read loop
// goroutine, in arrival order, and merged into the state store.
//
// Lifecycle:
//
//	Idle -> Connecting -> Open -> Closed
//
// There is no reconnect: once Closed, every Ready and Send fails with a
// *ConnectionError and the owner must construct a new Session.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pithecene-io/craneview/log"
	"github.com/pithecene-io/craneview/metrics"
	"github.com/pithecene-io/craneview/state"
	"github.com/pithecene-io/craneview/types"
	"github.com/pithecene-io/craneview/wire"
)

// DefaultDialTimeout bounds channel establishment when Options.DialTimeout is zero.
const DefaultDialTimeout = 10 * time.Second

// closeGrace bounds the close handshake write.
const closeGrace = time.Second

// State is the session lifecycle state.
type State int

const (
	// StateIdle means no dial has been attempted yet.
	StateIdle State = iota
	// StateConnecting means a dial is in flight.
	StateConnecting
	// StateOpen means the channel is established.
	StateOpen
	// StateClosed is terminal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// FrameObserver receives every raw inbound frame before it is decoded.
// Observers run on the read loop and must not block.
type FrameObserver interface {
	ObserveFrame(receivedAt time.Time, frame []byte)
}

// PoseObserver receives every accepted pose with the revision it produced.
// Observers run on the read loop and must not block.
type PoseObserver interface {
	ObservePose(receivedAt time.Time, revision uint64, pose types.Pose)
}

// Options configures a Session.
type Options struct {
	// Endpoint is the ws:// or wss:// URL of the backend.
	Endpoint string
	// Store receives decoded state. Required.
	Store *state.Store
	// Codec defaults to wire.DefaultCodec().
	Codec *wire.Codec
	// Dial defaults to WebsocketDialer(nil).
	Dial DialFunc
	// DialTimeout defaults to DefaultDialTimeout.
	DialTimeout time.Duration
	// Logger defaults to a no-op logger.
	Logger *log.Logger
	// Collector may be nil.
	Collector *metrics.Collector

	FrameObservers []FrameObserver
	PoseObservers  []PoseObserver
}

// Channel is the shared handle to an open channel.
// All senders share one Channel; only the Session may close it.
type Channel struct {
	mu   sync.Mutex
	conn Conn
}

// write sends one text frame. Writes are serialized so frames are never
// interleaved on the wire.
func (c *Channel) write(ctx context.Context, frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
		defer func() { _ = c.conn.SetWriteDeadline(time.Time{}) }()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

// Session owns one channel to the backend.
type Session struct {
	endpoint    string
	store       *state.Store
	codec       *wire.Codec
	dial        DialFunc
	dialTimeout time.Duration
	logger      *log.Logger
	collector   *metrics.Collector
	frameObs    []FrameObserver
	poseObs     []PoseObserver

	// baseCtx is canceled by Close; the shared dial runs under it so a
	// canceled Ready caller does not abort the dial for everyone else.
	baseCtx context.Context
	cancel  context.CancelFunc

	dialOnce sync.Once
	settled  chan struct{} // closed once the dial succeeded or failed
	done     chan struct{} // closed when the read loop exits

	mu      sync.Mutex
	state   State
	channel *Channel
	err     error // terminal error once Closed

	closeOnce sync.Once
}

// New creates an idle session. No network activity happens until Ready.
func New(opts Options) (*Session, error) {
	if opts.Store == nil {
		return nil, errors.New("session: store is required")
	}
	u, err := url.Parse(opts.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("session: invalid endpoint: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("session: endpoint scheme must be ws or wss, got %q", u.Scheme)
	}

	if opts.Codec == nil {
		opts.Codec = wire.DefaultCodec()
	}
	if opts.Dial == nil {
		opts.Dial = WebsocketDialer(nil)
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = DefaultDialTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		endpoint:    opts.Endpoint,
		store:       opts.Store,
		codec:       opts.Codec,
		dial:        opts.Dial,
		dialTimeout: opts.DialTimeout,
		logger:      opts.Logger.Named("session"),
		collector:   opts.Collector,
		frameObs:    opts.FrameObservers,
		poseObs:     opts.PoseObservers,
		baseCtx:     ctx,
		cancel:      cancel,
		settled:     make(chan struct{}),
		done:        make(chan struct{}),
	}, nil
}

// Endpoint returns the backend URL.
func (s *Session) Endpoint() string {
	return s.endpoint
}

// Store returns the state store this session writes to.
func (s *Session) Store() *state.Store {
	return s.store
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the terminal error once the session is Closed, or nil.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed when the read loop has exited, or when the session is
// closed before it ever opened.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Ready returns the shared channel, dialing on first use.
//
// Concurrent and repeated callers all receive the same *Channel and the dial
// happens at most once. ctx only bounds how long this caller waits.
func (s *Session) Ready(ctx context.Context) (*Channel, error) {
	s.dialOnce.Do(func() {
		s.setState(StateConnecting)
		go s.connect()
	})

	// A settled session answers even for a done ctx.
	select {
	case <-s.settled:
	default:
		select {
		case <-s.settled:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOpen {
		return nil, s.terminalErrorLocked()
	}
	return s.channel, nil
}

// Send encodes cmd and writes it to the channel, waiting for the channel to
// open if needed. It returns once the frame is written; it never waits for a
// backend response. Write failures are returned, not retried.
func (s *Session) Send(ctx context.Context, cmd types.Command) error {
	frame, err := s.codec.Encode(cmd)
	if err != nil {
		return err
	}

	ch, err := s.Ready(ctx)
	if err != nil {
		s.collector.IncSendFailure()
		return err
	}

	if err := ch.write(ctx, frame); err != nil {
		s.collector.IncSendFailure()
		s.logger.Warn("command write failed", map[string]any{
			"action": string(cmd.Action),
			"error":  err.Error(),
		})
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &ConnectionError{Op: OpWrite, Endpoint: s.endpoint, Err: err}
	}

	s.collector.IncCommandSent(string(cmd.Action))
	s.logger.Debug("command sent", map[string]any{
		"action": string(cmd.Action),
		"bytes":  len(frame),
	})
	return nil
}

// Close tears down the channel and moves the session to Closed.
// Close is idempotent and waits for the read loop to exit.
func (s *Session) Close() error {
	var closeErr error
	s.closeOnce.Do(func() {
		// A session closed before its first Ready never dials.
		neverDialed := false
		s.dialOnce.Do(func() {
			neverDialed = true
		})

		s.cancel()

		s.mu.Lock()
		wasOpen := s.state == StateOpen
		ch := s.channel
		s.state = StateClosed
		if s.err == nil {
			s.err = ErrClosed
		}
		s.mu.Unlock()

		if neverDialed {
			close(s.settled)
			close(s.done)
			return
		}

		<-s.settled
		if wasOpen && ch != nil {
			ch.mu.Lock()
			_ = ch.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(closeGrace))
			closeErr = ch.conn.Close()
			ch.mu.Unlock()
		}
		<-s.done
		s.logger.Info("session closed", nil)
	})
	return closeErr
}

func (s *Session) connect() {
	ctx, cancel := context.WithTimeout(s.baseCtx, s.dialTimeout)
	defer cancel()

	s.logger.Debug("dialing backend", nil)
	conn, err := s.dial(ctx, s.endpoint)

	s.mu.Lock()
	if err == nil && s.state == StateClosed {
		// Close raced the dial.
		_ = conn.Close()
		err = ErrClosed
	}
	if err != nil {
		closedByOwner := s.state == StateClosed
		s.state = StateClosed
		if s.err == nil {
			s.err = &ConnectionError{Op: OpDial, Endpoint: s.endpoint, Err: err}
		}
		s.mu.Unlock()

		if !closedByOwner {
			s.collector.IncConnectFailure()
			s.logger.Error("failed to open channel", map[string]any{"error": err.Error()})
		}
		close(s.settled)
		close(s.done)
		return
	}
	s.channel = &Channel{conn: conn}
	s.state = StateOpen
	s.mu.Unlock()

	s.collector.IncConnectSuccess()
	s.logger.Info("channel open", nil)
	close(s.settled)

	go s.readLoop(conn)
}

func (s *Session) readLoop(conn Conn) {
	defer close(s.done)

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			s.handleReadError(err)
			return
		}
		s.onFrame(time.Now(), frame)
	}
}

func (s *Session) handleReadError(err error) {
	s.mu.Lock()
	closedByOwner := s.state == StateClosed
	s.state = StateClosed
	if s.err == nil {
		s.err = &ConnectionError{Op: OpRead, Endpoint: s.endpoint, Err: err}
	}
	s.mu.Unlock()

	if closedByOwner {
		return
	}

	s.collector.IncConnectFailure()
	s.logger.Error("channel dropped", map[string]any{"error": err.Error()})
	_ = s.channelClose()
	// Surfaced to the user on the next sync loop tick.
	s.store.SetException(fmt.Sprintf("Connection lost: %v", err))
}

func (s *Session) channelClose() error {
	s.mu.Lock()
	ch := s.channel
	s.mu.Unlock()
	if ch == nil {
		return nil
	}
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.conn.Close()
}

// Feed processes frame as if it had arrived on the channel. Replay uses it
// to drive a session that never dials. Feed must not be called concurrently
// with an open read loop.
func (s *Session) Feed(receivedAt time.Time, frame []byte) {
	s.onFrame(receivedAt, frame)
}

// onFrame decodes one inbound frame and merges it into the store.
func (s *Session) onFrame(receivedAt time.Time, frame []byte) {
	s.collector.IncFramesReceived()
	for _, o := range s.frameObs {
		o.ObserveFrame(receivedAt, frame)
	}

	ev, err := s.codec.Decode(frame)
	if err != nil {
		s.collector.IncDecodeErrors()
		fields := map[string]any{"error": err.Error(), "bytes": len(frame)}
		var decErr *wire.DecodeError
		if errors.As(err, &decErr) {
			fields["kind"] = decErr.Kind.String()
		}
		s.logger.Warn("dropping undecodable frame", fields)
	} else if ev.Unrecognized() {
		s.collector.IncUnrecognized()
		s.logger.Debug("ignoring unrecognized frame", map[string]any{"bytes": len(frame)})
		return
	}

	// On error ev carries only the kinds that decoded cleanly.
	if ev.Has(wire.KindDimensions) {
		s.store.SetDimensions(ev.Dimensions)
		s.collector.IncDimensionsFrames()
	}
	if ev.Has(wire.KindPose) {
		rev := s.store.SetPose(ev.Pose)
		s.collector.IncPoseFrames()
		for _, o := range s.poseObs {
			o.ObservePose(receivedAt, rev, ev.Pose)
		}
	}
	if ev.Has(wire.KindException) {
		s.store.SetException(ev.Exception)
		s.collector.IncExceptionFrames()
		s.logger.Warn("backend exception", map[string]any{"message": ev.Exception})
	}
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	if s.state != StateClosed {
		s.state = st
	}
	s.mu.Unlock()
}

func (s *Session) terminalErrorLocked() error {
	var connErr *ConnectionError
	if errors.As(s.err, &connErr) {
		return connErr
	}
	return &ConnectionError{Op: OpClosed, Endpoint: s.endpoint, Err: s.err}
}
