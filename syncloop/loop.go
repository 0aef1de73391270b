// Package syncloop polls the state store once per display frame and hands
// freshly placed links to the renderer.
//
// The loop compares a cached revision against the store's counter; it never
// diffs poses by value. A pending backend exception is drained exactly once
// per occurrence, surfaced through the Notifier, and followed by the
// configured recovery.
package syncloop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pithecene-io/craneview/kinematics"
	"github.com/pithecene-io/craneview/log"
	"github.com/pithecene-io/craneview/metrics"
	"github.com/pithecene-io/craneview/state"
	"github.com/pithecene-io/craneview/types"
)

// DefaultFrameRate is used when Options.FrameRate is zero.
const DefaultFrameRate = 30

// resetTimeout bounds the recovery reset write.
const resetTimeout = 5 * time.Second

// BackendException is an exception notice surfaced to the user.
type BackendException struct {
	Message string
}

func (e *BackendException) Error() string {
	return e.Message
}

// IsBackendException returns true if err is or wraps a *BackendException.
func IsBackendException(err error) bool {
	var be *BackendException
	return errors.As(err, &be)
}

// Recovery selects what the loop does after surfacing an exception.
type Recovery int

const (
	// RecoverReset sends a reset command and keeps the loop running.
	RecoverReset Recovery = iota
	// RecoverCancel stops the loop.
	RecoverCancel
)

func (r Recovery) String() string {
	switch r {
	case RecoverReset:
		return "reset"
	case RecoverCancel:
		return "cancel"
	default:
		return fmt.Sprintf("unknown(%d)", int(r))
	}
}

// ParseRecovery parses a recovery name. Empty selects RecoverReset.
func ParseRecovery(s string) (Recovery, error) {
	switch strings.ToLower(s) {
	case "", "reset":
		return RecoverReset, nil
	case "cancel":
		return RecoverCancel, nil
	default:
		return 0, fmt.Errorf("invalid recovery: %q (must be reset or cancel)", s)
	}
}

// Frame is what the renderer receives on every tick.
type Frame struct {
	// Changed is true when a new revision was applied this tick.
	Changed    bool
	Revision   uint64
	Dimensions types.Dimensions
	Pose       types.Pose
	Links      [kinematics.NumLinks]kinematics.LinkTransform
}

// Renderer draws one frame. Render runs on the loop's goroutine.
type Renderer interface {
	Render(f Frame)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(f Frame)

// Render calls fn(f).
func (fn RendererFunc) Render(f Frame) { fn(f) }

// Notifier surfaces a backend exception to the user.
type Notifier interface {
	Notify(exc *BackendException)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(exc *BackendException)

// Notify calls fn(exc).
func (fn NotifierFunc) Notify(exc *BackendException) { fn(exc) }

// Resetter issues the recovery reset. *command.Gateway satisfies it.
type Resetter interface {
	ResetRobot(ctx context.Context) error
}

// Options configures a Loop.
type Options struct {
	// Notifier may be nil; exceptions are then only logged.
	Notifier Notifier
	Recovery Recovery
	// Resetter is required for RecoverReset.
	Resetter Resetter
	// FrameRate is the Run tick rate in frames per second.
	FrameRate int
	Logger    *log.Logger
	Collector *metrics.Collector
}

// Loop is the per-frame poll. Ticks are serialized; a Loop never runs
// concurrently with itself.
type Loop struct {
	store     *state.Store
	renderer  Renderer
	notifier  Notifier
	recovery  Recovery
	resetter  Resetter
	interval  time.Duration
	logger    *log.Logger
	collector *metrics.Collector

	tickMu   sync.Mutex
	lastSeen uint64
	frame    Frame

	stopped  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
}

// New creates a loop whose cache starts at the store's current revision.
func New(store *state.Store, renderer Renderer, opts Options) (*Loop, error) {
	if store == nil {
		return nil, errors.New("syncloop: store is required")
	}
	if renderer == nil {
		return nil, errors.New("syncloop: renderer is required")
	}
	if opts.Recovery == RecoverReset && opts.Resetter == nil {
		return nil, errors.New("syncloop: reset recovery requires a resetter")
	}
	if opts.FrameRate < 0 {
		return nil, fmt.Errorf("syncloop: frame rate must be positive, got %d", opts.FrameRate)
	}
	if opts.FrameRate == 0 {
		opts.FrameRate = DefaultFrameRate
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNop()
	}

	snap := store.Snapshot()
	return &Loop{
		store:     store,
		renderer:  renderer,
		notifier:  opts.Notifier,
		recovery:  opts.Recovery,
		resetter:  opts.Resetter,
		interval:  time.Second / time.Duration(opts.FrameRate),
		logger:    opts.Logger.Named("sync"),
		collector: opts.Collector,
		lastSeen:  snap.Revision,
		frame:     frameFrom(snap),
		stopCh:    make(chan struct{}),
	}, nil
}

// LastSeen returns the cached revision.
func (l *Loop) LastSeen() uint64 {
	l.tickMu.Lock()
	defer l.tickMu.Unlock()
	return l.lastSeen
}

// Stopped reports whether the loop has been stopped.
func (l *Loop) Stopped() bool {
	return l.stopped.Load()
}

// Stop stops the loop. Pending and future ticks become no-ops.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		l.stopped.Store(true)
		close(l.stopCh)
	})
}

// Tick runs one frame: drain a pending exception and recover, then apply a
// new revision if there is one, then render. It reports whether the loop is
// still running.
func (l *Loop) Tick(ctx context.Context) bool {
	l.tickMu.Lock()
	defer l.tickMu.Unlock()

	if l.stopped.Load() {
		return false
	}
	l.collector.IncTicks()

	if msg, ok := l.store.TakeException(); ok {
		if !l.surface(ctx, &BackendException{Message: msg}) {
			return false
		}
	}

	changed := false
	if l.store.Revision() != l.lastSeen {
		snap := l.store.Snapshot()
		l.frame = frameFrom(snap)
		l.lastSeen = snap.Revision
		l.collector.IncPosesApplied()
		changed = true
	}

	f := l.frame
	f.Changed = changed
	l.renderer.Render(f)
	l.collector.IncRenders()
	return true
}

// Run ticks at the configured frame rate until ctx is done or Stop is
// called. It returns nil when stopped and ctx.Err() when ctx ends first.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.Stop()
			return ctx.Err()
		case <-l.stopCh:
			return nil
		case <-ticker.C:
			if !l.Tick(ctx) {
				return nil
			}
		}
	}
}

// surface notifies exc and applies the recovery policy. It reports whether
// the tick should continue.
func (l *Loop) surface(ctx context.Context, exc *BackendException) bool {
	l.collector.IncExceptions()
	l.logger.Warn("backend exception surfaced", map[string]any{
		"message":  exc.Message,
		"recovery": l.recovery.String(),
	})
	if l.notifier != nil {
		l.notifier.Notify(exc)
	}

	l.collector.IncRecoveries()
	switch l.recovery {
	case RecoverCancel:
		l.Stop()
		return false
	default:
		resetCtx, cancel := context.WithTimeout(ctx, resetTimeout)
		defer cancel()
		if err := l.resetter.ResetRobot(resetCtx); err != nil {
			l.logger.Error("recovery reset failed", map[string]any{"error": err.Error()})
		}
		return true
	}
}

func frameFrom(snap state.Snapshot) Frame {
	return Frame{
		Revision:   snap.Revision,
		Dimensions: snap.Dimensions,
		Pose:       snap.Pose,
		Links:      kinematics.Apply(snap.Dimensions, snap.Pose),
	}
}
