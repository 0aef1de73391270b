package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pithecene-io/craneview/adapter"
	"github.com/pithecene-io/craneview/cli/config"
	"github.com/pithecene-io/craneview/command"
	"github.com/pithecene-io/craneview/iox"
	"github.com/pithecene-io/craneview/lode"
	"github.com/pithecene-io/craneview/log"
	"github.com/pithecene-io/craneview/metrics"
	"github.com/pithecene-io/craneview/record"
	"github.com/pithecene-io/craneview/session"
	"github.com/pithecene-io/craneview/state"
	"github.com/pithecene-io/craneview/syncloop"
	"github.com/pithecene-io/craneview/types"
)

// liveSession is one connected crane session plus everything that observes
// it: recorder, pose history and the session-ended adapter.
type liveSession struct {
	id        sessionIdentity
	cfg       *config.Config
	logger    *log.Logger
	collector *metrics.Collector
	store     *state.Store
	sess      *session.Session
	gateway   *command.Gateway
	recorder  *record.Writer
	history   *historyPipeline
	notifier  adapter.Adapter
}

// sessionOptions are the inputs of startSession that do not come from config.
type sessionOptions struct {
	id     sessionIdentity
	logger *log.Logger
	// dial overrides the websocket dialer. Tests use it.
	dial session.DialFunc
}

// startSession builds the session and its observers. Nothing is dialed
// yet. On error every resource opened so far is released.
func startSession(ctx context.Context, cfg *config.Config, opts sessionOptions) (_ *liveSession, err error) {
	codec, err := newCodec(cfg)
	if err != nil {
		return nil, err
	}

	ls := &liveSession{
		id:        opts.id,
		cfg:       cfg,
		logger:    opts.logger,
		collector: metrics.NewCollector(opts.id.SessionID, opts.id.Endpoint, string(codec.Dialect())),
		store:     state.NewStore(),
	}
	defer func() {
		if err != nil {
			ls.release()
		}
	}()

	var frameObs []session.FrameObserver
	if cfg.Record != "" {
		ls.recorder, err = openRecording(cfg.Record, record.Header{
			SessionID:      opts.id.SessionID,
			Endpoint:       opts.id.Endpoint,
			Dialect:        string(codec.Dialect()),
			Classification: string(codec.Classification()),
			StartedAt:      opts.id.StartedAt,
			ClientVersion:  types.Version,
		})
		if err != nil {
			return nil, err
		}
		frameObs = append(frameObs, ls.recorder)
	}

	ls.history, err = buildHistory(ctx, cfg, opts.id.lodeConfig(cfg.Storage.Dataset), ls.collector, ls.logger)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	var poseObs []session.PoseObserver
	if ls.history != nil {
		poseObs = append(poseObs, ls.history.feed)
	}

	ls.notifier, err = buildAdapter(cfg.Adapter)
	if err != nil {
		return nil, fmt.Errorf("adapter: %w", err)
	}

	ls.sess, err = session.New(session.Options{
		Endpoint:       opts.id.Endpoint,
		Store:          ls.store,
		Codec:          codec,
		Dial:           opts.dial,
		DialTimeout:    cfg.DialTimeout.Duration,
		Logger:         ls.logger,
		Collector:      ls.collector,
		FrameObservers: frameObs,
		PoseObservers:  poseObs,
	})
	if err != nil {
		return nil, err
	}
	ls.gateway = command.NewGateway(ls.sess)
	return ls, nil
}

// release closes resources when startSession fails part way.
func (ls *liveSession) release() {
	var closers []io.Closer
	if ls.recorder != nil {
		closers = append(closers, ls.recorder)
	}
	if ls.history != nil {
		_ = ls.history.feed.Close(context.Background())
		closers = append(closers, ls.history.client)
	}
	if ls.notifier != nil {
		closers = append(closers, ls.notifier)
	}
	_ = iox.CloseAll(closers...)
}

// open dials the channel and, unless skipped, asks the backend for its
// dimensions and initial pose.
func (ls *liveSession) open(ctx context.Context, initialize bool) error {
	if _, err := ls.sess.Ready(ctx); err != nil {
		return err
	}
	if !initialize {
		return nil
	}
	return ls.gateway.InitializeRobot(ctx)
}

// newLoop builds the sync loop over this session's store.
func (ls *liveSession) newLoop(renderer syncloop.Renderer, notifier syncloop.Notifier) (*syncloop.Loop, error) {
	recovery, err := syncloop.ParseRecovery(ls.cfg.Recovery)
	if err != nil {
		return nil, err
	}
	return syncloop.New(ls.store, renderer, syncloop.Options{
		Notifier:  notifier,
		Recovery:  recovery,
		Resetter:  ls.gateway,
		FrameRate: ls.cfg.FPS,
		Logger:    ls.logger,
		Collector: ls.collector,
	})
}

// sessionReport is printed when a session ends.
type sessionReport struct {
	lode.SessionSummary
	DurationMs     int64  `json:"duration_ms"`
	Recording      string `json:"recording,omitempty"`
	RecordedFrames uint64 `json:"recorded_frames,omitempty"`
	SkippedFrames  uint64 `json:"skipped_frames,omitempty"`
	HistoryPath    string `json:"history_path,omitempty"`
	HistoryDropped int64  `json:"history_dropped,omitempty"`
	HistoryErrors  int64  `json:"history_errors,omitempty"`
}

// finish closes the session and runs every end-of-session step: recording,
// history summary, recording upload, adapter publish. Steps are best effort;
// their errors are joined into the returned error.
func (ls *liveSession) finish(ctx context.Context) (*sessionReport, error) {
	var errs []error
	if err := ls.sess.Close(); err != nil {
		ls.logger.Debug("channel close failed", map[string]any{"error": err.Error()})
	}

	summary := lode.NewSessionSummary(ls.collector.Snapshot(), ls.store.Revision(),
		outcomeOf(ls.sess.Err()), ls.id.StartedAt, time.Now())
	report := &sessionReport{
		SessionSummary: summary,
		DurationMs:     summary.Duration().Milliseconds(),
	}

	if ls.recorder != nil {
		report.Recording = ls.cfg.Record
		report.RecordedFrames = ls.recorder.Count()
		report.SkippedFrames = ls.recorder.Skipped()
		if err := ls.recorder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close recording: %w", err))
			report.Recording = ""
		}
	}

	ctx, cancel := context.WithTimeout(ctx, finishTimeout)
	defer cancel()

	if ls.history != nil {
		report.HistoryPath = ls.history.path
		if err := ls.history.finish(ctx, summary, report.Recording); err != nil {
			errs = append(errs, err)
		}
		report.HistoryDropped = ls.history.feed.Dropped()
		stats := ls.history.policy.Stats()
		report.HistoryDropped += stats.RecordsDropped
		report.HistoryErrors = stats.Errors
	}

	if ls.notifier != nil {
		event := adapter.NewSessionEndedEvent(summary, report.HistoryPath)
		if err := ls.notifier.Publish(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("publish session ended: %w", err))
		}
		if err := iox.CloseAll(ls.notifier); err != nil {
			errs = append(errs, err)
		}
	}

	for _, err := range errs {
		ls.logger.Error("session teardown step failed", map[string]any{"error": err.Error()})
	}
	ls.logger.Info("session ended", map[string]any{
		"outcome":  summary.Outcome,
		"revision": summary.Revision,
		"frames":   summary.FramesReceived,
	})
	return report, errors.Join(errs...)
}

// outcomeOf maps the session's terminal error onto a summary outcome.
func outcomeOf(err error) string {
	var connErr *session.ConnectionError
	if errors.As(err, &connErr) {
		switch connErr.Op {
		case session.OpDial:
			return lode.OutcomeDialFailed
		case session.OpRead:
			return lode.OutcomeConnectionLost
		}
	}
	return lode.OutcomeClosed
}

// exitCodeFor picks the process exit code for a finished session.
func exitCodeFor(outcome string, loopStopped bool) int {
	switch {
	case outcome == lode.OutcomeDialFailed || outcome == lode.OutcomeConnectionLost:
		return exitConnection
	case loopStopped:
		return exitBackendException
	default:
		return exitSuccess
	}
}
