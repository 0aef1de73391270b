package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/craneview/cli/config"
	"github.com/pithecene-io/craneview/cli/render"
	"github.com/pithecene-io/craneview/kinematics"
	"github.com/pithecene-io/craneview/lode"
	"github.com/pithecene-io/craneview/log"
	"github.com/pithecene-io/craneview/record"
	"github.com/pithecene-io/craneview/session"
	"github.com/pithecene-io/craneview/syncloop"
	"github.com/pithecene-io/craneview/types"
)

// ReplayCommand plays a recording back through the decoder and the
// kinematic chain without touching the network.
func ReplayCommand() *cli.Command {
	return &cli.Command{
		Name:      "replay",
		Usage:     "Replay a session recording",
		ArgsUsage: "<recording>",
		Flags: joinFlags(OutputFlags(), []cli.Flag{ConfigFlag}, StorageFlags(), []cli.Flag{
			&cli.Float64Flag{
				Name:  "speed",
				Usage: "Playback speed relative to the recording (0 replays as fast as possible)",
			},
			&cli.BoolFlag{
				Name:  "links",
				Usage: "Print the eight link transforms of the final pose instead of the timeline",
			},
		}),
		Action: replayAction,
	}
}

// replayRow is one timeline entry: an applied pose or a surfaced exception.
type replayRow struct {
	Seq        uint64     `json:"seq"`
	ReceivedAt time.Time  `json:"received_at"`
	Revision   uint64     `json:"revision"`
	Gripper    types.Vec3 `json:"gripper"`
	Exception  string     `json:"exception,omitempty"`
}

// linkRow is one link transform.
type linkRow struct {
	Link      string     `json:"link"`
	Pivot     types.Vec3 `json:"pivot"`
	RotationY float64    `json:"rotation_y"`
	Center    types.Vec3 `json:"center"`
}

func linkRows(links [kinematics.NumLinks]kinematics.LinkTransform) []linkRow {
	rows := make([]linkRow, 0, len(links))
	for _, t := range links {
		rows = append(rows, linkRow{
			Link:      t.Link.String(),
			Pivot:     t.Pivot,
			RotationY: t.RotationY,
			Center:    t.Center(),
		})
	}
	return rows
}

// replayResult is everything a replay produced.
type replayResult struct {
	Header  record.Header
	Rows    []replayRow
	Final   syncloop.Frame
	Summary lode.SessionSummary
	// Corrupt is set when the recording ended in a damaged record.
	Corrupt error
}

type replayOptions struct {
	speed  float64
	sleep  func(time.Duration)
	logger *log.Logger
	// cfg enables history backfill when its storage backend is set.
	cfg *config.Config
}

func replayAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return usageError("replay requires a recording file")
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return usageError("%v", err)
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return usageError("%v", err)
	}
	if c.Float64("speed") < 0 {
		return usageError("--speed must be >= 0")
	}

	f, err := os.Open(c.Args().First())
	if err != nil {
		return usageError("%v", err)
	}
	defer func() { _ = f.Close() }()

	res, err := replay(c.Context, f, replayOptions{
		speed:  c.Float64("speed"),
		logger: log.NewLogger(nil),
		cfg:    cfg,
	})
	if err != nil {
		return cli.Exit(err.Error(), exitError)
	}
	if res.Corrupt != nil {
		fmt.Fprintf(os.Stderr, "warning: recording truncated: %v\n", res.Corrupt)
	}

	if c.Bool("links") {
		return r.Render(linkRows(res.Final.Links))
	}
	return r.Render(res.Rows)
}

// replay feeds every recorded frame into a session that never dials and
// ticks a sync loop after each one, so decoding, merging and kinematics run
// exactly as they did live. With a storage backend in opts.cfg the poses and
// a summary are also written to history under the recorded session ID.
func replay(ctx context.Context, src io.Reader, opts replayOptions) (*replayResult, error) {
	rd, err := record.NewReader(src)
	if err != nil {
		return nil, fmt.Errorf("read recording: %w", err)
	}
	h := rd.Header()
	if opts.logger == nil {
		opts.logger = log.NewNop()
	}
	if opts.sleep == nil {
		opts.sleep = time.Sleep
	}

	cfg := &config.Config{}
	if opts.cfg != nil {
		c := *opts.cfg
		cfg = &c
	}
	cfg.Endpoint = h.Endpoint
	if cfg.Endpoint == "" {
		cfg.Endpoint = config.DefaultEndpoint
	}
	cfg.Dialect = h.Dialect
	cfg.Classification = h.Classification
	cfg.Record = ""
	cfg.Adapter.Type = ""
	cfg.Recovery = "reset"

	id := sessionIdentity{SessionID: h.SessionID, Endpoint: cfg.Endpoint, StartedAt: h.StartedAt}
	ls, err := startSession(ctx, cfg, sessionOptions{
		id:     id,
		logger: opts.logger,
		dial: func(context.Context, string) (session.Conn, error) {
			return nil, errors.New("replay sessions do not dial")
		},
	})
	if err != nil {
		return nil, err
	}

	res := &replayResult{Header: h}
	var current *record.Record
	renderer := syncloop.RendererFunc(func(f syncloop.Frame) {
		res.Final = f
		if f.Changed {
			res.Rows = append(res.Rows, replayRow{
				Seq:        current.Seq,
				ReceivedAt: current.ReceivedAt,
				Revision:   f.Revision,
				Gripper:    f.Links[kinematics.LinkGripperBody].Center(),
			})
		}
	})
	notifier := syncloop.NotifierFunc(func(exc *syncloop.BackendException) {
		res.Rows = append(res.Rows, replayRow{
			Seq:        current.Seq,
			ReceivedAt: current.ReceivedAt,
			Revision:   ls.store.Revision(),
			Exception:  exc.Message,
		})
	})
	// The recording already holds whatever the backend did after a
	// reset, so recovery is a no-op.
	loop, err := syncloop.New(ls.store, renderer, syncloop.Options{
		Notifier: notifier,
		Recovery: syncloop.RecoverReset,
		Resetter: nopResetter{},
		Logger:   opts.logger,
	})
	if err != nil {
		_, _ = ls.finish(ctx)
		return nil, err
	}

	var prev time.Time
	for {
		rec, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if record.IsFatalFrameError(err) {
				res.Corrupt = err
				break
			}
			opts.logger.Warn("skipping undecodable record", map[string]any{"error": err.Error()})
			continue
		}

		if opts.speed > 0 && !prev.IsZero() {
			if gap := rec.ReceivedAt.Sub(prev); gap > 0 {
				opts.sleep(time.Duration(float64(gap) / opts.speed))
			}
		}
		prev = rec.ReceivedAt

		current = rec
		ls.sess.Feed(rec.ReceivedAt, rec.Frame)
		loop.Tick(ctx)

		if err := ctx.Err(); err != nil {
			break
		}
	}

	report, err := ls.finish(context.WithoutCancel(ctx))
	if report != nil {
		res.Summary = report.SessionSummary
	}
	return res, err
}

type nopResetter struct{}

func (nopResetter) ResetRobot(context.Context) error { return nil }
