package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/craneview/cli/render"
	"github.com/pithecene-io/craneview/cli/tui"
	"github.com/pithecene-io/craneview/kinematics"
	"github.com/pithecene-io/craneview/log"
	"github.com/pithecene-io/craneview/syncloop"
)

// ConnectCommand opens a session and follows it live.
func ConnectCommand() *cli.Command {
	return &cli.Command{
		Name:  "connect",
		Usage: "Connect to the crane backend and follow its pose",
		Flags: joinFlags(OutputFlags(), ConnectionFlags(), StorageFlags(), []cli.Flag{
			&cli.BoolFlag{
				Name:  "headless",
				Usage: "Log frames instead of opening the live view",
			},
			&cli.DurationFlag{
				Name:  "duration",
				Usage: "End the session after this long (0 runs until interrupted)",
			},
			&cli.IntFlag{
				Name:  "fps",
				Usage: "Sync loop frame rate",
			},
			&cli.StringFlag{
				Name:  "recovery",
				Usage: "After a backend exception: reset or cancel",
			},
			&cli.StringFlag{
				Name:  "record",
				Usage: "Write every inbound frame to this recording file",
			},
			&cli.StringFlag{
				Name:  "policy",
				Usage: "History write policy: strict, buffered or noop",
			},
			&cli.StringFlag{
				Name:  "session-id",
				Usage: "Session ID (default: random UUID)",
			},
			&cli.BoolFlag{
				Name:  "no-init",
				Usage: "Do not send initialize_robot after connecting",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Write logs here (live view default: discard; headless default: stderr)",
			},
		}),
		Action: connectAction,
	}
}

func connectAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return usageError("%v", err)
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return usageError("%v", err)
	}

	id := sessionIdentity{
		SessionID: c.String("session-id"),
		Endpoint:  cfg.Endpoint,
		StartedAt: time.Now(),
	}
	if id.SessionID == "" {
		id.SessionID = uuid.NewString()
	}

	headless := c.Bool("headless")
	logger, closeLog, err := connectLogger(id, c.String("log-file"), headless)
	if err != nil {
		return usageError("%v", err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ls, err := startSession(ctx, cfg, sessionOptions{id: id, logger: logger})
	if err != nil {
		return usageError("%v", err)
	}

	stopped, runErr := runConnected(ctx, ls, connectRun{
		headless:   headless,
		duration:   c.Duration("duration"),
		initialize: !c.Bool("no-init"),
	})

	report, finishErr := ls.finish(context.WithoutCancel(ctx))
	if err := r.Render(report); err != nil {
		return err
	}

	code := exitCodeFor(report.Outcome, stopped)
	if errors.Is(runErr, errConnect) {
		code = exitConnection
	}
	switch {
	case runErr != nil:
		return cli.Exit(runErr.Error(), max(code, exitError))
	case finishErr != nil:
		return cli.Exit(finishErr.Error(), max(code, exitError))
	case code != exitSuccess:
		return cli.Exit("", code)
	}
	return nil
}

// connectLogger picks the log destination. The live view owns the terminal,
// so it only logs when a file is given.
func connectLogger(id sessionIdentity, logFile string, headless bool) (*log.Logger, func(), error) {
	switch {
	case logFile != "":
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		return log.NewLogger(id.meta()).WithOutput(f), func() { _ = f.Close() }, nil
	case headless:
		return log.NewLogger(id.meta()), func() {}, nil
	default:
		return log.NewNop(), func() {}, nil
	}
}

var errConnect = errors.New("connect failed")

type connectRun struct {
	headless   bool
	duration   time.Duration
	initialize bool
	// out receives headless frame lines. Defaults to stderr.
	out io.Writer
}

// runConnected opens the channel, then drives the sync loop until the user
// quits, ctx ends, the duration elapses or the loop stops itself. It
// reports whether the loop stopped on its own.
func runConnected(ctx context.Context, ls *liveSession, run connectRun) (bool, error) {
	if run.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, run.duration)
		defer cancel()
	}

	if err := ls.open(ctx, run.initialize); err != nil {
		if ctx.Err() != nil {
			return false, nil
		}
		return false, fmt.Errorf("%w: %w", errConnect, err)
	}

	if run.headless {
		return runHeadless(ctx, ls, run.out)
	}
	return runLive(ctx, ls)
}

func runLive(ctx context.Context, ls *liveSession) (bool, error) {
	host := tui.NewHost()
	loop, err := ls.newLoop(host, host)
	if err != nil {
		return false, err
	}

	model := tui.NewLiveModel(ctx, host, loop, ls.gateway, tui.Options{
		SessionID: ls.id.SessionID,
		Endpoint:  ls.id.Endpoint,
		FrameRate: ls.cfg.FPS,
		Status:    func() string { return ls.sess.State().String() },
		Stats:     ls.collector.Snapshot,
	})
	if err := tui.Run(ctx, model); err != nil {
		return loop.Stopped(), err
	}
	return loop.Stopped(), nil
}

func runHeadless(ctx context.Context, ls *liveSession, out io.Writer) (bool, error) {
	if out == nil {
		out = os.Stderr
	}
	renderer := syncloop.RendererFunc(func(f syncloop.Frame) {
		if !f.Changed {
			return
		}
		gripper := f.Links[kinematics.LinkGripperBody].Center()
		fmt.Fprintf(out, "revision %d  gripper %s  theta0 %.4f\n", f.Revision, gripper, f.Pose.Theta0)
	})
	notifier := syncloop.NotifierFunc(func(exc *syncloop.BackendException) {
		fmt.Fprintf(out, "backend exception: %s\n", exc.Message)
	})

	loop, err := ls.newLoop(renderer, notifier)
	if err != nil {
		return false, err
	}

	// When the channel drops, one more tick surfaces the loss before the
	// loop ends.
	go func() {
		select {
		case <-ls.sess.Done():
			loop.Tick(ctx)
			loop.Stop()
		case <-ctx.Done():
		}
	}()

	err = loop.Run(ctx)
	if ctx.Err() != nil {
		return false, nil
	}
	return loop.Stopped() && ls.sess.Err() == nil, err
}
