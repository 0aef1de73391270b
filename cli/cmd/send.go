package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/craneview/cli/render"
	"github.com/pithecene-io/craneview/kinematics"
	"github.com/pithecene-io/craneview/log"
	"github.com/pithecene-io/craneview/types"
)

var actuatorFlags = []string{"d1", "theta1", "theta2", "theta3", "l6"}
var targetFlags = []string{"x", "y", "z", "phi"}

// SendCommand sends one command and optionally waits for the reply.
func SendCommand() *cli.Command {
	var actions []string
	for _, a := range types.Actions() {
		actions = append(actions, string(a))
	}

	payload := []cli.Flag{
		&cli.Float64Flag{Name: "d1", Usage: "Lift height (move_actuators)"},
		&cli.Float64Flag{Name: "theta1", Usage: "Swing angle in degrees (move_actuators)"},
		&cli.Float64Flag{Name: "theta2", Usage: "Elbow angle in degrees (move_actuators)"},
		&cli.Float64Flag{Name: "theta3", Usage: "Wrist angle in degrees (move_actuators)"},
		&cli.Float64Flag{Name: "l6", Usage: "Jaw opening (move_actuators)"},
		&cli.Float64Flag{Name: "x", Usage: "Target x (move_end_effector, move_origin*)"},
		&cli.Float64Flag{Name: "y", Usage: "Target y (move_end_effector, move_origin*)"},
		&cli.Float64Flag{Name: "z", Usage: "Target z (move_end_effector, move_origin*)"},
		&cli.Float64Flag{Name: "phi", Usage: "Target heading (move_end_effector, move_origin*)"},
		&cli.BoolFlag{Name: "open-gripper", Usage: "Open the gripper (move_end_effector)"},
		&cli.DurationFlag{
			Name:  "wait",
			Usage: "Keep the channel open this long and report the resulting state",
		},
	}

	return &cli.Command{
		Name:      "send",
		Usage:     "Send one command to the backend",
		ArgsUsage: "<" + strings.Join(actions, "|") + ">",
		Flags:     joinFlags(OutputFlags(), ConnectionFlags(), payload),
		Action:    sendAction,
	}
}

// flagSource is the part of *cli.Context that payload parsing reads.
type flagSource interface {
	IsSet(name string) bool
	Float64(name string) float64
	Bool(name string) bool
}

// buildCommand assembles the command for action from payload flags. Flags
// that do not belong to the action are rejected.
func buildCommand(action types.Action, src flagSource) (types.Command, error) {
	var allowed []string
	var payload any
	switch action {
	case types.ActionMoveActuators:
		allowed = actuatorFlags
		payload = types.ActuatorStates{
			D1:     src.Float64("d1"),
			Theta1: src.Float64("theta1"),
			Theta2: src.Float64("theta2"),
			Theta3: src.Float64("theta3"),
			L6:     src.Float64("l6"),
		}
	case types.ActionMoveEndEffector:
		allowed = slices.Concat(targetFlags, []string{"open-gripper"})
		payload = types.EndEffectorTarget{
			X:             src.Float64("x"),
			Y:             src.Float64("y"),
			Z:             src.Float64("z"),
			Phi:           src.Float64("phi"),
			DoOpenGripper: src.Bool("open-gripper"),
		}
	case types.ActionMoveOrigin, types.ActionMoveOriginControlEndEffector:
		allowed = targetFlags
		payload = types.OriginTarget{
			X:   src.Float64("x"),
			Y:   src.Float64("y"),
			Z:   src.Float64("z"),
			Phi: src.Float64("phi"),
		}
	}

	for _, name := range slices.Concat(actuatorFlags, targetFlags, []string{"open-gripper"}) {
		if src.IsSet(name) && !slices.Contains(allowed, name) {
			return types.Command{}, fmt.Errorf("--%s does not apply to %s", name, action)
		}
	}

	cmd := types.Command{Action: action, Payload: payload}
	if err := cmd.Validate(); err != nil {
		return types.Command{}, err
	}
	return cmd, nil
}

// sendResult is printed after a send.
type sendResult struct {
	SessionID string      `json:"session_id"`
	Action    string      `json:"action"`
	Revision  uint64      `json:"revision"`
	Exception string      `json:"exception,omitempty"`
	Gripper   *types.Vec3 `json:"gripper,omitempty"`
}

func sendAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return usageError("send requires exactly one action")
	}
	action, err := types.ParseAction(c.Args().First())
	if err != nil {
		return usageError("%v", err)
	}
	cmd, err := buildCommand(action, c)
	if err != nil {
		return usageError("%v", err)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return usageError("%v", err)
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return usageError("%v", err)
	}

	// One-shot sends carry no history, recording or adapter.
	cfg.Record = ""
	cfg.Storage.Backend = ""
	cfg.Adapter.Type = ""

	id := sessionIdentity{SessionID: uuid.NewString(), Endpoint: cfg.Endpoint, StartedAt: time.Now()}
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ls, err := startSession(ctx, cfg, sessionOptions{id: id, logger: log.NewLogger(id.meta())})
	if err != nil {
		return usageError("%v", err)
	}
	defer func() { _ = ls.sess.Close() }()

	result, err := sendOnce(ctx, ls, cmd, c.Duration("wait"))
	if err != nil {
		return cli.Exit(err.Error(), exitConnection)
	}
	return r.Render(result)
}

// sendOnce writes cmd and, when wait > 0, lets replies arrive before
// reading the store.
func sendOnce(ctx context.Context, ls *liveSession, cmd types.Command, wait time.Duration) (*sendResult, error) {
	if err := ls.gateway.Dispatch(ctx, cmd); err != nil {
		return nil, err
	}

	if wait > 0 {
		select {
		case <-time.After(wait):
		case <-ls.sess.Done():
		case <-ctx.Done():
		}
	}

	snap := ls.store.Snapshot()
	result := &sendResult{
		SessionID: ls.id.SessionID,
		Action:    string(cmd.Action),
		Revision:  snap.Revision,
		Exception: snap.PendingException,
	}
	if snap.Revision > 0 {
		gripper := kinematics.Apply(snap.Dimensions, snap.Pose)[kinematics.LinkGripperBody].Center()
		result.Gripper = &gripper
	}
	return result, nil
}
