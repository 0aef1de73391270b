package cmd

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/craneview/adapter/redis"
	"github.com/pithecene-io/craneview/adapter/webhook"
	"github.com/pithecene-io/craneview/cli/config"
	"github.com/pithecene-io/craneview/lode"
	"github.com/pithecene-io/craneview/log"
	"github.com/pithecene-io/craneview/policy"
	"github.com/pithecene-io/craneview/session"
	"github.com/pithecene-io/craneview/types"
)

// newContext parses args against flags the way a command would.
func newContext(t *testing.T, flags []cli.Flag, args ...string) *cli.Context {
	t.Helper()
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	for _, f := range flags {
		if err := f.Apply(set); err != nil {
			t.Fatalf("apply flag %v: %v", f.Names(), err)
		}
	}
	if err := set.Parse(args); err != nil {
		t.Fatalf("parse %v: %v", args, err)
	}
	c := cli.NewContext(&cli.App{Flags: flags}, set, nil)
	c.Context = t.Context()
	return c
}

func flagNames(flags []cli.Flag) []string {
	var names []string
	for _, f := range flags {
		names = append(names, f.Names()[0])
	}
	return names
}

func TestFlagGroups(t *testing.T) {
	tests := []struct {
		name  string
		flags []cli.Flag
		want  []string
	}{
		{"output", OutputFlags(), []string{"format", "no-color"}},
		{"connection", ConnectionFlags(), []string{"config", "endpoint", "dialect", "classification", "dial-timeout"}},
		{"storage", StorageFlags(), []string{"storage-backend", "storage-path", "storage-region", "storage-endpoint", "dataset"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := flagNames(tt.flags)
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("flags = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCommandFlagsHaveNoDuplicates(t *testing.T) {
	for _, c := range []*cli.Command{ConnectCommand(), SendCommand(), ReplayCommand(), VersionCommand("x")} {
		seen := make(map[string]bool)
		for _, name := range flagNames(c.Flags) {
			if seen[name] {
				t.Errorf("%s: duplicate flag --%s", c.Name, name)
			}
			seen[name] = true
		}
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	c := newContext(t, ConnectCommand().Flags)

	cfg, err := loadConfig(c)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Endpoint != config.DefaultEndpoint {
		t.Errorf("Endpoint = %q, want %q", cfg.Endpoint, config.DefaultEndpoint)
	}
	if cfg.FPS != 30 {
		t.Errorf("FPS = %d, want 30", cfg.FPS)
	}
	if cfg.Storage.Dataset != lode.DefaultDataset {
		t.Errorf("Dataset = %q, want %q", cfg.Storage.Dataset, lode.DefaultDataset)
	}
	if cfg.Storage.Backend != "" {
		t.Errorf("Backend = %q, want history disabled", cfg.Storage.Backend)
	}
	if cfg.Policy.Name != "strict" {
		t.Errorf("Policy = %q, want strict", cfg.Policy.Name)
	}
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crane.yaml")
	yaml := `endpoint: ws://file:9000/robotcrane
dialect: legacy
fps: 10
storage:
  path: /var/lib/craneview
policy:
  name: buffered
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	c := newContext(t, ConnectCommand().Flags,
		"--config", path,
		"--endpoint", "ws://flag:8000/robotcrane",
		"--fps", "60",
		"--dial-timeout", "3s",
	)
	cfg, err := loadConfig(c)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Endpoint != "ws://flag:8000/robotcrane" {
		t.Errorf("Endpoint = %q, flag should win", cfg.Endpoint)
	}
	if cfg.Dialect != "legacy" {
		t.Errorf("Dialect = %q, file value should survive", cfg.Dialect)
	}
	if cfg.FPS != 60 {
		t.Errorf("FPS = %d, want 60", cfg.FPS)
	}
	if cfg.DialTimeout.Duration != 3*time.Second {
		t.Errorf("DialTimeout = %v, want 3s", cfg.DialTimeout.Duration)
	}
	if cfg.Storage.Backend != "fs" {
		t.Errorf("Backend = %q, a bare path should select fs", cfg.Storage.Backend)
	}
	if cfg.Policy.Name != "buffered" {
		t.Errorf("Policy = %q, want buffered", cfg.Policy.Name)
	}
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	t.Chdir(t.TempDir())
	tests := []struct {
		name string
		args []string
	}{
		{"dialect", []string{"--dialect", "xml"}},
		{"classification", []string{"--classification", "guess"}},
		{"recovery", []string{"--recovery", "retry"}},
		{"policy", []string{"--policy", "eventual"}},
		{"backend without path", []string{"--storage-backend", "s3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newContext(t, ConnectCommand().Flags, tt.args...)
			if _, err := loadConfig(c); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	c := newContext(t, ConnectCommand().Flags, "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	if _, err := loadConfig(c); err == nil {
		t.Error("an explicit --config that does not exist should fail")
	}
}

// fakeFlags stands in for *cli.Context in payload parsing.
type fakeFlags struct {
	floats map[string]float64
	bools  map[string]bool
}

func (f fakeFlags) IsSet(name string) bool {
	_, okF := f.floats[name]
	_, okB := f.bools[name]
	return okF || okB
}

func (f fakeFlags) Float64(name string) float64 { return f.floats[name] }
func (f fakeFlags) Bool(name string) bool       { return f.bools[name] }

func TestBuildCommand(t *testing.T) {
	tests := []struct {
		name    string
		action  types.Action
		flags   fakeFlags
		want    any
		wantErr string
	}{
		{
			name:   "get_pose takes no payload",
			action: types.ActionGetPose,
		},
		{
			name:   "move_actuators",
			action: types.ActionMoveActuators,
			flags:  fakeFlags{floats: map[string]float64{"d1": 0.5, "theta1": 45, "l6": 0.05}},
			want:   types.ActuatorStates{D1: 0.5, Theta1: 45, L6: 0.05},
		},
		{
			name:   "move_end_effector opens gripper",
			action: types.ActionMoveEndEffector,
			flags:  fakeFlags{floats: map[string]float64{"x": 1, "z": 0.5}, bools: map[string]bool{"open-gripper": true}},
			want:   types.EndEffectorTarget{X: 1, Z: 0.5, DoOpenGripper: true},
		},
		{
			name:   "move_origin",
			action: types.ActionMoveOrigin,
			flags:  fakeFlags{floats: map[string]float64{"y": 2, "phi": 90}},
			want:   types.OriginTarget{Y: 2, Phi: 90},
		},
		{
			name:    "actuator flag on a target action",
			action:  types.ActionMoveOrigin,
			flags:   fakeFlags{floats: map[string]float64{"theta1": 10}},
			wantErr: "--theta1 does not apply to move_origin",
		},
		{
			name:    "gripper flag on move_origin_control_end_effector",
			action:  types.ActionMoveOriginControlEndEffector,
			flags:   fakeFlags{bools: map[string]bool{"open-gripper": true}},
			wantErr: "--open-gripper does not apply",
		},
		{
			name:    "payload flag on reset_robot",
			action:  types.ActionResetRobot,
			flags:   fakeFlags{floats: map[string]float64{"x": 1}},
			wantErr: "--x does not apply to reset_robot",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := buildCommand(tt.action, tt.flags)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("buildCommand: %v", err)
			}
			if cmd.Action != tt.action {
				t.Errorf("Action = %q, want %q", cmd.Action, tt.action)
			}
			if cmd.Payload != tt.want {
				t.Errorf("Payload = %#v, want %#v", cmd.Payload, tt.want)
			}
		})
	}
}

func TestOutcomeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, lode.OutcomeClosed},
		{"closed", session.ErrClosed, lode.OutcomeClosed},
		{"dial", &session.ConnectionError{Op: session.OpDial, Err: errors.New("refused")}, lode.OutcomeDialFailed},
		{"read", &session.ConnectionError{Op: session.OpRead, Err: errors.New("eof")}, lode.OutcomeConnectionLost},
		{"write", &session.ConnectionError{Op: session.OpWrite, Err: errors.New("broken pipe")}, lode.OutcomeClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := outcomeOf(tt.err); got != tt.want {
				t.Errorf("outcomeOf = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		outcome string
		stopped bool
		want    int
	}{
		{lode.OutcomeClosed, false, exitSuccess},
		{lode.OutcomeClosed, true, exitBackendException},
		{lode.OutcomeConnectionLost, false, exitConnection},
		{lode.OutcomeConnectionLost, true, exitConnection},
		{lode.OutcomeDialFailed, false, exitConnection},
	}
	for _, tt := range tests {
		if got := exitCodeFor(tt.outcome, tt.stopped); got != tt.want {
			t.Errorf("exitCodeFor(%q, %v) = %d, want %d", tt.outcome, tt.stopped, got, tt.want)
		}
	}
}

func TestBuildPolicy(t *testing.T) {
	sink := policy.NewMemorySink()
	tests := []struct {
		name    string
		pc      config.PolicyConfig
		want    string
		wantErr bool
	}{
		{"default", config.PolicyConfig{}, "*policy.StrictPolicy", false},
		{"strict", config.PolicyConfig{Name: "strict"}, "*policy.StrictPolicy", false},
		{"buffered", config.PolicyConfig{Name: "buffered", FlushCount: 5}, "*policy.BufferedPolicy", false},
		{"noop", config.PolicyConfig{Name: "noop"}, "*policy.NoopPolicy", false},
		{"unknown", config.PolicyConfig{Name: "eventual"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := buildPolicy(tt.pc, sink, log.NewNop())
			if tt.wantErr {
				if err == nil {
					t.Error("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("buildPolicy: %v", err)
			}
			t.Cleanup(func() { _ = p.Close() })
			if got := typeName(p); got != tt.want {
				t.Errorf("policy type = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestBuildAdapter(t *testing.T) {
	none, err := buildAdapter(config.AdapterConfig{})
	if err != nil || none != nil {
		t.Fatalf("empty type: got %v, %v; want nil, nil", none, err)
	}

	retries := 0
	wh, err := buildAdapter(config.AdapterConfig{Type: "webhook", URL: "http://localhost:1/hook", Retries: &retries})
	if err != nil {
		t.Fatalf("webhook: %v", err)
	}
	t.Cleanup(func() { _ = wh.Close() })
	if _, ok := wh.(*webhook.Adapter); !ok {
		t.Errorf("webhook adapter type = %T", wh)
	}

	rd, err := buildAdapter(config.AdapterConfig{Type: "redis", URL: "redis://localhost:1/0"})
	if err != nil {
		t.Fatalf("redis: %v", err)
	}
	t.Cleanup(func() { _ = rd.Close() })
	if _, ok := rd.(*redis.Adapter); !ok {
		t.Errorf("redis adapter type = %T", rd)
	}

	if _, err := buildAdapter(config.AdapterConfig{Type: "kafka", URL: "x"}); err == nil {
		t.Error("unknown adapter type should fail")
	}
}

func TestPartitionPrefix(t *testing.T) {
	id := sessionIdentity{
		SessionID: "sess-1",
		Endpoint:  config.DefaultEndpoint,
		StartedAt: time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC),
	}
	got := partitionPrefix(id.lodeConfig("crane"))
	want := "datasets/crane/partitions/day=2026-03-05/session_id=sess-1"
	if got != want {
		t.Errorf("partitionPrefix = %q, want %q", got, want)
	}
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
