package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/craneview/metrics"
	"github.com/pithecene-io/craneview/state"
	"github.com/pithecene-io/craneview/syncloop"
	"github.com/pithecene-io/craneview/types"
)

type fakeCommander struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeCommander) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return f.err
}

func (f *fakeCommander) ResetRobot(context.Context) error      { return f.record("reset") }
func (f *fakeCommander) GetPose(context.Context) error         { return f.record("get_pose") }
func (f *fakeCommander) InitializeRobot(context.Context) error { return f.record("initialize") }

type stubTicker struct {
	ticks   int
	running bool
}

func (s *stubTicker) Tick(context.Context) bool {
	s.ticks++
	return s.running
}

func keyMsg(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func update(t *testing.T, m LiveModel, msg tea.Msg) (LiveModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	lm, ok := next.(LiveModel)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return lm, cmd
}

func newLoopModel(t *testing.T, recovery syncloop.Recovery, cmds *fakeCommander) (LiveModel, *state.Store) {
	t.Helper()
	store := state.NewStore()
	host := NewHost()
	host.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	loop, err := syncloop.New(store, host, syncloop.Options{
		Notifier: host,
		Recovery: recovery,
		Resetter: cmds,
	})
	if err != nil {
		t.Fatalf("syncloop.New: %v", err)
	}
	m := NewLiveModel(t.Context(), host, loop, cmds, Options{
		SessionID: "s-1",
		Endpoint:  "ws://crane.test/robotcrane",
		Status:    func() string { return "open" },
		Stats:     func() metrics.Snapshot { return metrics.Snapshot{FramesReceived: 12, DecodeErrors: 1} },
	})
	return m, store
}

func TestLiveModel_TickAppliesNewPose(t *testing.T) {
	m, store := newLoopModel(t, syncloop.RecoverReset, &fakeCommander{})

	if view := m.View(); !strings.Contains(view, "waiting for first frame") {
		t.Fatalf("view before first tick:\n%s", view)
	}

	store.SetPose(types.DefaultPose())
	m, cmd := update(t, m, tickMsg(time.Now()))
	if cmd == nil {
		t.Fatal("tick should schedule the next tick")
	}

	view := m.View()
	for _, want := range []string{"craneview", "s-1", "open", "1 (1 applied)", "lift", "moveable_jaw", "12 received"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}

	// Unchanged revision renders without applying again.
	m, _ = update(t, m, tickMsg(time.Now()))
	if !strings.Contains(m.View(), "1 (1 applied)") {
		t.Errorf("second tick re-applied:\n%s", m.View())
	}
}

func TestLiveModel_ExceptionNoticeAndReset(t *testing.T) {
	cmds := &fakeCommander{}
	m, store := newLoopModel(t, syncloop.RecoverReset, cmds)

	store.SetException("Invalid target: out of reach")
	m, _ = update(t, m, tickMsg(time.Now()))

	view := m.View()
	if !strings.Contains(view, "Invalid target: out of reach") || !strings.Contains(view, "03:04:05") {
		t.Errorf("notice not shown:\n%s", view)
	}
	if len(cmds.calls) != 1 || cmds.calls[0] != "reset" {
		t.Errorf("recovery calls = %v, want [reset]", cmds.calls)
	}
}

func TestLiveModel_CancelRecoveryStopsTicking(t *testing.T) {
	m, store := newLoopModel(t, syncloop.RecoverCancel, &fakeCommander{})

	store.SetException("Exception: solver failed")
	m, cmd := update(t, m, tickMsg(time.Now()))
	if cmd != nil {
		t.Error("stopped loop should not schedule another tick")
	}
	if !strings.Contains(m.View(), "sync stopped") {
		t.Errorf("view does not report stop:\n%s", m.View())
	}

	// Commands are disabled once stopped.
	if _, cmd := update(t, m, keyMsg('r')); cmd != nil {
		t.Error("command key produced a cmd after stop")
	}
}

func TestLiveModel_CommandKeys(t *testing.T) {
	tests := []struct {
		key  rune
		want string
	}{
		{'r', "reset"},
		{'g', "get_pose"},
		{'i', "initialize"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			cmds := &fakeCommander{}
			m := NewLiveModel(t.Context(), NewHost(), &stubTicker{running: true}, cmds, Options{})

			m, cmd := update(t, m, keyMsg(tt.key))
			if cmd == nil {
				t.Fatal("expected a command")
			}
			msg := cmd()
			if len(cmds.calls) != 1 || cmds.calls[0] != tt.want {
				t.Fatalf("calls = %v, want [%s]", cmds.calls, tt.want)
			}

			m, _ = update(t, m, msg)
			if !strings.Contains(m.View(), "sent") {
				t.Errorf("view missing result:\n%s", m.View())
			}
		})
	}
}

func TestLiveModel_CommandFailureShown(t *testing.T) {
	cmds := &fakeCommander{err: errors.New("session closed")}
	m := NewLiveModel(t.Context(), NewHost(), &stubTicker{running: true}, cmds, Options{})

	m, cmd := update(t, m, keyMsg('g'))
	m, _ = update(t, m, cmd())
	if view := m.View(); !strings.Contains(view, "get_pose failed: session closed") {
		t.Errorf("view missing failure:\n%s", view)
	}
}

func TestLiveModel_NilCommanderIgnoresKeys(t *testing.T) {
	m := NewLiveModel(t.Context(), NewHost(), &stubTicker{running: true}, nil, Options{})
	if _, cmd := update(t, m, keyMsg('r')); cmd != nil {
		t.Error("nil commander should not produce commands")
	}
}

func TestLiveModel_Quit(t *testing.T) {
	m := NewLiveModel(t.Context(), NewHost(), &stubTicker{running: true}, nil, Options{})

	m, cmd := update(t, m, keyMsg('q'))
	if cmd == nil {
		t.Fatal("quit key should return tea.Quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Errorf("cmd() = %T, want tea.QuitMsg", cmd())
	}
	if m.View() != "" {
		t.Error("view should be empty after quit")
	}
}

func TestStateStyle(t *testing.T) {
	tests := []struct {
		state string
		want  lipgloss.TerminalColor
	}{
		{"open", successColor},
		{"idle", warningColor},
		{"connecting", warningColor},
		{"closed", errorColor},
	}
	for _, tt := range tests {
		if got := StateStyle(tt.state).GetForeground(); got != tt.want {
			t.Errorf("StateStyle(%q) foreground = %v, want %v", tt.state, got, tt.want)
		}
	}
}
