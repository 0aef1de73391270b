package tui

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/craneview/metrics"
	"github.com/pithecene-io/craneview/syncloop"
)

// Ticker runs one frame. *syncloop.Loop satisfies it.
type Ticker interface {
	Tick(ctx context.Context) bool
}

// Commander sends the commands bound to keys. *command.Gateway satisfies it.
type Commander interface {
	ResetRobot(ctx context.Context) error
	GetPose(ctx context.Context) error
	InitializeRobot(ctx context.Context) error
}

// commandTimeout bounds a key-triggered send, including the wait for the
// channel to open.
const commandTimeout = 5 * time.Second

// Host receives frames and exception notices from a syncloop.Loop. It is
// written only from inside Tick, which the model calls from Update, so it
// needs no locking.
type Host struct {
	frame    syncloop.Frame
	hasFrame bool
	applied  int
	notice   string
	noticeAt time.Time
	now      func() time.Time
}

// NewHost returns an empty host.
func NewHost() *Host {
	return &Host{now: time.Now}
}

// Render implements syncloop.Renderer.
func (h *Host) Render(f syncloop.Frame) {
	h.frame = f
	h.hasFrame = true
	if f.Changed {
		h.applied++
	}
}

// Notify implements syncloop.Notifier.
func (h *Host) Notify(exc *syncloop.BackendException) {
	h.notice = exc.Message
	h.noticeAt = h.now()
}

// Options configures a LiveModel.
type Options struct {
	SessionID string
	Endpoint  string
	// FrameRate is the tick rate in frames per second.
	FrameRate int
	// Status reports the session state. Optional.
	Status func() string
	// Stats reports session counters. Optional.
	Stats func() metrics.Snapshot
}

type tickMsg time.Time

type commandResultMsg struct {
	action string
	err    error
}

// LiveModel is the Bubble Tea model for a live session.
type LiveModel struct {
	ctx      context.Context
	host     *Host
	loop     Ticker
	commands Commander
	opts     Options
	interval time.Duration
	help     help.Model

	stopped    bool
	quitting   bool
	lastAction string
	lastErr    error
	width      int
}

// NewLiveModel builds a model that ticks loop and draws what host received.
// commands may be nil, which disables the command keys.
func NewLiveModel(ctx context.Context, host *Host, loop Ticker, commands Commander, opts Options) LiveModel {
	if opts.FrameRate <= 0 {
		opts.FrameRate = syncloop.DefaultFrameRate
	}
	return LiveModel{
		ctx:      ctx,
		host:     host,
		loop:     loop,
		commands: commands,
		opts:     opts,
		interval: time.Second / time.Duration(opts.FrameRate),
		help:     help.New(),
	}
}

func (m LiveModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init implements tea.Model.
func (m LiveModel) Init() tea.Cmd {
	return m.tick()
}

// Update implements tea.Model.
func (m LiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tickMsg:
		if m.stopped {
			return m, nil
		}
		if !m.loop.Tick(m.ctx) {
			m.stopped = true
			return m, nil
		}
		return m, m.tick()

	case commandResultMsg:
		m.lastAction = msg.action
		m.lastErr = msg.err
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Reset):
			return m, m.send("reset_robot", m.commandFunc(Commander.ResetRobot))
		case key.Matches(msg, keys.GetPose):
			return m, m.send("get_pose", m.commandFunc(Commander.GetPose))
		case key.Matches(msg, keys.Initialize):
			return m, m.send("initialize_robot", m.commandFunc(Commander.InitializeRobot))
		}
	}
	return m, nil
}

func (m LiveModel) commandFunc(fn func(Commander, context.Context) error) func(context.Context) error {
	if m.commands == nil {
		return nil
	}
	return func(ctx context.Context) error { return fn(m.commands, ctx) }
}

// send runs fn off the program goroutine and reports the outcome.
func (m LiveModel) send(action string, fn func(context.Context) error) tea.Cmd {
	if fn == nil || m.stopped {
		return nil
	}
	ctx := m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, commandTimeout)
		defer cancel()
		return commandResultMsg{action: action, err: fn(ctx)}
	}
}

// View implements tea.Model.
func (m LiveModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n\n")
	b.WriteString(BoxStyle.Render(m.links()))
	b.WriteString("\n")

	if m.host.notice != "" {
		b.WriteString(NoticeStyle.Render(fmt.Sprintf("%s  %s",
			m.host.noticeAt.Format("15:04:05"), m.host.notice)))
		b.WriteString("\n")
	}
	if line := m.commandLine(); line != "" {
		b.WriteString(line)
		b.WriteString("\n")
	}
	if m.stopped {
		b.WriteString(WarningStyle.Render("sync stopped after backend exception"))
		b.WriteString("\n")
	}

	b.WriteString(HelpStyle.Render(m.help.View(keys)))
	return b.String()
}

func (m LiveModel) header() string {
	state := "unknown"
	if m.opts.Status != nil {
		state = m.opts.Status()
	}

	rows := []string{
		TitleStyle.Render("craneview") + "  " + MutedStyle.Render(m.opts.Endpoint),
		LabelStyle.Render("session") + ValueStyle.Render(m.opts.SessionID),
		LabelStyle.Render("state") + StateStyle(state).Render(state),
		LabelStyle.Render("revision") + ValueStyle.Render(fmt.Sprintf("%d (%d applied)",
			m.host.frame.Revision, m.host.applied)),
	}
	if m.opts.Stats != nil {
		s := m.opts.Stats()
		rows = append(rows, LabelStyle.Render("frames")+ValueStyle.Render(fmt.Sprintf(
			"%d received, %d decode errors, %d exceptions",
			s.FramesReceived, s.DecodeErrors, s.ExceptionFrames)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m LiveModel) links() string {
	if !m.host.hasFrame {
		return MutedStyle.Render("waiting for first frame")
	}

	var b strings.Builder
	b.WriteString(HeaderStyle.Render(fmt.Sprintf("%-18s %-28s %8s  %s", "LINK", "PIVOT", "ROT°", "CENTER")))
	for _, t := range m.host.frame.Links {
		fmt.Fprintf(&b, "\n%-18s %-28s %8.2f  %s",
			t.Link, t.Pivot, degrees(t.RotationY), t.Center())
	}
	return b.String()
}

func (m LiveModel) commandLine() string {
	if m.lastAction == "" {
		return ""
	}
	if m.lastErr != nil {
		return ErrorStyle.Render(fmt.Sprintf("%s failed: %v", m.lastAction, m.lastErr))
	}
	return SuccessStyle.Render(m.lastAction + " sent")
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// Run runs the program until the user quits or ctx ends.
func Run(ctx context.Context, m LiveModel) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

var _ syncloop.Renderer = (*Host)(nil)
var _ syncloop.Notifier = (*Host)(nil)
var _ Ticker = (*syncloop.Loop)(nil)
