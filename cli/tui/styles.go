// Package tui is the live terminal view of a crane session.
//
// The view is a Bubble Tea program that drives a syncloop.Loop from its own
// tick messages, so every frame is applied and drawn on the program's
// goroutine. Keys forward the parameterless commands to the backend.
package tui

import "github.com/charmbracelet/lipgloss"

// Palette. Hazard amber is the crane's own paint.
var (
	hazardColor  = lipgloss.Color("#FFB000")
	successColor = lipgloss.Color("#22C55E")
	warningColor = lipgloss.Color("#EAB308")
	errorColor   = lipgloss.Color("#DC2626")
	mutedColor   = lipgloss.Color("#71717A")
	steelColor   = lipgloss.Color("#60A5FA")
	plainColor   = lipgloss.Color("#F4F4F5")
)

func fg(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

func framed(border lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1)
}

var (
	TitleStyle  = fg(hazardColor).Bold(true)
	HeaderStyle = fg(steelColor).Bold(true)
	LabelStyle  = fg(mutedColor).Width(12)
	ValueStyle  = fg(plainColor)
	HelpStyle   = fg(mutedColor).MarginTop(1)

	SuccessStyle = fg(successColor)
	WarningStyle = fg(warningColor)
	ErrorStyle   = fg(errorColor)
	MutedStyle   = fg(mutedColor)

	// BoxStyle frames the link table.
	BoxStyle = framed(mutedColor)
	// NoticeStyle frames a backend exception.
	NoticeStyle = framed(errorColor).Foreground(errorColor)
)

var stateStyles = map[string]lipgloss.Style{
	"open":       SuccessStyle,
	"idle":       WarningStyle,
	"connecting": WarningStyle,
	"closed":     ErrorStyle,
}

// StateStyle colors a session state name.
func StateStyle(state string) lipgloss.Style {
	if s, ok := stateStyles[state]; ok {
		return s
	}
	return ValueStyle
}
