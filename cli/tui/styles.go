// Package tui provides Bubble Tea TUI components for the canisnap CLI.
//
// TUI rules:
//   - TUI is opt-in only (--tui and --progress flags)
//   - Interactive views are read-only (inspect, metrics)
//   - TUI uses the same payloads as json, yaml and table rendering
package tui

import "github.com/charmbracelet/lipgloss"

var (
	accent = lipgloss.Color("#0EA5E9")
	good   = lipgloss.Color("#22C55E")
	warn   = lipgloss.Color("#EAB308")
	bad    = lipgloss.Color("#DC2626")
	dim    = lipgloss.Color("#9CA3AF")
	bright = lipgloss.Color("#F9FAFB")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	labelStyle = lipgloss.NewStyle().Foreground(dim).Width(16)
	valueStyle = lipgloss.NewStyle().Foreground(bright)
	helpStyle  = lipgloss.NewStyle().Foreground(dim).MarginTop(1)
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(dim).
			Padding(1, 2)
)

// tinted renders s in color c.
func tinted(c lipgloss.Color, s string) string {
	return lipgloss.NewStyle().Foreground(c).Render(s)
}

// counter draws one metrics tile: a bold value over its label, framed in c.
func counter(label, value string, c lipgloss.Color) string {
	body := lipgloss.JoinVertical(lipgloss.Center,
		lipgloss.NewStyle().Bold(true).Foreground(c).Render(value),
		lipgloss.NewStyle().Foreground(dim).Render(label))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(c).
		Padding(0, 2).
		Width(20).
		Align(lipgloss.Center).
		Render(body)
}

// stateColor maps artifact presence and transfer outcomes onto the palette.
func stateColor(state string) lipgloss.Color {
	switch state {
	case "present", "verified", "success":
		return good
	case "absent":
		return warn
	case "failed", "failure":
		return bad
	default:
		return bright
	}
}
