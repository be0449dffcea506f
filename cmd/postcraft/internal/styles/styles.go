// Package styles holds the terminal styles shared by the postcraft CLI.
package styles

import "github.com/charmbracelet/lipgloss"

// LinkedIn-leaning palette.
var (
	ColorFg      = lipgloss.AdaptiveColor{Light: "#1d2226", Dark: "#e9e5df"}
	ColorMuted   = lipgloss.Color("#86888a")
	ColorAccent  = lipgloss.Color("#0a66c2")
	ColorError   = lipgloss.Color("#cc1016")
	ColorSuccess = lipgloss.Color("#057642")
	ColorWarning = lipgloss.Color("#915907")
)

var (
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	HeaderStyle  = lipgloss.NewStyle().Bold(true).Foreground(ColorFg)
	DimStyle     = lipgloss.NewStyle().Foreground(ColorMuted)
	ErrorStyle   = lipgloss.NewStyle().Foreground(ColorError)
	SuccessStyle = lipgloss.NewStyle().Foreground(ColorSuccess)
	WarningStyle = lipgloss.NewStyle().Foreground(ColorWarning)
	SpinnerStyle = lipgloss.NewStyle().Foreground(ColorAccent)
	AgentStyle   = lipgloss.NewStyle().Bold(true)

	// Frame around the progress view.
	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorAccent).
			Padding(0, 1)
)

// Tree-drawing characters for nested lines.
const (
	TreeCorner = "└ "
	TreeTee    = "├ "
)
