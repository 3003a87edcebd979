package cmd

import (
	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	ColorPrimary = lipgloss.Color("#8B5CF6") // Violet
	ColorSuccess = lipgloss.Color("#10B981") // Emerald
	ColorWarning = lipgloss.Color("#F59E0B") // Amber
	ColorError   = lipgloss.Color("#EF4444") // Red
	ColorMuted   = lipgloss.Color("#94A3B8") // Slate 400
	ColorPath    = lipgloss.Color("#06B6D4") // Cyan
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true)

	SectionStyle = lipgloss.NewStyle().
			Foreground(ColorMuted).
			Italic(true)

	OKStyle = lipgloss.NewStyle().
		Foreground(ColorSuccess).
		Bold(true)

	FailStyle = lipgloss.NewStyle().
			Foreground(ColorError).
			Bold(true)

	WarnStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError).
			Bold(true)

	PathStyle = lipgloss.NewStyle().
			Foreground(ColorPath)

	MutedStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	SummaryStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorPrimary).
			Padding(0, 1)
)
