package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#FFFFFF"})
	artistStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#AAAAAA"})
	timeStyle     = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#333333", Dark: "#DDDDDD"})
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#888888"})
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#999999", Dark: "#666666"})
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#e74c3c"))
	progressFill  = lipgloss.NewStyle().Foreground(lipgloss.Color("#3498db"))
	progressEmpty = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#DDDDDD", Dark: "#333333"})
)
