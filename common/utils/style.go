package utils

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

func init() {
	lipgloss.SetColorProfile(termenv.ANSI256)
}

var (
	RedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#cc0000"))
	OrangeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ff7c28"))
	YellowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#cc9500"))
	GreenStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#06cc00"))
	LightBlueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3cc5ff"))
	LightPurpleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#d864ff"))
	GrayStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#adadad"))
)

// StreamStyle returns the style used to print output written to the named kernel stream.
func StreamStyle(name string) lipgloss.Style {
	if name == "stderr" {
		return RedStyle
	}

	return lipgloss.NewStyle()
}

// StatusStyle returns the style used to print a kernel status.
func StatusStyle(status string) lipgloss.Style {
	switch status {
	case "idle", "ready", "connected":
		return GreenStyle
	case "busy", "starting", "interrupting":
		return YellowStyle
	case "restarting", "autorestarting", "reconnecting", "disconnected":
		return OrangeStyle
	case "dead", "killed", "connectionFailed", "connectionDead":
		return RedStyle
	default:
		return GrayStyle
	}
}
