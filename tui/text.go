package tui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#071330", Dark: "#F652A0"})
	boldStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#36EEE0", Dark: "#00FFFF"})
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#999999"})
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500"))
)

func Title(text string) string   { return titleStyle.Render(text) }
func Bold(text string) string    { return boldStyle.Render(text) }
func Muted(text string) string   { return mutedStyle.Render(text) }
func Warning(text string) string { return warningStyle.Render(text) }
