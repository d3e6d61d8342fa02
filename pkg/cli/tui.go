package cli

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color scheme for terminal output.
type Theme struct {
	Primary lipgloss.Color // Main accent color
	Dim     lipgloss.Color // Dimmed/help text color
	Warn    lipgloss.Color // Warning/status color
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
	Warn:    lipgloss.Color("#f0a020"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Title     lipgloss.Style
	Prompt    lipgloss.Style
	Assistant lipgloss.Style
	Status    lipgloss.Style
	Help      lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Title:     lipgloss.NewStyle().Bold(true).Foreground(t.Primary).Padding(0, 1),
		Prompt:    lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Assistant: lipgloss.NewStyle(),
		Status:    lipgloss.NewStyle().Foreground(t.Warn).Italic(true),
		Help:      lipgloss.NewStyle().Foreground(t.Dim),
	}
}

// RenderTitle renders the chat banner line.
func (s Styles) RenderTitle(name, detail string) string {
	out := s.Title.Render(name)
	if detail != "" {
		out += " " + s.Help.Render("("+detail+")")
	}
	return out
}

// RenderPrompt renders the input prompt marker.
func (s Styles) RenderPrompt() string {
	return s.Prompt.Render("you>") + " "
}

// RenderStatus renders a transient status line, e.g. the stream header.
func (s Styles) RenderStatus(text string) string {
	return s.Status.Render("· " + text)
}
