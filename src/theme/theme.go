// Package theme holds the terminal styles used to render chat transcripts.
package theme

import "github.com/charmbracelet/lipgloss"

// Theme represents a color theme
type Theme struct {
	Primary   lipgloss.Color
	Accent    lipgloss.Color
	Text      lipgloss.Color
	TextMuted lipgloss.Color
	Error     lipgloss.Color
}

var CurrentTheme = Theme{
	Primary:   lipgloss.Color("#00ff00"),
	Accent:    lipgloss.Color("#5fafff"),
	Text:      lipgloss.Color("#ffffff"),
	TextMuted: lipgloss.Color("#808080"),
	Error:     lipgloss.Color("#ff5f5f"),
}

// SetTheme sets the current theme
func SetTheme(t Theme) {
	CurrentTheme = t
}

// Styles derived from the current theme.
type Styles struct {
	User      lipgloss.Style
	Assistant lipgloss.Style
	Body      lipgloss.Style
	Muted     lipgloss.Style
	Error     lipgloss.Style
	Title     lipgloss.Style
	Current   lipgloss.Style
}

// NewStyles builds the transcript styles for width columns; zero disables wrapping.
func NewStyles(width int) Styles {
	t := CurrentTheme
	body := lipgloss.NewStyle().Foreground(t.Text).PaddingLeft(2)
	if width > 4 {
		body = body.Width(width - 2)
	}
	return Styles{
		User:      lipgloss.NewStyle().Bold(true).Foreground(t.Accent),
		Assistant: lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Body:      body,
		Muted:     lipgloss.NewStyle().Foreground(t.TextMuted),
		Error:     lipgloss.NewStyle().Foreground(t.Error),
		Title:     lipgloss.NewStyle().Bold(true).Underline(true),
		Current:   lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
	}
}
