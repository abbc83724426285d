package cli

import (
	"image/color"

	"charm.land/lipgloss/v2"
)

// Theme holds the color scheme for chat output.
type Theme struct {
	User      color.Color
	Assistant color.Color
	SQL       color.Color
	Error     color.Color
	Hint      color.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	User:      lipgloss.Color("#5FAFD7"), // light blue
	Assistant: lipgloss.Color("#00D787"), // green
	SQL:       lipgloss.Color("#D7AF5F"), // amber
	Error:     lipgloss.Color("#FF005F"), // red
	Hint:      lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) userStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.User).Bold(true)
}

func (t Theme) assistantStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Assistant).Bold(true)
}

func (t Theme) sqlStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.SQL)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}
