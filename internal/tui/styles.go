package tui

import "github.com/charmbracelet/lipgloss"

// Theme holds the styles used by the browser.
type Theme struct {
	Title    lipgloss.Style
	Row      lipgloss.Style
	Selected lipgloss.Style
	Stars    lipgloss.Style
	Language lipgloss.Style
	Dim      lipgloss.Style
	Error    lipgloss.Style
	Done     lipgloss.Style
	HelpKey  lipgloss.Style
}

// DefaultTheme uses ANSI 256 colors that read on dark and light terminals.
var DefaultTheme = Theme{
	Title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
	Row:      lipgloss.NewStyle(),
	Selected: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")),
	Stars:    lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
	Language: lipgloss.NewStyle().Foreground(lipgloss.Color("108")),
	Dim:      lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	Error:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
	Done:     lipgloss.NewStyle().Foreground(lipgloss.Color("78")),
	HelpKey:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("250")),
}
