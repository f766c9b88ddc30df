package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/rokutools/rokuscan/internal/version"
)

// AppName is shown in the picker header
const AppName = "ROKUSCAN"

// Layout constants for responsive terminal width
const (
	MinTerminalWidth = 60
	MaxContentWidth  = 110
)

// Color palette
var (
	PrimaryColor   = lipgloss.Color("#6C3C97") // Roku purple
	SecondaryColor = lipgloss.Color("#43BF6D") // Green
	WarningColor   = lipgloss.Color("#FFA500") // Orange
	ErrorColor     = lipgloss.Color("#FF0000") // Red

	TextColor   = lipgloss.Color("#FFFFFF")
	SubtleColor = lipgloss.Color("#626262")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true).
			MarginBottom(1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(SubtleColor).
			Italic(true)

	// Section headings between picker entries
	SeparatorStyle = lipgloss.NewStyle().
			Foreground(SubtleColor).
			Bold(true).
			PaddingLeft(2)

	MenuItemStyle = lipgloss.NewStyle().
			PaddingLeft(4).
			Foreground(TextColor)

	SelectedMenuItemStyle = lipgloss.NewStyle().
				PaddingLeft(2).
				Foreground(SecondaryColor).
				Bold(true)

	HelpStyle = lipgloss.NewStyle().
			Foreground(SubtleColor).
			Padding(1, 0)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor)

	WarningStyle = lipgloss.NewStyle().
			Foreground(WarningColor).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	ContainerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(PrimaryColor).
			Padding(0, 2)
)

// RenderMenuItem renders a selectable row with a selection indicator
func RenderMenuItem(text string, selected bool) string {
	if selected {
		return SelectedMenuItemStyle.Render("→ " + text)
	}
	return MenuItemStyle.Render(text)
}

// RenderHeader renders the app name and version line
func RenderHeader() string {
	return TitleStyle.Render(AppName + " " + version.Version)
}

// RenderContainer wraps content and help in the application frame
func RenderContainer(content, help string, width int) string {
	if width <= 0 {
		width = MinTerminalWidth
	}
	if width > MaxContentWidth {
		width = MaxContentWidth
	}
	body := lipgloss.JoinVertical(lipgloss.Left, RenderHeader(), content, HelpStyle.Render(help))
	return ContainerStyle.Width(width - 2).Render(body)
}
