// Package styles holds the shared lipgloss palette for run reports and the
// watch dashboard.
package styles

import "github.com/charmbracelet/lipgloss"

var (
	// Colors - all colors meet WCAG AA contrast (4.5:1) on both black and dark surfaces
	PrimaryColor   = lipgloss.Color("#A78BFA") // Purple
	SecondaryColor = lipgloss.Color("#10B981") // Green
	WarningColor   = lipgloss.Color("#F59E0B") // Amber
	ErrorColor     = lipgloss.Color("#F87171") // Red
	MutedColor     = lipgloss.Color("#9CA3AF") // Gray
	TextColor      = lipgloss.Color("#F9FAFB") // Light text
	BorderColor    = lipgloss.Color("#6B7280") // Gray
	BlueColor      = lipgloss.Color("#60A5FA") // Blue

	// Convenience styles for colors
	Primary   = lipgloss.NewStyle().Foreground(PrimaryColor)
	Secondary = lipgloss.NewStyle().Foreground(SecondaryColor)
	Warning   = lipgloss.NewStyle().Foreground(WarningColor)
	Error     = lipgloss.NewStyle().Foreground(ErrorColor)
	Muted     = lipgloss.NewStyle().Foreground(MutedColor)
	Text      = lipgloss.NewStyle().Foreground(TextColor)

	// Task state colors
	StateRunning   = lipgloss.Color("#60A5FA") // Blue
	StatePending   = lipgloss.Color("#9CA3AF") // Gray
	StateSuccess   = lipgloss.Color("#10B981") // Green
	StateFailure   = lipgloss.Color("#F87171") // Red
	StateSkipped   = lipgloss.Color("#FBBF24") // Yellow
	StateCancelled = lipgloss.Color("#FB923C") // Orange

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor)

	Subtitle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Italic(true)

	Box = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(BorderColor).
		Padding(0, 1)

	TaskName = lipgloss.NewStyle().
			Foreground(TextColor)

	Help = lipgloss.NewStyle().
		Foreground(MutedColor)
)

// StateColor returns the color for a task or run state. Run statuses share
// the task palette; "partial-failure" is drawn like a skip.
func StateColor(state string) lipgloss.Color {
	switch state {
	case "running":
		return StateRunning
	case "pending":
		return StatePending
	case "success":
		return StateSuccess
	case "failure":
		return StateFailure
	case "skipped", "partial-failure":
		return StateSkipped
	case "cancelled":
		return StateCancelled
	default:
		return MutedColor
	}
}

// StateIcon returns an icon for a task state.
func StateIcon(state string) string {
	switch state {
	case "running":
		return "●"
	case "pending":
		return "○"
	case "success":
		return "✓"
	case "failure":
		return "✗"
	case "skipped":
		return "-"
	case "cancelled":
		return "⊘"
	default:
		return "·"
	}
}

// State renders text in the color of state.
func State(state, text string) string {
	return lipgloss.NewStyle().Foreground(StateColor(state)).Render(text)
}
