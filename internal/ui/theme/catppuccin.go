package theme

import "github.com/charmbracelet/lipgloss"

var (
	Base     = lipgloss.Color("#1e1e2e")
	Mantle   = lipgloss.Color("#181825")
	Surface0 = lipgloss.Color("#313244")
	Surface1 = lipgloss.Color("#45475a")
	Text     = lipgloss.Color("#cdd6f4")
	Subtext0 = lipgloss.Color("#a6adc8")
	Lavender = lipgloss.Color("#b4befe")
	Sapphire = lipgloss.Color("#74c7ec")
	Green    = lipgloss.Color("#a6e3a1")
	Yellow   = lipgloss.Color("#f9e2af")
	Peach    = lipgloss.Color("#fab387")
	Red      = lipgloss.Color("#f38ba8")

	App = lipgloss.NewStyle().
		Background(Base).
		Foreground(Text).
		Padding(1, 2)

	Pane = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Surface1).
		Background(Mantle).
		Foreground(Text).
		Padding(1)

	PaneActive = Pane.BorderForeground(Lavender)

	Title = lipgloss.NewStyle().Foreground(Sapphire).Bold(true)
	Muted = lipgloss.NewStyle().Foreground(Subtext0)
	Hot   = lipgloss.NewStyle().Foreground(Peach).Bold(true)

	Selected = lipgloss.NewStyle().Foreground(Lavender).Bold(true)
	Locked   = lipgloss.NewStyle().Foreground(Green).Bold(true)
)

// PressureColor maps a pressure level to the accent used for the timer and
// pane border.
func PressureColor(pressure string) lipgloss.Color {
	switch pressure {
	case "focused":
		return Sapphire
	case "urgent":
		return Yellow
	case "critical":
		return Red
	default:
		return Green
	}
}

func PressurePane(pressure string) lipgloss.Style {
	return Pane.BorderForeground(PressureColor(pressure))
}

func TierPane(tier string) lipgloss.Style {
	switch tier {
	case "countdown":
		return Pane.BorderForeground(Red)
	case "comprehension":
		return Pane.BorderForeground(Peach)
	default:
		return Pane.BorderForeground(Yellow)
	}
}
