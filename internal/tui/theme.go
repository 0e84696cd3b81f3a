package tui

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// sesh palette
var (
	SkyBlue      = lipgloss.Color("#87CEEB")
	DeepSkyBlue  = lipgloss.Color("#00BFFF")
	LightSkyBlue = lipgloss.Color("#B0E0E6")
	DarkSkyBlue  = lipgloss.Color("#4A90D9")
	CyanAccent   = lipgloss.Color("#00CED1")

	White     = lipgloss.Color("#FFFFFF")
	LightGray = lipgloss.Color("#B0B0B0")

	Success = lipgloss.Color("#00FF88")
	Warning = lipgloss.Color("#FFD700")
	Error   = lipgloss.Color("#FF6B6B")
)

// Styles
var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(White).
			Background(DarkSkyBlue).
			Bold(true).
			Padding(0, 1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(LightSkyBlue).
			Bold(true)

	BorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(SkyBlue).
			Padding(0, 1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(LightSkyBlue)

	ValueStyle = lipgloss.NewStyle().
			Foreground(White).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(Warning)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(LightGray)

	HighlightStyle = lipgloss.NewStyle().
			Foreground(CyanAccent).
			Bold(true)

	BarStyle = lipgloss.NewStyle().
			Foreground(DeepSkyBlue)
)

const (
	ArrowRight = "→"
	CheckMark  = "✓"
	CrossMark  = "✗"
)

// defaultWidth is used when the output is not a terminal.
const defaultWidth = 60

// Theme renders styled text, or plain text when color is off.
type Theme struct {
	Color bool
	Width int
}

// Detect returns a theme for f: colored when f is a terminal and NO_COLOR
// is unset, sized to the terminal width.
func Detect(f *os.File) Theme {
	t := Theme{Width: defaultWidth}
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return t
	}
	if _, ok := os.LookupEnv("NO_COLOR"); !ok {
		t.Color = true
	}
	if w, _, err := term.GetSize(fd); err == nil && w > 0 {
		t.Width = w
	}
	return t
}

// Plain returns a theme without color.
func Plain() Theme {
	return Theme{Width: defaultWidth}
}

// Render applies s to text when color is on.
func (t Theme) Render(s lipgloss.Style, text string) string {
	if !t.Color {
		return text
	}
	return s.Render(text)
}

// Divider returns a horizontal divider spanning the theme width.
func (t Theme) Divider() string {
	return t.Render(DimStyle, strings.Repeat("─", t.Width))
}

// Bar renders a bar of width cells, filled in proportion to fraction.
func (t Theme) Bar(fraction float64, width int) string {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	filled := int(float64(width) * fraction)
	return t.Render(BarStyle, strings.Repeat("█", filled)) + t.Render(DimStyle, strings.Repeat("░", width-filled))
}
