package ui

import (
	"os"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"
)

// TermProfile holds the detected terminal color profile. Computed once at
// package init so every style helper can branch without re-detecting.
var TermProfile colorprofile.Profile

func init() {
	TermProfile = colorprofile.Detect(os.Stdout, os.Environ())
}

// ThemeBg returns the given hex color for ANSI256+ terminals and
// lipgloss.NoColor{} otherwise, so chips on 16-color terminals fall back to
// the reverse-video selection style instead of a clashing approximation.
func ThemeBg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.ANSI256 {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(hex)
}

// ThemeFg returns the given hex color for ANSI256+ terminals and a safe
// ANSI white (color 7) for 16-color or lower terminals.
func ThemeFg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.ANSI256 {
		return lipgloss.ANSIColor(7)
	}
	return lipgloss.Color(hex)
}

type Theme struct {
	Renderer *lipgloss.Renderer

	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Subtext   lipgloss.AdaptiveColor
	Error     lipgloss.AdaptiveColor
	Border    lipgloss.AdaptiveColor

	Base      lipgloss.Style
	Header    lipgloss.Style
	Chip      lipgloss.Style
	ChipFocus lipgloss.Style
	Pane      lipgloss.Style
	Status    lipgloss.Style
	StatusErr lipgloss.Style
	Muted     lipgloss.Style
}

// DefaultTheme returns the Dracula-inspired adaptive theme.
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{
		Renderer: r,

		Primary:   lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"},
		Secondary: lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},
		Subtext:   lipgloss.AdaptiveColor{Light: "#666666", Dark: "#BFBFBF"},
		Error:     lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"},
		Border:    lipgloss.AdaptiveColor{Light: "#AAAAAA", Dark: "#44475A"},
	}

	t.Base = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#F8F8F2"})
	t.Header = r.NewStyle().
		Background(t.Primary).
		Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}).
		Bold(true).
		Padding(0, 1)
	t.Chip = r.NewStyle().
		Foreground(lipgloss.Color("#FFFFFF")).
		Padding(0, 1).
		MarginRight(1)
	t.ChipFocus = t.Chip.Bold(true).Underline(true)
	t.Pane = r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Border).
		Padding(0, 1)
	t.Status = r.NewStyle().Foreground(t.Subtext)
	t.StatusErr = r.NewStyle().Foreground(t.Error).Bold(true)
	t.Muted = r.NewStyle().Foreground(t.Secondary)
	return t
}

// ChipStyle returns the chip style with the term's colour as background.
func (t Theme) ChipStyle(hex string, focused bool) lipgloss.Style {
	s := t.Chip
	if focused {
		s = t.ChipFocus
	}
	if bg, ok := ThemeBg(hex).(lipgloss.Color); ok {
		return s.Background(bg)
	}
	if focused {
		return s.Reverse(true)
	}
	return s.Foreground(lipgloss.Color(hex))
}

// TestTheme returns a theme suitable for use in tests.
func TestTheme() Theme {
	return DefaultTheme(lipgloss.NewRenderer(os.Stdout))
}
