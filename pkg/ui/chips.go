package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const maxChipLabel = 24

// renderChips draws one chip per item in the term's colour. selected is the
// focused chip index or -1. Chips wrap onto new lines at width.
func renderChips(t Theme, items []string, colorOf func(string) (string, bool), selected, width int) string {
	if len(items) == 0 {
		return ""
	}
	var lines []string
	var line []string
	lineWidth := 0
	for i, item := range items {
		hex, ok := colorOf(item)
		if !ok {
			hex = "#6272A4"
		}
		chip := t.ChipStyle(hex, i == selected).Render(truncate(item, maxChipLabel) + " ×")
		w := lipgloss.Width(chip)
		if width > 0 && lineWidth > 0 && lineWidth+w > width {
			lines = append(lines, strings.Join(line, ""))
			line, lineWidth = nil, 0
		}
		line = append(line, chip)
		lineWidth += w
	}
	lines = append(lines, strings.Join(line, ""))
	return strings.Join(lines, "\n")
}
