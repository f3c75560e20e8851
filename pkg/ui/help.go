package ui

import (
	"github.com/charmbracelet/glamour"
)

const helpMarkdown = `# datefacet

Type a term and press **Enter** to chart how often it appears per year,
as a share of all documents that year. Separate several terms with the
delimiter to add them at once.

| Key | Action |
|-----|--------|
| enter | add the typed term(s) |
| backspace | remove the last term when the input is empty |
| tab / shift+tab | select a term |
| ctrl+x | remove the selected term |
| ctrl+s | save an SVG snapshot |
| ctrl+y | copy the chart SVG to the clipboard |
| ? | toggle this help (input empty) |
| esc / ctrl+c | quit |
`

// renderHelp renders the key reference. Rendering failures fall back to the
// raw markdown.
func renderHelp(width int) string {
	wrap := 60
	if width > 0 && width-4 < wrap {
		wrap = max(width-4, 20)
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return helpMarkdown
	}
	out, err := r.Render(helpMarkdown)
	if err != nil {
		return helpMarkdown
	}
	return out
}
