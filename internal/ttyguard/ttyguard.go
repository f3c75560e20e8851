// Package ttyguard stops terminal capability probing in non-interactive
// runs. Import it for side effects from main; it acts in init, before the
// first style is rendered.
//
// Lipgloss and termenv query the terminal's background colour with OSC/DSR
// sequences. In -render mode stdout is an HTML document and those sequences
// would end up in it, so every mode other than the TUI sets CI=1, which
// termenv treats as "do not probe".
package ttyguard

import (
	"os"
	"strings"
)

func init() {
	if os.Getenv("CI") != "" {
		return
	}
	if !nonInteractive(os.Args[1:]) {
		return
	}
	_ = os.Setenv("CI", "1")
}

// nonInteractive reports whether args select a mode that writes to stdout
// instead of starting the TUI. -init keeps the terminal; the wizard needs it.
func nonInteractive(args []string) bool {
	for _, arg := range args {
		name, _, _ := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if !strings.HasPrefix(arg, "-") {
			continue
		}
		switch name {
		case "serve", "render", "snapshot", "import", "version", "help", "h":
			return true
		}
	}
	return false
}
