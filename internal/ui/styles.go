// Package ui holds terminal color helpers for the CLI.
package ui

import "fmt"

// ANSI256 color codes.
const (
	colorAccent = 74  // blue, field labels
	colorOK     = 71  // green, success results
	colorFail   = 167 // red, failed results
	colorMuted  = 245 // medium gray, secondary detail
)

var noColor bool

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", colorAccent, s)
}

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", colorMuted, s)
}

// RenderStatus returns s colored by the ok flag: green for success,
// red for failure.
func RenderStatus(s string, ok bool) string {
	if noColor {
		return s
	}
	color := colorFail
	if ok {
		color = colorOK
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", color, s)
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
