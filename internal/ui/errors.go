package ui

import (
	"fmt"
	"strings"
)

// ErrorMessage represents a structured, actionable error to present to users.
type ErrorMessage struct {
	Problem string   // one-line problem statement
	Causes  []string // possible causes
	Actions []string // actionable steps to resolve
	Hints   []string // optional hints (e.g., commands to try)
}

// Format renders the error using the color theme. It does not include ANSI
// codes when colors are disabled (NO_COLOR or dumb terminal).
func (e ErrorMessage) Format(c *ColorConfig) string {
	var b strings.Builder
	b.WriteString(c.Error("✗ "))
	b.WriteString(c.Header("Error"))
	b.WriteString("\n")
	if e.Problem != "" {
		b.WriteString("  ")
		b.WriteString(c.Label("Problem"))
		b.WriteString(": ")
		b.WriteString(e.Problem)
		b.WriteString("\n")
	}
	writeList := func(label, bullet string, items []string, dim bool) {
		if len(items) == 0 {
			return
		}
		b.WriteString("  ")
		b.WriteString(c.Label(label))
		b.WriteString(":\n")
		for _, it := range items {
			if dim {
				it = c.Description(it)
			}
			b.WriteString("   " + bullet + " ")
			b.WriteString(it)
			b.WriteString("\n")
		}
	}
	writeList("Possible causes", "•", e.Causes, false)
	writeList("Try", "→", e.Actions, false)
	writeList("Hints", "·", e.Hints, true)
	return b.String()
}

// PrintError prints the structured error to stdout using the current theme.
func PrintError(e ErrorMessage) {
	c := NewColorConfigFromGlobal()
	fmt.Println(e.Format(c))
}
