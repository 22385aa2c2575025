package ui

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/term"
)

var terminalInitialized bool

// InitTerminal configures the terminal to prevent escape sequence pollution.
// Must be called before any charmbracelet library (lipgloss, bubbletea)
// usage: muesli/termenv queries the terminal background color via OSC 11,
// and the terminal response gets mixed into stdout. Pre-setting COLORFGBG
// makes termenv skip the query.
func InitTerminal() {
	if terminalInitialized {
		return
	}
	terminalInitialized = true

	if os.Getenv("COLORFGBG") == "" {
		os.Setenv("COLORFGBG", "0;15")
	}

	// For TTY output, disable focus reporting (^[[I/^[[O events) and drain
	// stale responses before the first line is printed.
	if term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprint(os.Stdout, "\033[?1004l")
		time.Sleep(20 * time.Millisecond)
		FlushStdinWithTimeout(150 * time.Millisecond)
	}
}

// ResetTerminalAfterTUI cleans up terminal state after a bubbletea program
// exits. Asynchronous terminal responses (cursor position reports, OSC
// responses) can otherwise appear in the output after the TUI closes.
func ResetTerminalAfterTUI() {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return
	}

	fmt.Fprint(os.Stdout, "\033[?1004l") // disable focus reporting
	fmt.Fprint(os.Stdout, "\033[?1003l") // disable all mouse tracking
	fmt.Fprint(os.Stdout, "\033[?1000l") // disable X10 mouse tracking
	fmt.Fprint(os.Stdout, "\033[?1006l") // disable SGR mouse mode
	fmt.Fprint(os.Stdout, "\033[?25h")   // show cursor
	fmt.Fprint(os.Stdout, "\r")

	time.Sleep(30 * time.Millisecond)
	FlushStdinWithTimeout(150 * time.Millisecond)
}
