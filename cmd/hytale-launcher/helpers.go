package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	ui "github.com/openhytale/launcher-cli/internal/ui"
)

// Environment variables carrying session credentials for authenticated mode.
const (
	envIdentityToken = "HYTALE_IDENTITY_TOKEN"
	envSessionToken  = "HYTALE_SESSION_TOKEN"
)

// getPrinter returns a UI printer bound to the current --output flag.
func getPrinter() ui.Printer { return ui.NewPrinterFromGlobal(flagOutput) }

// authTokens reads session credentials from the environment. Both empty is
// fine: the client then runs in offline mode.
func authTokens() (identity, session string) {
	return os.Getenv(envIdentityToken), os.Getenv(envSessionToken)
}

// Prompter abstracts interactive input for testability.
type Prompter interface {
	ReadLine(prompt string) (string, error)
}

type ttyPrompter struct{}

func (ttyPrompter) ReadLine(prompt string) (string, error) {
	fmt.Print(prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// confirm asks a yes/no question, honoring --yes and --non-interactive.
func confirm(p Prompter, question string) bool {
	if flagYes {
		return true
	}
	if flagNonInteractive {
		return false
	}
	resp, err := p.ReadLine(question + " [Y/n]: ")
	if err != nil {
		return false
	}
	resp = strings.ToLower(resp)
	return resp == "" || resp == "y" || resp == "yes"
}
