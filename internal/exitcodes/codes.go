// Package exitcodes defines the launcher's process exit codes and the
// error type that carries them from command logic to main.
package exitcodes

import (
	"errors"
	"fmt"
	"os"
)

// Standard exit codes for hytale-launcher
const (
	// Success indicates successful command completion
	Success = 0

	// GeneralError indicates a general/unknown error
	GeneralError = 1

	// InvalidArgs indicates invalid command-line arguments or flags
	InvalidArgs = 2

	// PreconditionFailed indicates a precondition was not met
	// (e.g., no install present, game already running)
	PreconditionFailed = 3

	// NetworkError indicates network/connectivity failure
	// (e.g., patch server unreachable, download timeout)
	NetworkError = 4

	// ProcessError indicates game process management failure
	// (e.g., failed to launch or stop the client)
	ProcessError = 5

	// ValidationError indicates corrupted or unexpected data
	// (e.g., patch archive mismatch, damaged install)
	ValidationError = 6

	// Cancelled indicates the user aborted an install or update mid-flight
	Cancelled = 7
)

// Exit terminates the program with the given code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError prints error message to stderr and exits with the given code
func ExitWithError(code int, msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(code)
}

// ExitWithErrorf prints formatted error message to stderr and exits
func ExitWithErrorf(code int, format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(code)
}

// CodeForError returns the appropriate exit code for an error.
// Unwraps ErrorWithCode for explicit codes, otherwise returns GeneralError.
// Use explicit error constructors (NetworkErr, ProcessErr, etc.) for specific codes.
func CodeForError(err error) int {
	if err == nil {
		return Success
	}
	var ec *ErrorWithCode
	if errors.As(err, &ec) {
		return ec.Code
	}
	return GeneralError
}
