//go:build windows

package ui

import "time"

// FlushStdinWithTimeout is a no-op on Windows: the console API does not
// deliver the escape-sequence responses this works around, and stdin has
// no portable non-blocking mode.
func FlushStdinWithTimeout(timeout time.Duration) {}
