package jre

import (
	"fmt"
	"os"
	"path/filepath"
)

// realBinaryName is what the shim renames the actual java executable to.
const realBinaryName = "java.real"

// installShim renames bin/java aside and drops a shell shim in its place.
// The shim strips the one flag the client passes that not every runtime
// build accepts, then execs the real binary with everything else intact.
// Idempotent: a binDir that already carries the shim is left alone.
func installShim(binDir string) error {
	javaPath := filepath.Join(binDir, "java")
	realPath := filepath.Join(binDir, realBinaryName)

	if _, err := os.Stat(realPath); err == nil {
		return nil
	}
	if err := os.Rename(javaPath, realPath); err != nil {
		return fmt.Errorf("rename java binary: %w", err)
	}

	script := fmt.Sprintf(`#!/bin/sh
REAL="$(dirname "$0")/%s"
n=$#
i=0
while [ $i -lt $n ]; do
  arg=$1; shift
  case "$arg" in
    %s) ;;
    *) set -- "$@" "$arg" ;;
  esac
  i=$((i+1))
done
exec "$REAL" "$@"
`, realBinaryName, unsupportedFlag)

	if err := os.WriteFile(javaPath, []byte(script), 0o755); err != nil {
		// Restore the original name so the runtime is not left headless.
		_ = os.Rename(realPath, javaPath)
		return fmt.Errorf("write java shim: %w", err)
	}
	return nil
}
