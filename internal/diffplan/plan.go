// Package diffplan computes the ordered chain of intermediate patch
// versions needed to move an installation from one version to a later one.
package diffplan

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// MaxPatchArchiveSize is the guard threshold for one differential step. An
// intermediate archive larger than this signals a server-side repack (or a
// full archive misfiled as a patch); the differential path is abandoned
// rather than risk a multi-gigabyte chain.
const MaxPatchArchiveSize = int64(4) << 30

// Plan returns the intermediate versions to apply, in ascending order, to
// move from installed to target. Each element maps to one archive download
// plus one apply step. An up-to-date or unknown installation yields nil.
func Plan(installed, target int) []int {
	if installed <= 0 || target <= installed {
		return nil
	}
	steps := make([]int, 0, target-installed)
	for v := installed + 1; v <= target; v++ {
		steps = append(steps, v)
	}
	return steps
}

// InferInstalledVersion is the best-effort fallback for when no latest
// pointer exists: scan the archive cache directory for previously
// downloaded patch filenames ("<version>.<ext>") and take the highest
// version embedded in any of them. Returns 0 when nothing can be inferred.
func InferInstalledVersion(cacheDir string) int {
	entries, err := os.ReadDir(cacheDir)
	if err != nil {
		return 0
	}
	highest := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := filepath.Ext(name)
		if ext == "" || ext == ".part" || ext == ".xxh64" {
			continue
		}
		v, err := strconv.Atoi(strings.TrimSuffix(name, ext))
		if err != nil || v <= 0 {
			continue
		}
		if v > highest {
			highest = v
		}
	}
	return highest
}
