// Package patcher rewrites the network endpoint literals embedded in the
// game executable and the packed server archive so the client talks to a
// third-party auth backend instead of the stock one.
package patcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/openhytale/launcher-cli/internal/bytepatch"
)

// ErrLengthMismatch is returned when an archive rewrite would change the
// byte length of a class file string. Nothing is written when this happens.
var ErrLengthMismatch = errors.New("archive replacement must be byte-length identical")

// Result summarizes one patch operation.
type Result struct {
	TargetDomain   string
	Mode           Mode
	Encoding       string // encoding that matched, executable path only
	Replacements   int    // total literals rewritten; 0 is a valid no-op
	AlreadyPatched bool   // ledger hit confirmed against current bytes
}

// Patcher applies domain redirect patches. It keeps no state beyond the
// per-artifact ledger files; patching is a pure function of (bytes, target).
type Patcher struct {
	original string
	prefixes []string
	repl     *bytepatch.Replacer
}

// New returns a Patcher for the stock original domain and prefix set.
func New() *Patcher {
	return NewFor(OriginalDomain, SubdomainPrefixes)
}

// NewFor returns a Patcher with a custom original domain and prefix list.
// Tests use this; production code uses New.
func NewFor(original string, prefixes []string) *Patcher {
	return &Patcher{original: original, prefixes: prefixes, repl: bytepatch.New()}
}

// PatchExecutable rewrites the domain literals inside the native executable
// at path. Re-running with the same target is a verified no-op. An
// executable that contains no occurrences in any encoding is also a
// successful no-op: the build may never embed the pattern, or an earlier
// scheme already rewrote it.
func (p *Patcher) PatchExecutable(path, target string) (Result, error) {
	plan := PlanFor(target)

	buf, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read executable: %w", err)
	}

	if done, res := p.ledgerShortCircuit(path, plan, buf); done {
		return res, nil
	}

	out, match, err := p.repl.Rewrite(buf, p.original, plan.MainDomain)
	if err != nil {
		return Result{}, err
	}
	total := match.Count

	if plan.Mode == ModeSplit {
		for _, prefix := range p.prefixes {
			next, m, err := p.repl.Rewrite(out, prefix, plan.SubdomainPrefix)
			if err != nil {
				// A prefix literal shorter than the new prefix cannot hold
				// it; that call site keeps the stock prefix while the rest
				// of the rewrites still land.
				if errors.Is(err, bytepatch.ErrReplacementTooLong) {
					continue
				}
				return Result{}, err
			}
			out = next
			total += m.Count
		}
	}

	res := Result{TargetDomain: target, Mode: plan.Mode, Encoding: match.Encoding, Replacements: total}
	if total == 0 {
		return res, nil
	}

	// First write is about to happen; the backup snapshots the pristine bytes.
	if err := ensureBackup(path, buf); err != nil {
		return Result{}, fmt.Errorf("backup executable: %w", err)
	}
	if err := writeFileAtomic(path, out); err != nil {
		return Result{}, fmt.Errorf("write executable: %w", err)
	}
	if err := SaveLedger(path, plan); err != nil {
		return Result{}, fmt.Errorf("write ledger: %w", err)
	}
	return res, nil
}

// ledgerShortCircuit checks the flag file against the current bytes. A flag
// for the same target whose new-domain pattern is actually present in buf
// short circuits the patch; a stale flag (artifact replaced by an update) is
// ignored and patching proceeds.
func (p *Patcher) ledgerShortCircuit(artifact string, plan Plan, buf []byte) (bool, Result) {
	entry, err := LoadLedger(artifact)
	if err != nil || entry == nil || entry.TargetDomain != plan.TargetDomain {
		return false, Result{}
	}
	if _, ok := p.repl.Scan(buf, plan.MainDomain); !ok {
		return false, Result{}
	}
	return true, Result{TargetDomain: plan.TargetDomain, Mode: plan.Mode, AlreadyPatched: true}
}

// writeFileAtomic writes data to a temp sibling and renames it over path,
// preserving the original file mode.
func writeFileAtomic(path string, data []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode()
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
