package patcher

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/openhytale/launcher-cli/internal/bytepatch"
)

// replacePair is one byte-for-byte rewrite inside class files.
type replacePair struct {
	old []byte
	new []byte
}

// archivePairs validates and returns the rewrites for the class archive.
// Compiled class files reference strings through fixed constant pool
// offsets, so every replacement must be byte-length identical to its
// original. Any pair that is not is refused before a single byte is
// written.
func (p *Patcher) archivePairs(plan Plan) ([]replacePair, error) {
	pairs := []replacePair{{old: []byte(p.original), new: []byte(plan.MainDomain)}}
	if plan.Mode == ModeSplit {
		for _, prefix := range p.prefixes {
			pairs = append(pairs, replacePair{old: []byte(prefix), new: []byte(plan.SubdomainPrefix)})
		}
	}
	for _, pr := range pairs {
		if len(pr.old) != len(pr.new) {
			return nil, fmt.Errorf("%q (%d bytes) -> %q (%d bytes): %w",
				pr.old, len(pr.old), pr.new, len(pr.new), ErrLengthMismatch)
		}
	}
	return pairs, nil
}

// PatchArchive rewrites domain literals inside the class files of the ZIP
// packed server archive at path. Entries that are not class files are copied
// through unchanged. The rebuilt archive atomically replaces the original.
func (p *Patcher) PatchArchive(path, target string) (Result, error) {
	plan := PlanFor(target)

	pairs, err := p.archivePairs(plan)
	if err != nil {
		return Result{}, err
	}

	if entry, _ := LoadLedger(path); entry != nil && entry.TargetDomain == plan.TargetDomain {
		if patched, err := archiveContains(path, []byte(plan.MainDomain)); err == nil && patched {
			return Result{TargetDomain: target, Mode: plan.Mode, AlreadyPatched: true}, nil
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read archive: %w", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return Result{}, fmt.Errorf("open archive: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return Result{}, err
	}
	tmpPath := tmp.Name()
	cleanup := func() { tmp.Close(); os.Remove(tmpPath) }

	zw := zip.NewWriter(tmp)
	total := 0
	for _, f := range zr.File {
		data, err := readZipEntry(f)
		if err != nil {
			cleanup()
			return Result{}, fmt.Errorf("read entry %s: %w", f.Name, err)
		}
		if strings.HasSuffix(f.Name, ".class") {
			for _, pr := range pairs {
				var n int
				data, n, err = bytepatch.ReplaceExact(data, pr.old, pr.new)
				if err != nil {
					cleanup()
					return Result{}, err
				}
				total += n
			}
		}
		hdr := &zip.FileHeader{Name: f.Name, Method: f.Method, Modified: f.Modified}
		hdr.SetMode(f.Mode())
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			cleanup()
			return Result{}, fmt.Errorf("write entry %s: %w", f.Name, err)
		}
		if _, err := w.Write(data); err != nil {
			cleanup()
			return Result{}, fmt.Errorf("write entry %s: %w", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		cleanup()
		return Result{}, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return Result{}, err
	}

	res := Result{TargetDomain: target, Mode: plan.Mode, Replacements: total}
	if total == 0 {
		// Nothing matched: valid no-op, keep the original archive bytes.
		os.Remove(tmpPath)
		return res, nil
	}

	// First write is about to happen; the backup snapshots the pristine bytes.
	if err := ensureBackup(path, raw); err != nil {
		os.Remove(tmpPath)
		return Result{}, fmt.Errorf("backup archive: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return Result{}, fmt.Errorf("swap archive: %w", err)
	}
	if err := SaveLedger(path, plan); err != nil {
		return Result{}, fmt.Errorf("write ledger: %w", err)
	}
	return res, nil
}

// archiveContains reports whether any class file entry contains pattern.
func archiveContains(path string, pattern []byte) (bool, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return false, err
	}
	defer zr.Close()
	for _, f := range zr.File {
		if !strings.HasSuffix(f.Name, ".class") {
			continue
		}
		data, err := readZipEntry(f)
		if err != nil {
			return false, err
		}
		if bytes.Contains(data, pattern) {
			return true, nil
		}
	}
	return false, nil
}

func readZipEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
