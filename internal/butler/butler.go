// Package butler wraps the external diff-apply tool: it installs the tool
// on demand and applies one patch archive to an install directory,
// translating the tool's own progress stream into the caller's callback.
// The archive format is opaque to the launcher; this package only sequences
// calls and surfaces exit status.
package butler

import (
	"archive/zip"
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/openhytale/launcher-cli/internal/download"
)

// ProgressFunc receives 0-100 sub-progress for one adapter operation.
type ProgressFunc func(percent int)

// Runner abstracts subprocess execution for tests. Start returns a line
// channel carrying the tool's stdout and a wait function that yields the
// final error.
type Runner interface {
	Start(ctx context.Context, name string, args ...string) (<-chan string, func() error, error)
}

// Adapter manages one installation of the diff-apply tool.
type Adapter struct {
	dir     string // tool installation directory
	baseURL string // tool distribution base URL
	dl      *download.Manager
	run     Runner
}

// New returns an adapter that installs the tool under dir.
func New(dir, baseURL string) *Adapter {
	return NewWith(dir, baseURL, download.New(), execRunner{})
}

// NewWith allows injecting the download manager and runner for testing.
func NewWith(dir, baseURL string, dl *download.Manager, run Runner) *Adapter {
	if dl == nil {
		dl = download.New()
	}
	if run == nil {
		run = execRunner{}
	}
	return &Adapter{dir: dir, baseURL: baseURL, dl: dl, run: run}
}

// BinaryPath is where the tool executable lives once installed.
func (a *Adapter) BinaryPath() string {
	name := "butler"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(a.dir, name)
}

// IsInstalled reports whether the tool executable is present.
func (a *Adapter) IsInstalled() bool {
	info, err := os.Stat(a.BinaryPath())
	return err == nil && !info.IsDir()
}

// EnsureInstalled installs the tool if missing. Safe to call repeatedly
// from any path; an existing installation is a fast no-op at 100%.
func (a *Adapter) EnsureInstalled(ctx context.Context, progress ProgressFunc) error {
	if progress == nil {
		progress = func(int) {}
	}
	if a.IsInstalled() {
		progress(100)
		return nil
	}

	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return err
	}

	channel := fmt.Sprintf("%s-%s", runtime.GOOS, runtime.GOARCH)
	url := fmt.Sprintf("%s/%s/LATEST/archive/default", a.baseURL, channel)
	archive := filepath.Join(a.dir, "butler.zip")

	// Download occupies 0-80 of the sub-range, extraction the rest.
	if err := a.dl.Fetch(ctx, download.Task{URL: url, Dest: archive}, func(pct int, _, _ int64) {
		progress(pct * 80 / 100)
	}); err != nil {
		return fmt.Errorf("download diff tool: %w", err)
	}
	progress(80)

	if err := extractZip(archive, a.dir); err != nil {
		return fmt.Errorf("extract diff tool: %w", err)
	}
	_ = os.Remove(archive)
	_ = os.Remove(archive + ".xxh64")

	if err := os.Chmod(a.BinaryPath(), 0o755); err != nil {
		return fmt.Errorf("chmod diff tool: %w", err)
	}
	progress(100)
	return nil
}

// ApplyPatch runs the tool against one archive and target directory. The
// tool's JSON progress lines are mapped onto the caller's 0-100 range. A
// non-zero exit surfaces the tool's last diagnostic lines in the error.
func (a *Adapter) ApplyPatch(ctx context.Context, archivePath, targetDir string, progress ProgressFunc) error {
	if progress == nil {
		progress = func(int) {}
	}
	if !a.IsInstalled() {
		return fmt.Errorf("diff tool not installed at %s", a.BinaryPath())
	}
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return err
	}

	lines, wait, err := a.run.Start(ctx, a.BinaryPath(),
		"apply", "--json", "--staging-dir", filepath.Join(a.dir, "staging"),
		archivePath, targetDir)
	if err != nil {
		return fmt.Errorf("start diff tool: %w", err)
	}

	var lastLines []string
	for line := range lines {
		if pct, ok := ParseProgressLine(line); ok {
			progress(pct)
			continue
		}
		lastLines = append(lastLines, line)
		if len(lastLines) > 10 {
			lastLines = lastLines[1:]
		}
	}

	if err := wait(); err != nil {
		diag := strings.Join(lastLines, "\n")
		if diag != "" {
			return fmt.Errorf("diff tool failed: %w\n%s", err, diag)
		}
		return fmt.Errorf("diff tool failed: %w", err)
	}
	progress(100)
	return nil
}

// ParseProgressLine extracts a 0-100 percent from one line of tool output.
// The tool emits JSON records like {"type":"progress","progress":0.42};
// plain-text builds print lines such as "42.0%".
func ParseProgressLine(line string) (int, bool) {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "{") {
		var rec struct {
			Type     string  `json:"type"`
			Progress float64 `json:"progress"`
		}
		if err := json.Unmarshal([]byte(line), &rec); err != nil || rec.Type != "progress" {
			return 0, false
		}
		return clampPct(int(rec.Progress * 100)), true
	}
	if idx := strings.IndexByte(line, '%'); idx > 0 {
		if f, err := strconv.ParseFloat(strings.TrimSpace(line[:idx]), 64); err == nil {
			return clampPct(int(f)), true
		}
	}
	return 0, false
}

func clampPct(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// execRunner streams subprocess stdout line by line.
type execRunner struct{}

func (execRunner) Start(ctx context.Context, name string, args ...string) (<-chan string, func() error, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, err
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		return nil, nil, err
	}

	out := make(chan string, 64)
	go func() {
		defer close(out)
		sc := bufio.NewScanner(stdout)
		sc.Buffer(make([]byte, 64*1024), 1024*1024)
		for sc.Scan() {
			out <- sc.Text()
		}
	}()
	return out, cmd.Wait, nil
}

// extractZip unpacks a tool archive, flattening any single top-level
// directory the distribution wraps its files in.
func extractZip(archivePath, destDir string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer zr.Close()

	for _, f := range zr.File {
		name := filepath.Clean(f.Name)
		if strings.HasPrefix(name, "..") || filepath.IsAbs(name) {
			return fmt.Errorf("invalid path in archive: %s", f.Name)
		}
		target := filepath.Join(destDir, name)
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, f.Mode())
		if err != nil {
			rc.Close()
			return err
		}
		_, copyErr := io.Copy(out, rc)
		rc.Close()
		if closeErr := out.Close(); copyErr == nil {
			copyErr = closeErr
		}
		if copyErr != nil {
			return copyErr
		}
	}
	return nil
}
